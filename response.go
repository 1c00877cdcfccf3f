package main

import (
	"encoding/json"
	"net/http"
)

// APIResponse handles consistent header setting and JSON responses.
type APIResponse struct {
	w           http.ResponseWriter
	r           *http.Request
	cacheStatus string
}

// Respond creates a response helper for the request
func Respond(w http.ResponseWriter, r *http.Request) *APIResponse {
	return &APIResponse{w: w, r: r}
}

// SetCacheStatus sets the X-Cache-Status header value
func (a *APIResponse) SetCacheStatus(status string) *APIResponse {
	a.cacheStatus = status
	return a
}

// writeHeaders sets the standard headers. An explicit cache status wins over
// the one collected in the request context.
func (a *APIResponse) writeHeaders() {
	a.w.Header().Set("Content-Type", "application/json")

	status := a.cacheStatus
	if status == "" {
		if cs, ok := a.r.Context().Value(cacheStatusKey).(*cacheStatus); ok {
			status = cs.value
		}
	}
	if status != "" {
		a.w.Header().Set("X-Cache-Status", status)
	}
}

// JSON writes headers and encodes data as JSON (200 OK)
func (a *APIResponse) JSON(data interface{}) error {
	a.writeHeaders()
	return json.NewEncoder(a.w).Encode(data)
}

// Error writes headers, sets status code, and encodes error response
func (a *APIResponse) Error(statusCode int, data interface{}) error {
	a.writeHeaders()
	a.w.WriteHeader(statusCode)
	return json.NewEncoder(a.w).Encode(data)
}

// ErrorMessage is Error with the usual {"error": message} body
func (a *APIResponse) ErrorMessage(statusCode int, message string) error {
	return a.Error(statusCode, map[string]string{"error": message})
}
