package main

import (
	"context"
	"lyrifind-api/services/songs"
)

type contextKey string

const cacheStatusKey contextKey = "cacheStatus"

// Values for the X-Cache-Status header
const (
	cacheHit         = "HIT"
	cacheMiss        = "MISS"
	cacheNegativeHit = "NEGATIVE_HIT"
	cacheBypass      = "BYPASS"
)

// cacheStatus collects the upstream cache outcome for one request. When a
// request makes several upstream calls the last outcome wins.
type cacheStatus struct {
	value string
}

// withCacheStatus attaches a fresh cacheStatus to ctx.
func withCacheStatus(ctx context.Context) (context.Context, *cacheStatus) {
	status := &cacheStatus{}
	return context.WithValue(ctx, cacheStatusKey, status), status
}

// setCacheStatus records status on the request's cacheStatus, if any.
func setCacheStatus(ctx context.Context, status string) {
	if cs, ok := ctx.Value(cacheStatusKey).(*cacheStatus); ok {
		cs.value = status
	}
}

// SearchResponse is the /search payload
type SearchResponse struct {
	Query string       `json:"query"`
	Count int          `json:"count"`
	Songs []songs.Song `json:"songs"`
}

// FindResponse is the /find payload
type FindResponse struct {
	Song   songs.Song   `json:"song"`
	Lyrics songs.Lyrics `json:"lyrics"`
}

// NegativeCacheEntry stores info about lookups LRCLIB had no track for
type NegativeCacheEntry struct {
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"`
}
