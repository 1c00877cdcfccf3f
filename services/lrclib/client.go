package lrclib

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"lyrifind-api/circuitbreaker"
	"lyrifind-api/logcolors"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL   = "https://lrclib.net/api"
	DefaultUserAgent = "LyriFind/1.0"
	DefaultTimeout   = 15 * time.Second

	opSearch = "search"
	opGet    = "get"
)

// Options configures a Client. Zero values fall back to the defaults above.
type Options struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	Breaker    *circuitbreaker.CircuitBreaker
	HTTPClient *http.Client
}

// Client talks to the LRCLIB REST API.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
}

// New creates a new LRCLIB client
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		userAgent:  opts.UserAgent,
		httpClient: opts.HTTPClient,
		breaker:    opts.Breaker,
	}
}

// Breaker returns the circuit breaker guarding this client, or nil.
func (c *Client) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

// Search runs a free-text search. An empty result is not an error.
func (c *Client) Search(ctx context.Context, query string) ([]TrackRecord, error) {
	params := url.Values{}
	params.Set("q", query)

	log.Debugf("%s Searching LRCLIB for: %s", logcolors.LogSearch, query)

	var records []TrackRecord
	if err := c.do(ctx, opSearch, "/search", params, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Get fetches the single best match for artist and title. A missing track
// is reported as an *Error with KindNotFound, never as a nil record.
func (c *Client) Get(ctx context.Context, artist, title string) (*TrackRecord, error) {
	params := url.Values{}
	params.Set("artist_name", artist)
	params.Set("track_name", title)

	log.Debugf("%s Fetching lyrics: '%s' by '%s'", logcolors.LogLyrics, title, artist)

	var record TrackRecord
	if err := c.do(ctx, opGet, "/get", params, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *Client) do(ctx context.Context, op, path string, params url.Values, out interface{}) error {
	if c.breaker != nil && !c.breaker.Allow() {
		log.Warnf("%s Circuit open, skipping %s request", logcolors.LogCircuitBreaker, op)
		return NewError(KindOther, op, "upstream temporarily disabled", circuitbreaker.ErrCircuitOpen)
	}

	requestURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
	if err != nil {
		return NewError(KindOther, op, "failed to create request", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure()
		kind, _ := transportKind(err)
		return NewError(kind, op, "request failed", err)
	}
	defer resp.Body.Close()

	log.Debugf("%s %s %s -> %d (%v)", logcolors.LogHTTP, http.MethodGet, path, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.recordSuccess()
		return NewError(KindNotFound, op, "track not found (404)", nil)
	case resp.StatusCode >= http.StatusInternalServerError:
		c.recordFailure()
		return NewError(KindOther, op, fmt.Sprintf("API returned status %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		c.recordSuccess()
		return NewError(KindOther, op, fmt.Sprintf("API returned status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordFailure()
		kind, _ := transportKind(err)
		return NewError(kind, op, "failed to read response", err)
	}
	c.recordSuccess()

	if err := json.Unmarshal(body, out); err != nil {
		return NewError(KindOther, op, "failed to parse response", err)
	}
	return nil
}

func (c *Client) recordSuccess() {
	if c.breaker != nil {
		c.breaker.RecordSuccess()
	}
}

func (c *Client) recordFailure() {
	if c.breaker != nil {
		c.breaker.RecordFailure()
	}
}
