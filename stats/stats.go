package stats

import (
	"math"
	"sync/atomic"
	"time"
)

// Stats holds all server statistics with atomic counters
type Stats struct {
	// Server info
	StartTime time.Time

	// Request counters
	TotalRequests  atomic.Int64
	SearchRequests atomic.Int64
	LyricsRequests atomic.Int64
	FindRequests   atomic.Int64
	HealthRequests atomic.Int64
	StatsRequests  atomic.Int64
	OtherRequests  atomic.Int64

	// Upstream cache performance
	CacheHits         atomic.Int64
	CacheMisses       atomic.Int64
	NegativeCacheHits atomic.Int64
	CoalescedCalls    atomic.Int64 // Upstream calls shared with an identical in-flight call

	// Upstream outcomes, one counter per lrclib error kind
	UpstreamSuccess     atomic.Int64
	UpstreamNotFound    atomic.Int64
	UpstreamTimeout     atomic.Int64
	UpstreamUnreachable atomic.Int64
	UpstreamOther       atomic.Int64

	// Rate limiting
	RateLimitAllowed  atomic.Int64
	RateLimitExceeded atomic.Int64 // Requests rejected (429)

	// Response status codes
	Status2xx atomic.Int64
	Status4xx atomic.Int64
	Status5xx atomic.Int64

	// Response time tracking (in microseconds for precision)
	totalResponseTime atomic.Int64
	responseCount     atomic.Int64
	minResponseTime   atomic.Int64
	maxResponseTime   atomic.Int64

	// Lyrics lookups (/lyrics and /find) response times (microseconds)
	lyricsResponseTime  atomic.Int64
	lyricsResponseCount atomic.Int64
}

// Global stats instance
var global = New()

// New returns an empty Stats starting now.
func New() *Stats {
	s := &Stats{StartTime: time.Now()}
	s.minResponseTime.Store(math.MaxInt64)
	return s
}

// Get returns the global stats instance
func Get() *Stats {
	return global
}

// RecordRequest records a request to a specific endpoint
func (s *Stats) RecordRequest(endpoint string) {
	s.TotalRequests.Add(1)
	switch endpoint {
	case "/search":
		s.SearchRequests.Add(1)
	case "/lyrics":
		s.LyricsRequests.Add(1)
	case "/find":
		s.FindRequests.Add(1)
	case "/health":
		s.HealthRequests.Add(1)
	case "/stats":
		s.StatsRequests.Add(1)
	default:
		s.OtherRequests.Add(1)
	}
}

// RecordCacheHit records a cache hit
func (s *Stats) RecordCacheHit() {
	s.CacheHits.Add(1)
}

// RecordCacheMiss records a cache miss
func (s *Stats) RecordCacheMiss() {
	s.CacheMisses.Add(1)
}

// RecordNegativeCacheHit records a negative cache hit
func (s *Stats) RecordNegativeCacheHit() {
	s.NegativeCacheHits.Add(1)
}

// RecordCoalesced records an upstream call answered by another in-flight call
func (s *Stats) RecordCoalesced() {
	s.CoalescedCalls.Add(1)
}

// RecordUpstream records the outcome of one LRCLIB call. kind is the
// lrclib.ErrorKind string, or "" for success.
func (s *Stats) RecordUpstream(kind string) {
	switch kind {
	case "":
		s.UpstreamSuccess.Add(1)
	case "not_found":
		s.UpstreamNotFound.Add(1)
	case "timeout":
		s.UpstreamTimeout.Add(1)
	case "unreachable":
		s.UpstreamUnreachable.Add(1)
	default:
		s.UpstreamOther.Add(1)
	}
}

// RecordRateLimit records whether a request passed the rate limiter
func (s *Stats) RecordRateLimit(allowed bool) {
	if allowed {
		s.RateLimitAllowed.Add(1)
		return
	}
	s.RateLimitExceeded.Add(1)
}

// RecordStatusCode records a response status code
func (s *Stats) RecordStatusCode(code int) {
	switch {
	case code >= 200 && code < 300:
		s.Status2xx.Add(1)
	case code >= 400 && code < 500:
		s.Status4xx.Add(1)
	case code >= 500:
		s.Status5xx.Add(1)
	}
}

// RecordResponseTime records a response time
func (s *Stats) RecordResponseTime(duration time.Duration, endpoint string) {
	us := duration.Microseconds()

	s.totalResponseTime.Add(us)
	s.responseCount.Add(1)

	for {
		current := s.minResponseTime.Load()
		if us >= current || s.minResponseTime.CompareAndSwap(current, us) {
			break
		}
	}
	for {
		current := s.maxResponseTime.Load()
		if us <= current || s.maxResponseTime.CompareAndSwap(current, us) {
			break
		}
	}

	if endpoint == "/lyrics" || endpoint == "/find" {
		s.lyricsResponseTime.Add(us)
		s.lyricsResponseCount.Add(1)
	}
}

// Uptime returns the server uptime
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// CacheHitRate returns the cache hit rate as a percentage. Negative hits
// count as hits.
func (s *Stats) CacheHitRate() float64 {
	hits := s.CacheHits.Load() + s.NegativeCacheHits.Load()
	total := hits + s.CacheMisses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// AvgResponseTime returns the average response time
func (s *Stats) AvgResponseTime() time.Duration {
	count := s.responseCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(s.totalResponseTime.Load()/count) * time.Microsecond
}

// MinResponseTime returns the minimum response time
func (s *Stats) MinResponseTime() time.Duration {
	min := s.minResponseTime.Load()
	if min == math.MaxInt64 {
		return 0
	}
	return time.Duration(min) * time.Microsecond
}

// MaxResponseTime returns the maximum response time
func (s *Stats) MaxResponseTime() time.Duration {
	return time.Duration(s.maxResponseTime.Load()) * time.Microsecond
}

// AvgLyricsResponseTime returns the average response time for lyrics lookups
func (s *Stats) AvgLyricsResponseTime() time.Duration {
	count := s.lyricsResponseCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(s.lyricsResponseTime.Load()/count) * time.Microsecond
}

// Snapshot returns a point-in-time snapshot of all stats
func (s *Stats) Snapshot() map[string]interface{} {
	uptime := s.Uptime()

	return map[string]interface{}{
		"server": map[string]interface{}{
			"start_time":     s.StartTime.Format(time.RFC3339),
			"uptime":         uptime.String(),
			"uptime_seconds": int64(uptime.Seconds()),
		},
		"requests": map[string]interface{}{
			"total":  s.TotalRequests.Load(),
			"search": s.SearchRequests.Load(),
			"lyrics": s.LyricsRequests.Load(),
			"find":   s.FindRequests.Load(),
			"health": s.HealthRequests.Load(),
			"stats":  s.StatsRequests.Load(),
			"other":  s.OtherRequests.Load(),
		},
		"cache": map[string]interface{}{
			"hits":          s.CacheHits.Load(),
			"misses":        s.CacheMisses.Load(),
			"negative_hits": s.NegativeCacheHits.Load(),
			"coalesced":     s.CoalescedCalls.Load(),
			"hit_rate":      s.CacheHitRate(),
		},
		"upstream": map[string]interface{}{
			"success":     s.UpstreamSuccess.Load(),
			"not_found":   s.UpstreamNotFound.Load(),
			"timeout":     s.UpstreamTimeout.Load(),
			"unreachable": s.UpstreamUnreachable.Load(),
			"other":       s.UpstreamOther.Load(),
		},
		"rate_limiting": map[string]interface{}{
			"allowed":  s.RateLimitAllowed.Load(),
			"exceeded": s.RateLimitExceeded.Load(),
		},
		"responses": map[string]interface{}{
			"2xx": s.Status2xx.Load(),
			"4xx": s.Status4xx.Load(),
			"5xx": s.Status5xx.Load(),
		},
		"response_times": map[string]interface{}{
			"avg":        s.AvgResponseTime().String(),
			"min":        s.MinResponseTime().String(),
			"max":        s.MaxResponseTime().String(),
			"avg_lyrics": s.AvgLyricsResponseTime().String(),
		},
	}
}
