package main

import (
	"context"
	"encoding/json"
	"errors"
	"lyrifind-api/cache"
	"lyrifind-api/circuitbreaker"
	"lyrifind-api/middleware"
	"lyrifind-api/services/lrclib"
	"lyrifind-api/services/songs"
	"lyrifind-api/stats"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// setupTestCache creates a temporary cache and installs it as persistentCache
func setupTestCache(t *testing.T) *cache.PersistentCache {
	t.Helper()

	pc, err := cache.NewPersistentCache(filepath.Join(t.TempDir(), "test_cache.db"), false)
	if err != nil {
		t.Fatalf("Failed to create test cache: %v", err)
	}

	previous := persistentCache
	persistentCache = pc
	t.Cleanup(func() {
		persistentCache = previous
		pc.Close()
	})
	return pc
}

type fakeUpstream struct {
	searchCalls atomic.Int32
	getCalls    atomic.Int32
	records     []lrclib.TrackRecord
	track       *lrclib.TrackRecord
	err         error
	release     chan struct{}
}

func (f *fakeUpstream) Search(ctx context.Context, query string) ([]lrclib.TrackRecord, error) {
	f.searchCalls.Add(1)
	if f.release != nil {
		<-f.release
	}
	return f.records, f.err
}

func (f *fakeUpstream) Get(ctx context.Context, artist, title string) (*lrclib.TrackRecord, error) {
	f.getCalls.Add(1)
	return f.track, f.err
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func newTestSource(t *testing.T, up songs.Source, enabled bool) *cachedSource {
	t.Helper()
	return newCachedSource(up, setupTestCache(t), cachedSourceOptions{
		Enabled:     enabled,
		SearchTTL:   time.Hour,
		LyricsTTL:   time.Hour,
		NegativeTTL: time.Hour,
	})
}

func TestShouldNegativeCache(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"lrclib not found", lrclib.NewError(lrclib.KindNotFound, "get", "track not found (404)", nil), true},
		{"wrapped not found", errors.Join(errors.New("lookup"), lrclib.NewError(lrclib.KindNotFound, "get", "x", nil)), true},
		{"timeout", lrclib.NewError(lrclib.KindTimeout, "get", "request timed out", nil), false},
		{"unreachable", lrclib.NewError(lrclib.KindUnreachable, "get", "request failed", nil), false},
		{"circuit open", lrclib.NewError(lrclib.KindOther, "get", "circuit open", circuitbreaker.ErrCircuitOpen), false},
		{"server error", lrclib.NewError(lrclib.KindOther, "get", "unexpected status 500", nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldNegativeCache(tt.err); got != tt.expected {
				t.Errorf("shouldNegativeCache(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestBuildCacheKeys(t *testing.T) {
	if a, b := buildSearchCacheKey("Shape of You"), buildSearchCacheKey("  shape  OF you "); a != b {
		t.Errorf("Expected search keys to match, got %q and %q", a, b)
	}
	if a, b := buildTrackCacheKey("Ed Sheeran", "Perfect"), buildTrackCacheKey("ED SHEERAN", "perfect"); a != b {
		t.Errorf("Expected track keys to match, got %q and %q", a, b)
	}
	if buildTrackCacheKey("a", "b") == buildTrackCacheKey("b", "a") {
		t.Error("Expected artist and title order to matter")
	}
	if buildSearchCacheKey("x") == buildTrackCacheKey("x", "") {
		t.Error("Expected search and track keys not to collide")
	}
}

func TestCachedSource_SearchCaching(t *testing.T) {
	up := &fakeUpstream{records: []lrclib.TrackRecord{{ID: intPtr(1), TrackName: strPtr("Halo"), ArtistName: strPtr("Beyoncé")}}}
	src := newTestSource(t, up, true)

	ctx, status := withCacheStatus(context.Background())
	first, err := src.Search(ctx, "Halo")
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if status.value != cacheMiss {
		t.Errorf("First call status = %q, want MISS", status.value)
	}

	ctx, status = withCacheStatus(context.Background())
	second, err := src.Search(ctx, "  halo ")
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if status.value != cacheHit {
		t.Errorf("Second call status = %q, want HIT", status.value)
	}

	if up.searchCalls.Load() != 1 {
		t.Errorf("Expected 1 upstream search, got %d", up.searchCalls.Load())
	}
	if len(second) != 1 || *second[0].TrackName != *first[0].TrackName {
		t.Errorf("Cached records differ: %v vs %v", second, first)
	}
}

func TestCachedSource_SearchErrorsAreNotCached(t *testing.T) {
	up := &fakeUpstream{err: lrclib.NewError(lrclib.KindTimeout, "search", "request timed out", nil)}
	src := newTestSource(t, up, true)

	for i := 0; i < 2; i++ {
		if _, err := src.Search(context.Background(), "halo"); lrclib.Classify(err) != lrclib.KindTimeout {
			t.Fatalf("Expected timeout, got %v", err)
		}
	}
	if up.searchCalls.Load() != 2 {
		t.Errorf("Expected every failed search to reach upstream, got %d calls", up.searchCalls.Load())
	}
}

func TestCachedSource_NegativeCache(t *testing.T) {
	up := &fakeUpstream{err: lrclib.NewError(lrclib.KindNotFound, "get", "track not found (404)", nil)}
	src := newTestSource(t, up, true)
	before := stats.Get().NegativeCacheHits.Load()

	if _, err := src.Get(context.Background(), "Nobody", "Nothing"); !lrclib.IsNotFound(err) {
		t.Fatalf("Expected not found, got %v", err)
	}

	ctx, status := withCacheStatus(context.Background())
	_, err := src.Get(ctx, "nobody", "NOTHING")
	if !lrclib.IsNotFound(err) {
		t.Fatalf("Expected cached not found, got %v", err)
	}
	if status.value != cacheNegativeHit {
		t.Errorf("status = %q, want NEGATIVE_HIT", status.value)
	}
	if up.getCalls.Load() != 1 {
		t.Errorf("Expected 1 upstream get, got %d", up.getCalls.Load())
	}
	if stats.Get().NegativeCacheHits.Load() != before+1 {
		t.Error("Expected negative hit to be counted")
	}
}

func TestCachedSource_TransientGetErrorsAreNotCached(t *testing.T) {
	up := &fakeUpstream{err: lrclib.NewError(lrclib.KindUnreachable, "get", "request failed", nil)}
	src := newTestSource(t, up, true)

	src.Get(context.Background(), "a", "b")
	src.Get(context.Background(), "a", "b")

	if up.getCalls.Load() != 2 {
		t.Errorf("Expected 2 upstream gets, got %d", up.getCalls.Load())
	}
	if _, found := src.getNegativeCache(buildTrackCacheKey("a", "b")); found {
		t.Error("Expected no negative entry for a transient failure")
	}
}

func TestCachedSource_GetCaching(t *testing.T) {
	up := &fakeUpstream{track: &lrclib.TrackRecord{PlainLyrics: "Remember those walls I built"}}
	src := newTestSource(t, up, true)

	src.Get(context.Background(), "Beyoncé", "Halo")
	record, err := src.Get(context.Background(), "Beyoncé", "Halo")

	if err != nil || record == nil || record.PlainLyrics != "Remember those walls I built" {
		t.Fatalf("Unexpected cached record %+v, %v", record, err)
	}
	if up.getCalls.Load() != 1 {
		t.Errorf("Expected 1 upstream get, got %d", up.getCalls.Load())
	}
}

func TestCachedSource_Bypass(t *testing.T) {
	up := &fakeUpstream{records: []lrclib.TrackRecord{}}
	src := newTestSource(t, up, false)

	for i := 0; i < 3; i++ {
		ctx, status := withCacheStatus(context.Background())
		src.Search(ctx, "halo")
		if status.value != cacheBypass {
			t.Errorf("status = %q, want BYPASS", status.value)
		}
	}
	if up.searchCalls.Load() != 3 {
		t.Errorf("Expected 3 upstream searches, got %d", up.searchCalls.Load())
	}
	if n, _ := src.cache.Stats(); n != 0 {
		t.Errorf("Expected nothing cached, got %d keys", n)
	}
}

func TestCachedSource_CoalescesConcurrentSearches(t *testing.T) {
	up := &fakeUpstream{records: []lrclib.TrackRecord{}, release: make(chan struct{})}
	src := newTestSource(t, up, true)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			src.Search(context.Background(), "halo")
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(up.release)
	wg.Wait()

	if up.searchCalls.Load() != 1 {
		t.Errorf("Expected 1 upstream search for 5 concurrent callers, got %d", up.searchCalls.Load())
	}
}

// newTestServer wires a fake LRCLIB, the real client, the cache and the
// service into the full HTTP handler.
func newTestServer(t *testing.T, lrclibHandler http.HandlerFunc) (http.Handler, *atomic.Int32) {
	t.Helper()

	var upstreamCalls atomic.Int32
	fake := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls.Add(1)
		lrclibHandler(w, r)
	}))
	t.Cleanup(fake.Close)

	breaker := circuitbreaker.New(circuitbreaker.Config{Name: "lrclib", Threshold: 2, Cooldown: time.Minute})
	client := lrclib.New(lrclib.Options{BaseURL: fake.URL, Timeout: time.Second, Breaker: breaker})

	pc := setupTestCache(t)
	src := newCachedSource(client, pc, cachedSourceOptions{
		Enabled:     true,
		SearchTTL:   time.Hour,
		LyricsTTL:   time.Hour,
		NegativeTTL: time.Hour,
	})

	prevBreaker, prevService := lrclibBreaker, lyricsService
	lrclibBreaker = breaker
	lyricsService = songs.NewService(src)
	t.Cleanup(func() {
		lrclibBreaker, lyricsService = prevBreaker, prevService
	})

	limiter := middleware.NewIPRateLimiter(rate.Limit(1000), 1000)
	return buildHandler(limiter), &upstreamCalls
}

func fakeLRCLIB(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/search":
		if strings.Contains(strings.ToLower(r.URL.Query().Get("q")), "halo") {
			w.Write([]byte(`[{"id": 3, "trackName": "Halo", "artistName": "Beyoncé"}]`))
			return
		}
		w.Write([]byte(`[]`))
	case "/get":
		if r.URL.Query().Get("track_name") == "Halo" {
			w.Write([]byte(`{"id": 3, "trackName": "Halo", "artistName": "Beyoncé",
				"syncedLyrics": "[00:01.00]Remember those walls I built\n[00:04.00] \n[00:06.00]Well, baby, they're tumbling down"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":404,"name":"TrackNotFound","message":"Failed to find specified track"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", target, nil))
	return rec
}

func TestSearchHandler(t *testing.T) {
	h, upstreamCalls := newTestServer(t, fakeLRCLIB)

	rec := get(t, h, "/search?q=halo")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp SearchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Query != "halo" || resp.Count != 1 || resp.Songs[0] != (songs.Song{ID: "3", Title: "Halo", Artist: "Beyoncé"}) {
		t.Errorf("Unexpected response %+v", resp)
	}
	if got := rec.Header().Get("X-Cache-Status"); got != cacheMiss {
		t.Errorf("X-Cache-Status = %q, want MISS", got)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("Expected a request id header")
	}

	rec = get(t, h, "/search?query=HALO")
	if got := rec.Header().Get("X-Cache-Status"); got != cacheHit {
		t.Errorf("X-Cache-Status = %q, want HIT", got)
	}
	if upstreamCalls.Load() != 1 {
		t.Errorf("Expected 1 upstream call, got %d", upstreamCalls.Load())
	}
}

func TestSearchHandler_Fallbacks(t *testing.T) {
	h, upstreamCalls := newTestServer(t, fakeLRCLIB)

	tests := []struct {
		name     string
		target   string
		expected []songs.Song
	}{
		{"blank query", "/search?q=%20%20", []songs.Song{}},
		{"split fallback", "/search?q=Shape+of+You+by+Ed+Sheeran",
			[]songs.Song{{ID: "Ed_Sheeran_Shape_of_You", Title: "Shape of You", Artist: "Ed Sheeran"}}},
		{"no separator", "/search?s=California+Gurls",
			[]songs.Song{{ID: "California_Gurls", Title: "California Gurls", Artist: songs.UnknownArtist}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.target)

			var resp SearchResponse
			json.NewDecoder(rec.Body).Decode(&resp)
			if resp.Count != len(tt.expected) || len(resp.Songs) != len(tt.expected) {
				t.Fatalf("Expected %v, got %+v", tt.expected, resp)
			}
			for i := range tt.expected {
				if resp.Songs[i] != tt.expected[i] {
					t.Errorf("songs[%d] = %+v, want %+v", i, resp.Songs[i], tt.expected[i])
				}
			}
		})
	}

	if upstreamCalls.Load() != 2 {
		t.Errorf("Expected blank query to skip upstream, got %d calls", upstreamCalls.Load())
	}
}

func TestLyricsHandler(t *testing.T) {
	h, _ := newTestServer(t, fakeLRCLIB)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantID     string
		wantText   string
	}{
		{
			name:       "synced lyrics stripped",
			target:     "/lyrics?title=Halo&artist=Beyonc%C3%A9&id=3",
			wantStatus: http.StatusOK,
			wantID:     "3",
			wantText:   "Remember those walls I built\nWell, baby, they're tumbling down",
		},
		{
			name:       "aliases and synthesized id",
			target:     "/lyrics?s=Halo&a=Beyonc%C3%A9",
			wantStatus: http.StatusOK,
			wantID:     "Beyonc_Halo",
			wantText:   "Remember those walls I built\nWell, baby, they're tumbling down",
		},
		{
			name:       "unknown artist",
			target:     "/lyrics?title=California+Gurls&artist=Unknown+Artist",
			wantStatus: http.StatusOK,
			wantID:     "Unknown_Artist_California_Gurls",
			wantText:   songs.MsgNeedArtist,
		},
		{
			name:       "not in database",
			target:     "/lyrics?title=Nope&artist=Nobody",
			wantStatus: http.StatusOK,
			wantID:     "Nobody_Nope",
			wantText:   "'Nope' by 'Nobody' was not found in the database.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.target)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var lyrics songs.Lyrics
			json.NewDecoder(rec.Body).Decode(&lyrics)
			if lyrics.SongID != tt.wantID {
				t.Errorf("songId = %q, want %q", lyrics.SongID, tt.wantID)
			}
			if !strings.HasPrefix(lyrics.Text, tt.wantText) {
				t.Errorf("lyrics = %q, want prefix %q", lyrics.Text, tt.wantText)
			}
		})
	}
}

func TestLyricsHandler_MissingParams(t *testing.T) {
	h, upstreamCalls := newTestServer(t, fakeLRCLIB)

	rec := get(t, h, "/lyrics?id=3")

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
	if upstreamCalls.Load() != 0 {
		t.Errorf("Expected no upstream call, got %d", upstreamCalls.Load())
	}
}

func TestLyricsHandler_NegativeCache(t *testing.T) {
	h, upstreamCalls := newTestServer(t, fakeLRCLIB)

	get(t, h, "/lyrics?title=Nope&artist=Nobody")
	rec := get(t, h, "/lyrics?title=nope&artist=NOBODY")

	if got := rec.Header().Get("X-Cache-Status"); got != cacheNegativeHit {
		t.Errorf("X-Cache-Status = %q, want NEGATIVE_HIT", got)
	}
	if upstreamCalls.Load() != 1 {
		t.Errorf("Expected 1 upstream call, got %d", upstreamCalls.Load())
	}

	var lyrics songs.Lyrics
	json.NewDecoder(rec.Body).Decode(&lyrics)
	if !strings.Contains(lyrics.Text, "not found in the database") {
		t.Errorf("Expected not-in-database text, got %q", lyrics.Text)
	}
}

func TestFindHandler(t *testing.T) {
	h, _ := newTestServer(t, fakeLRCLIB)

	rec := get(t, h, "/find?q=halo")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp FindResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Song.ID != "3" || resp.Lyrics.SongID != "3" {
		t.Errorf("Unexpected response %+v", resp)
	}
	if !strings.HasPrefix(resp.Lyrics.Text, "Remember those walls") {
		t.Errorf("lyrics = %q", resp.Lyrics.Text)
	}

	rec = get(t, h, "/find?q=")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Blank query status = %d, want 404", rec.Code)
	}
}

func TestUpstreamOutageDegradesGracefully(t *testing.T) {
	h, upstreamCalls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	// Search fails upstream, so the failure-path split applies with roles swapped.
	rec := get(t, h, "/search?q=Shape+of+You+by+Ed+Sheeran")
	var resp SearchResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if rec.Code != http.StatusOK || resp.Count != 1 {
		t.Fatalf("status = %d, response %+v", rec.Code, resp)
	}
	if resp.Songs[0].Title != "Ed Sheeran" || resp.Songs[0].Artist != "Shape of You" {
		t.Errorf("Unexpected failure-path song %+v", resp.Songs[0])
	}

	get(t, h, "/lyrics?title=Halo&artist=Beyonce")

	rec = get(t, h, "/health")
	var health map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&health)
	if health["status"] != "degraded" || health["circuit_breaker"] != "OPEN" {
		t.Errorf("Expected degraded health with OPEN breaker, got %v", health)
	}

	rec = get(t, h, "/lyrics?title=Halo&artist=Beyonce")
	var lyrics songs.Lyrics
	json.NewDecoder(rec.Body).Decode(&lyrics)
	if !strings.HasPrefix(lyrics.Text, "Error loading lyrics for 'Halo' by 'Beyonce'") {
		t.Errorf("Expected generic error text, got %q", lyrics.Text)
	}
	if upstreamCalls.Load() != 2 {
		t.Errorf("Expected the open breaker to stop upstream calls, got %d", upstreamCalls.Load())
	}
}

func TestHealthAndStatsEndpoints(t *testing.T) {
	h, _ := newTestServer(t, fakeLRCLIB)

	rec := get(t, h, "/health")
	var health map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&health)
	if health["status"] != "ok" || health["circuit_breaker"] != "CLOSED" {
		t.Errorf("Unexpected health %v", health)
	}
	if _, ok := health["cache_keys"]; !ok {
		t.Error("Expected cache_keys in health")
	}

	rec = get(t, h, "/stats")
	var snapshot map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&snapshot)
	for _, key := range []string{"requests", "cache", "upstream", "cache_storage", "circuit_breaker"} {
		if _, ok := snapshot[key]; !ok {
			t.Errorf("Expected %q in stats", key)
		}
	}

	rec = get(t, h, "/circuit-breaker")
	var cb map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&cb)
	if cb["state"] != "CLOSED" || cb["name"] != "lrclib" {
		t.Errorf("Unexpected breaker status %v", cb)
	}

	rec = get(t, h, "/")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "/search") {
		t.Errorf("Unexpected help response %d %s", rec.Code, rec.Body.String())
	}
}

func TestLimitMiddleware(t *testing.T) {
	limiter := middleware.NewIPRateLimiter(rate.Limit(0.001), 2)
	handler := limitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), limiter)

	request := func(remoteAddr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/search?q=x", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	// Different ports from one host share a bucket.
	if rec := request("192.168.1.1:1000"); rec.Code != http.StatusOK || rec.Header().Get("X-RateLimit-Remaining") != "1" {
		t.Errorf("first: %d remaining=%s", rec.Code, rec.Header().Get("X-RateLimit-Remaining"))
	}
	if rec := request("192.168.1.1:2000"); rec.Code != http.StatusOK {
		t.Errorf("second: %d", rec.Code)
	}

	rec := request("192.168.1.1:3000")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("third: %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
	if rec.Header().Get("X-RateLimit-Limit") != "2" {
		t.Errorf("X-RateLimit-Limit = %q", rec.Header().Get("X-RateLimit-Limit"))
	}

	if rec := request("10.0.0.1:1000"); rec.Code != http.StatusOK {
		t.Errorf("other client: %d", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remoteAddr string
		expected   string
	}{
		{"192.168.1.1:1234", "192.168.1.1"},
		{"[::1]:8080", "::1"},
		{"no-port", "no-port"},
	}

	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = tt.remoteAddr
		if got := clientIP(r); got != tt.expected {
			t.Errorf("clientIP(%q) = %q, want %q", tt.remoteAddr, got, tt.expected)
		}
	}
}

func TestSweep(t *testing.T) {
	pc := setupTestCache(t)
	pc.Set("stale", "x", time.Nanosecond)
	pc.Set("fresh", "y", time.Hour)

	limiter := middleware.NewIPRateLimiter(1, 1)
	limiter.GetLimiter("1.2.3.4")

	sweep(limiter, time.Nanosecond)

	if _, ok := pc.Get("fresh"); !ok {
		t.Error("Expected fresh entry to survive")
	}
	if n, _ := pc.Stats(); n != 1 {
		t.Errorf("Expected 1 key after sweep, got %d", n)
	}
	if limiter.Size() != 0 {
		t.Errorf("Expected idle limiter to be dropped, got %d", limiter.Size())
	}
}
