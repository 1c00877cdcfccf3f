package main

import (
	"fmt"
	"lyrifind-api/logcolors"
	"lyrifind-api/middleware"
	"lyrifind-api/services/songs"
	"lyrifind-api/stats"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
)

// queryParam returns the first non-empty value among the given aliases.
func queryParam(r *http.Request, names ...string) string {
	q := r.URL.Query()
	for _, name := range names {
		if v := strings.TrimSpace(q.Get(name)); v != "" {
			return v
		}
	}
	return ""
}

func searchHandler(w http.ResponseWriter, r *http.Request) {
	query := queryParam(r, "q", "query", "s")

	ctx, _ := withCacheStatus(r.Context())
	r = r.WithContext(ctx)

	found := lyricsService.Search(ctx, query)
	log.WithField("request_id", middleware.RequestID(ctx)).
		Infof("%s '%s' -> %d candidates", logcolors.LogSearch, query, len(found))

	Respond(w, r).JSON(SearchResponse{
		Query: query,
		Count: len(found),
		Songs: found,
	})
}

func lyricsHandler(w http.ResponseWriter, r *http.Request) {
	title := queryParam(r, "title", "t", "song", "s")
	artist := queryParam(r, "artist", "a")
	id := queryParam(r, "id")

	if title == "" && artist == "" {
		Respond(w, r).ErrorMessage(http.StatusUnprocessableEntity, "Song title or artist name not provided")
		return
	}
	if id == "" {
		id = songs.SanitizeID(artist + "_" + title)
	}

	ctx, _ := withCacheStatus(r.Context())
	r = r.WithContext(ctx)

	lyrics := lyricsService.Lyrics(ctx, songs.Song{ID: id, Title: title, Artist: artist})
	Respond(w, r).JSON(lyrics)
}

func findHandler(w http.ResponseWriter, r *http.Request) {
	query := queryParam(r, "q", "query", "s")

	ctx, _ := withCacheStatus(r.Context())
	r = r.WithContext(ctx)

	song, lyrics, ok := lyricsService.Find(ctx, query)
	if !ok {
		log.WithField("request_id", middleware.RequestID(ctx)).
			Infof("%s No candidates for '%s'", logcolors.LogSearch, query)
		Respond(w, r).ErrorMessage(http.StatusNotFound, fmt.Sprintf("No songs found for '%s'", query))
		return
	}

	Respond(w, r).JSON(FindResponse{Song: song, Lyrics: lyrics})
}

func getHealthStatus(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status": "ok",
	}

	if lrclibBreaker != nil {
		snap := lrclibBreaker.Snapshot()
		health["circuit_breaker"] = snap.State
		if lrclibBreaker.IsOpen() {
			health["status"] = "degraded"
			health["circuit_breaker_retry_in"] = snap.TimeUntilRetry.String()
		}
	}

	if persistentCache != nil {
		numKeys, _ := persistentCache.Stats()
		health["cache_keys"] = numKeys
	}

	Respond(w, r).JSON(health)
}

func getStats(w http.ResponseWriter, r *http.Request) {
	snapshot := stats.Get().Snapshot()

	if persistentCache != nil {
		numKeys, sizeInKB := persistentCache.Stats()
		snapshot["cache_storage"] = map[string]interface{}{
			"keys":    numKeys,
			"size_kb": sizeInKB,
			"size_mb": float64(sizeInKB) / 1024,
		}
	}

	if lrclibBreaker != nil {
		snap := lrclibBreaker.Snapshot()
		snapshot["circuit_breaker"] = map[string]interface{}{
			"state":              snap.State,
			"failures":           snap.Failures,
			"cooldown_remaining": snap.TimeUntilRetry.String(),
		}
	}

	Respond(w, r).JSON(snapshot)
}

func getCircuitBreakerStatus(w http.ResponseWriter, r *http.Request) {
	if lrclibBreaker == nil {
		Respond(w, r).ErrorMessage(http.StatusServiceUnavailable, "circuit breaker not configured")
		return
	}

	snap := lrclibBreaker.Snapshot()
	Respond(w, r).JSON(map[string]interface{}{
		"name":             snap.Name,
		"state":            snap.State,
		"failures":         snap.Failures,
		"time_until_retry": snap.TimeUntilRetry.String(),
		"last_failure":     snap.LastFailure,
		"config": map[string]interface{}{
			"threshold":    snap.Threshold,
			"cooldown_sec": int(snap.Cooldown.Seconds()),
		},
	})
}

func helpHandler(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(map[string]interface{}{
		"help": "Search LRCLIB for songs and fetch display-ready lyrics.",
		"endpoints": map[string]string{
			"/search?q=Shape of You by Ed Sheeran":       "Candidate songs for a free-text query",
			"/lyrics?title=Shape of You&artist=Ed Sheeran": "Lyrics for one song (optional id)",
			"/find?q=Shape of You by Ed Sheeran":         "Lyrics for the best candidate of a query",
			"/health":                                    "Service health",
			"/stats":                                     "Runtime statistics",
			"/circuit-breaker":                           "Upstream circuit breaker state",
		},
	})
}
