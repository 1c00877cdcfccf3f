package main

import (
	"context"
	"encoding/json"
	"lyrifind-api/cache"
	"lyrifind-api/logcolors"
	"lyrifind-api/services/lrclib"
	"lyrifind-api/services/songs"
	"lyrifind-api/stats"
	"lyrifind-api/utils"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const negativeKeyPrefix = "no_lyrics:"

// cachedSource puts the persistent cache in front of an upstream Source.
// It caches raw LRCLIB responses only, so every Search and Lyrics call still
// runs the resolver and normalizer on fresh values.
type cachedSource struct {
	upstream    songs.Source
	cache       *cache.PersistentCache
	enabled     bool
	searchTTL   time.Duration
	lyricsTTL   time.Duration
	negativeTTL time.Duration
	group       singleflight.Group
}

type cachedSourceOptions struct {
	Enabled     bool
	SearchTTL   time.Duration
	LyricsTTL   time.Duration
	NegativeTTL time.Duration
}

func newCachedSource(upstream songs.Source, pc *cache.PersistentCache, opts cachedSourceOptions) *cachedSource {
	return &cachedSource{
		upstream:    upstream,
		cache:       pc,
		enabled:     opts.Enabled && pc != nil,
		searchTTL:   opts.SearchTTL,
		lyricsTTL:   opts.LyricsTTL,
		negativeTTL: opts.NegativeTTL,
	}
}

// Search implements songs.Source
func (s *cachedSource) Search(ctx context.Context, query string) ([]lrclib.TrackRecord, error) {
	key := buildSearchCacheKey(query)

	if !s.enabled {
		setCacheStatus(ctx, cacheBypass)
		return s.searchUpstream(ctx, query)
	}

	var records []lrclib.TrackRecord
	if s.getJSON(key, &records) {
		stats.Get().RecordCacheHit()
		setCacheStatus(ctx, cacheHit)
		log.Debugf("%s Search hit for: %s", logcolors.LogCacheUpstream, key)
		return records, nil
	}

	stats.Get().RecordCacheMiss()
	setCacheStatus(ctx, cacheMiss)

	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		records, err := s.searchUpstream(context.WithoutCancel(ctx), query)
		if err == nil {
			s.setJSON(key, records, s.searchTTL)
		}
		return records, err
	})
	if shared {
		stats.Get().RecordCoalesced()
	}
	records, _ = v.([]lrclib.TrackRecord)
	return records, err
}

// Get implements songs.Source. A cached "not found" is returned as a
// KindNotFound error without calling upstream.
func (s *cachedSource) Get(ctx context.Context, artist, title string) (*lrclib.TrackRecord, error) {
	key := buildTrackCacheKey(artist, title)

	if !s.enabled {
		setCacheStatus(ctx, cacheBypass)
		return s.getUpstream(ctx, artist, title)
	}

	var record lrclib.TrackRecord
	if s.getJSON(key, &record) {
		stats.Get().RecordCacheHit()
		setCacheStatus(ctx, cacheHit)
		log.Debugf("%s Track hit for: %s", logcolors.LogCacheUpstream, key)
		return &record, nil
	}

	if reason, found := s.getNegativeCache(key); found {
		stats.Get().RecordNegativeCacheHit()
		setCacheStatus(ctx, cacheNegativeHit)
		log.Infof("%s Returning cached 'not found' for: %s", logcolors.LogCacheNegative, key)
		return nil, lrclib.NewError(lrclib.KindNotFound, "get", reason, nil)
	}

	stats.Get().RecordCacheMiss()
	setCacheStatus(ctx, cacheMiss)

	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		record, err := s.getUpstream(context.WithoutCancel(ctx), artist, title)
		switch {
		case err == nil && record != nil:
			s.setJSON(key, record, s.lyricsTTL)
		case shouldNegativeCache(err):
			s.setNegativeCache(key, "track not found (cached 404)")
		}
		return record, err
	})
	if shared {
		stats.Get().RecordCoalesced()
	}
	rec, _ := v.(*lrclib.TrackRecord)
	return rec, err
}

func (s *cachedSource) searchUpstream(ctx context.Context, query string) ([]lrclib.TrackRecord, error) {
	records, err := s.upstream.Search(ctx, query)
	recordUpstream(err)
	return records, err
}

func (s *cachedSource) getUpstream(ctx context.Context, artist, title string) (*lrclib.TrackRecord, error) {
	record, err := s.upstream.Get(ctx, artist, title)
	recordUpstream(err)
	return record, err
}

func recordUpstream(err error) {
	if err == nil {
		stats.Get().RecordUpstream("")
		return
	}
	stats.Get().RecordUpstream(lrclib.Classify(err).String())
}

// Basic cache operations

func (s *cachedSource) getJSON(key string, v interface{}) bool {
	cached, ok := s.cache.Get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(cached), v); err != nil {
		log.Warnf("%s Dropping unreadable entry %s: %v", logcolors.LogCache, key, err)
		s.cache.Delete(key)
		return false
	}
	return true
}

func (s *cachedSource) setJSON(key string, v interface{}, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Errorf("%s Error marshaling cache value for %s: %v", logcolors.LogCache, key, err)
		return
	}
	if err := s.cache.Set(key, string(data), ttl); err != nil {
		log.Errorf("%s Error setting cache value: %v", logcolors.LogCache, err)
	}
}

// Negative cache operations

// getNegativeCache returns the stored reason if LRCLIB recently had no
// track for key.
func (s *cachedSource) getNegativeCache(key string) (string, bool) {
	var entry NegativeCacheEntry
	if !s.getJSON(negativeKeyPrefix+key, &entry) {
		return "", false
	}
	return entry.Reason, true
}

func (s *cachedSource) setNegativeCache(key, reason string) {
	entry := NegativeCacheEntry{
		Reason:    reason,
		Timestamp: time.Now().Unix(),
	}
	s.setJSON(negativeKeyPrefix+key, entry, s.negativeTTL)
	log.Infof("%s Cached 'not found' for key: %s (reason: %s)", logcolors.LogCacheNegative, key, reason)
}

// shouldNegativeCache reports whether err is a permanent "no such track".
// Timeouts and network failures are transient and never cached.
func shouldNegativeCache(err error) bool {
	return err != nil && lrclib.IsNotFound(err)
}

// Cache key builders

func buildSearchCacheKey(query string) string {
	return utils.CacheKey("search", query)
}

func buildTrackCacheKey(artist, title string) string {
	return utils.CacheKey("get", artist, title)
}
