package stats

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"lyrifind-api/logcolors"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	statsBucketName = "stats"
	statsKey        = "server_stats"
)

// Store persists counters to a dedicated BoltDB file so /stats survives
// restarts.
type Store struct {
	db       *bolt.DB
	stats    *Stats
	mu       sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// PersistedStats is the on-disk form of Stats. Every counter is cumulative
// across restarts.
type PersistedStats struct {
	TotalRequests  int64 `json:"total_requests"`
	SearchRequests int64 `json:"search_requests"`
	LyricsRequests int64 `json:"lyrics_requests"`
	FindRequests   int64 `json:"find_requests"`
	HealthRequests int64 `json:"health_requests"`
	StatsRequests  int64 `json:"stats_requests"`
	OtherRequests  int64 `json:"other_requests"`

	CacheHits         int64 `json:"cache_hits"`
	CacheMisses       int64 `json:"cache_misses"`
	NegativeCacheHits int64 `json:"negative_cache_hits"`
	CoalescedCalls    int64 `json:"coalesced_calls"`

	UpstreamSuccess     int64 `json:"upstream_success"`
	UpstreamNotFound    int64 `json:"upstream_not_found"`
	UpstreamTimeout     int64 `json:"upstream_timeout"`
	UpstreamUnreachable int64 `json:"upstream_unreachable"`
	UpstreamOther       int64 `json:"upstream_other"`

	RateLimitAllowed  int64 `json:"rate_limit_allowed"`
	RateLimitExceeded int64 `json:"rate_limit_exceeded"`

	Status2xx int64 `json:"status_2xx"`
	Status4xx int64 `json:"status_4xx"`
	Status5xx int64 `json:"status_5xx"`

	TotalResponseTime   int64 `json:"total_response_time"`
	ResponseCount       int64 `json:"response_count"`
	MinResponseTime     int64 `json:"min_response_time"`
	MaxResponseTime     int64 `json:"max_response_time"`
	LyricsResponseTime  int64 `json:"lyrics_response_time"`
	LyricsResponseCount int64 `json:"lyrics_response_count"`

	LastSaved    time.Time `json:"last_saved"`
	FirstStarted time.Time `json:"first_started"`
}

// NewStore opens (or creates) the stats database at dbPath. Load and Save
// operate on s.
func NewStore(dbPath string, s *Stats) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create stats directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(statsBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create stats bucket: %w", err)
	}

	log.Infof("%s Stats store initialized at %s", logcolors.LogStats, dbPath)
	return &Store{
		db:       db,
		stats:    s,
		stopChan: make(chan struct{}),
	}, nil
}

// Load applies the persisted counters, if any, to the store's Stats.
func (st *Store) Load() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	var p PersistedStats
	found := false
	err := st.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(statsBucketName))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(statsKey))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &p)
	})
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}
	if !found {
		return nil
	}

	s := st.stats
	s.TotalRequests.Store(p.TotalRequests)
	s.SearchRequests.Store(p.SearchRequests)
	s.LyricsRequests.Store(p.LyricsRequests)
	s.FindRequests.Store(p.FindRequests)
	s.HealthRequests.Store(p.HealthRequests)
	s.StatsRequests.Store(p.StatsRequests)
	s.OtherRequests.Store(p.OtherRequests)
	s.CacheHits.Store(p.CacheHits)
	s.CacheMisses.Store(p.CacheMisses)
	s.NegativeCacheHits.Store(p.NegativeCacheHits)
	s.CoalescedCalls.Store(p.CoalescedCalls)
	s.UpstreamSuccess.Store(p.UpstreamSuccess)
	s.UpstreamNotFound.Store(p.UpstreamNotFound)
	s.UpstreamTimeout.Store(p.UpstreamTimeout)
	s.UpstreamUnreachable.Store(p.UpstreamUnreachable)
	s.UpstreamOther.Store(p.UpstreamOther)
	s.RateLimitAllowed.Store(p.RateLimitAllowed)
	s.RateLimitExceeded.Store(p.RateLimitExceeded)
	s.Status2xx.Store(p.Status2xx)
	s.Status4xx.Store(p.Status4xx)
	s.Status5xx.Store(p.Status5xx)
	s.totalResponseTime.Store(p.TotalResponseTime)
	s.responseCount.Store(p.ResponseCount)
	s.lyricsResponseTime.Store(p.LyricsResponseTime)
	s.lyricsResponseCount.Store(p.LyricsResponseCount)

	if p.MinResponseTime > 0 && p.MinResponseTime < math.MaxInt64 {
		s.minResponseTime.Store(p.MinResponseTime)
	}
	if p.MaxResponseTime > 0 {
		s.maxResponseTime.Store(p.MaxResponseTime)
	}
	if !p.FirstStarted.IsZero() {
		s.StartTime = p.FirstStarted
	}

	log.Infof("%s Loaded persisted stats (total requests: %d, first started: %s)",
		logcolors.LogStats, p.TotalRequests, p.FirstStarted.Format(time.RFC3339))
	return nil
}

// Save writes the current counters to disk.
func (st *Store) Save() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := st.stats
	p := PersistedStats{
		TotalRequests:       s.TotalRequests.Load(),
		SearchRequests:      s.SearchRequests.Load(),
		LyricsRequests:      s.LyricsRequests.Load(),
		FindRequests:        s.FindRequests.Load(),
		HealthRequests:      s.HealthRequests.Load(),
		StatsRequests:       s.StatsRequests.Load(),
		OtherRequests:       s.OtherRequests.Load(),
		CacheHits:           s.CacheHits.Load(),
		CacheMisses:         s.CacheMisses.Load(),
		NegativeCacheHits:   s.NegativeCacheHits.Load(),
		CoalescedCalls:      s.CoalescedCalls.Load(),
		UpstreamSuccess:     s.UpstreamSuccess.Load(),
		UpstreamNotFound:    s.UpstreamNotFound.Load(),
		UpstreamTimeout:     s.UpstreamTimeout.Load(),
		UpstreamUnreachable: s.UpstreamUnreachable.Load(),
		UpstreamOther:       s.UpstreamOther.Load(),
		RateLimitAllowed:    s.RateLimitAllowed.Load(),
		RateLimitExceeded:   s.RateLimitExceeded.Load(),
		Status2xx:           s.Status2xx.Load(),
		Status4xx:           s.Status4xx.Load(),
		Status5xx:           s.Status5xx.Load(),
		TotalResponseTime:   s.totalResponseTime.Load(),
		ResponseCount:       s.responseCount.Load(),
		MinResponseTime:     s.minResponseTime.Load(),
		MaxResponseTime:     s.maxResponseTime.Load(),
		LyricsResponseTime:  s.lyricsResponseTime.Load(),
		LyricsResponseCount: s.lyricsResponseCount.Load(),
		LastSaved:           time.Now(),
		FirstStarted:        s.StartTime,
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	err = st.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(statsBucketName))
		if b == nil {
			return fmt.Errorf("stats bucket not found")
		}
		return b.Put([]byte(statsKey), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}
	return nil
}

// StartAutoSave saves every interval until Close is called.
func (st *Store) StartAutoSave(interval time.Duration) {
	st.wg.Add(1)
	go func() {
		defer st.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := st.Save(); err != nil {
					log.Warnf("%s Failed to auto-save stats: %v", logcolors.LogStats, err)
				}
			case <-st.stopChan:
				return
			}
		}
	}()
	log.Infof("%s Started auto-save with interval %v", logcolors.LogStats, interval)
}

// Close stops auto-save, writes a final snapshot and closes the database.
func (st *Store) Close() error {
	close(st.stopChan)
	st.wg.Wait()

	if err := st.Save(); err != nil {
		log.Warnf("%s Failed to save stats on close: %v", logcolors.LogStats, err)
	} else {
		log.Infof("%s Stats saved on shutdown", logcolors.LogStats)
	}

	return st.db.Close()
}
