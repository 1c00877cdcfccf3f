package stats

import (
	"path/filepath"
	"testing"
	"time"
)

func TestStore_SaveAndLoad(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "stats.db")

	original := New()
	original.StartTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	original.RecordRequest("/search")
	original.RecordRequest("/lyrics")
	original.RecordCacheHit()
	original.RecordNegativeCacheHit()
	original.RecordCoalesced()
	original.RecordUpstream("timeout")
	original.RecordRateLimit(false)
	original.RecordStatusCode(200)
	original.RecordResponseTime(10*time.Millisecond, "/lyrics")

	store, err := NewStore(dbPath, original)
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	if err := store.Save(); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := store.db.Close(); err != nil {
		t.Fatalf("close error: %v", err)
	}

	restored := New()
	store, err = NewStore(dbPath, restored)
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	defer store.db.Close()

	if err := store.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	tests := []struct {
		name     string
		got      int64
		expected int64
	}{
		{"total", restored.TotalRequests.Load(), 2},
		{"search", restored.SearchRequests.Load(), 1},
		{"lyrics", restored.LyricsRequests.Load(), 1},
		{"cache hits", restored.CacheHits.Load(), 1},
		{"negative hits", restored.NegativeCacheHits.Load(), 1},
		{"coalesced", restored.CoalescedCalls.Load(), 1},
		{"upstream timeout", restored.UpstreamTimeout.Load(), 1},
		{"rate limit exceeded", restored.RateLimitExceeded.Load(), 1},
		{"2xx", restored.Status2xx.Load(), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.expected {
			t.Errorf("%s = %d, expected %d", tt.name, tt.got, tt.expected)
		}
	}

	if !restored.StartTime.Equal(original.StartTime) {
		t.Errorf("StartTime = %v, expected %v", restored.StartTime, original.StartTime)
	}
	if restored.AvgLyricsResponseTime() != 10*time.Millisecond {
		t.Errorf("AvgLyricsResponseTime = %v, expected 10ms", restored.AvgLyricsResponseTime())
	}
	if restored.MinResponseTime() != 10*time.Millisecond {
		t.Errorf("MinResponseTime = %v, expected 10ms", restored.MinResponseTime())
	}
}

func TestStore_LoadEmpty(t *testing.T) {
	s := New()
	start := s.StartTime

	store, err := NewStore(filepath.Join(t.TempDir(), "nested", "stats.db"), s)
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	defer store.db.Close()

	if err := store.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if s.TotalRequests.Load() != 0 || !s.StartTime.Equal(start) {
		t.Error("Expected an empty store to leave stats untouched")
	}
	if s.MinResponseTime() != 0 {
		t.Errorf("MinResponseTime = %v, expected 0", s.MinResponseTime())
	}
}

func TestStore_CloseSaves(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "stats.db")

	s := New()
	store, err := NewStore(dbPath, s)
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	store.StartAutoSave(time.Hour)
	s.RecordRequest("/find")

	if err := store.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	restored := New()
	store, err = NewStore(dbPath, restored)
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	defer store.db.Close()

	store.Load()
	if restored.FindRequests.Load() != 1 {
		t.Errorf("FindRequests = %d, expected 1", restored.FindRequests.Load())
	}
}
