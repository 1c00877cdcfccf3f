package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"lyrifind-api/logcolors"
	"lyrifind-api/utils"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const bucketName = "upstream"

var errBucketMissing = errors.New("bucket not found")

// PersistentCache wraps BoltDB with an in-memory cache for fast access.
// Entries carry an expiry; expired entries are never returned.
type PersistentCache struct {
	db                 *bolt.DB
	memCache           sync.Map
	dbPath             string
	compressionEnabled bool
	now                func() time.Time
}

// CacheEntry is a cached value, possibly compressed. ExpiresAt is a unix
// timestamp in seconds; zero means the entry never expires.
type CacheEntry struct {
	Value     string `json:"value"`
	ExpiresAt int64  `json:"expiresAt,omitempty"`
}

// Expired reports whether the entry is past its expiry at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return e.ExpiresAt > 0 && now.Unix() >= e.ExpiresAt
}

// NewPersistentCache opens (or creates) the BoltDB file at dbPath and loads
// every live entry into memory.
func NewPersistentCache(dbPath string, compressionEnabled bool) (*PersistentCache, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	if info, err := os.Stat(dbPath); err == nil {
		log.Infof("%s Found existing database file at: %s (size: %d bytes)", logcolors.LogCacheInit, dbPath, info.Size())
	} else {
		log.Infof("%s Creating new database file at: %s", logcolors.LogCacheInit, dbPath)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	pc := &PersistentCache{
		db:                 db,
		dbPath:             dbPath,
		compressionEnabled: compressionEnabled,
		now:                time.Now,
	}

	if err := pc.loadToMemory(); err != nil {
		log.Warnf("%s Failed to preload cache to memory: %v", logcolors.LogCache, err)
	}

	log.Infof("%s Persistent cache initialized at %s (compression: %v)", logcolors.LogCache, dbPath, compressionEnabled)
	return pc, nil
}

// loadToMemory copies live entries from disk into the memory layer.
func (pc *PersistentCache) loadToMemory() error {
	now := pc.now()
	loaded, skipped := 0, 0

	err := pc.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			var entry CacheEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				log.Warnf("%s Failed to unmarshal cache entry for key %s: %v", logcolors.LogCache, string(k), err)
				return nil
			}
			if entry.Expired(now) {
				skipped++
				return nil
			}
			pc.memCache.Store(string(k), entry)
			loaded++
			return nil
		})
	})
	if err != nil {
		return err
	}

	log.Infof("%s Loaded %d entries from disk to memory (%d expired skipped)", logcolors.LogCache, loaded, skipped)
	return nil
}

// Get returns the decompressed value for key. Expired entries are removed
// and reported as missing.
func (pc *PersistentCache) Get(key string) (string, bool) {
	entry, ok := pc.lookup(key)
	if !ok {
		return "", false
	}

	if entry.Expired(pc.now()) {
		if err := pc.Delete(key); err != nil {
			log.Warnf("%s Failed to drop expired key %s: %v", logcolors.LogCache, key, err)
		}
		return "", false
	}

	if !pc.compressionEnabled {
		return entry.Value, true
	}

	value, err := utils.DecompressString(entry.Value)
	if err != nil {
		log.Errorf("%s Error decompressing cache value for key %s: %v", logcolors.LogCache, key, err)
		return "", false
	}
	return value, true
}

// lookup checks memory first, then disk, promoting disk hits into memory.
func (pc *PersistentCache) lookup(key string) (CacheEntry, bool) {
	if v, ok := pc.memCache.Load(key); ok {
		return v.(CacheEntry), true
	}

	var entry CacheEntry
	found := false
	err := pc.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return errBucketMissing
		}
		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &entry); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return CacheEntry{}, false
	}

	pc.memCache.Store(key, entry)
	return entry, true
}

// Set stores value under key for ttl. A ttl of zero or less never expires.
func (pc *PersistentCache) Set(key, value string, ttl time.Duration) error {
	stored := value
	if pc.compressionEnabled {
		compressed, err := utils.CompressString(value)
		if err != nil {
			log.Errorf("%s Error compressing cache value for key %s: %v", logcolors.LogCache, key, err)
			return err
		}
		stored = compressed
	}

	entry := CacheEntry{Value: stored}
	if ttl > 0 {
		entry.ExpiresAt = pc.now().Add(ttl).Unix()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	pc.memCache.Store(key, entry)

	return pc.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return errBucketMissing
		}
		return b.Put([]byte(key), data)
	})
}

// Delete removes a key from cache
func (pc *PersistentCache) Delete(key string) error {
	pc.memCache.Delete(key)

	return pc.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return errBucketMissing
		}
		return b.Delete([]byte(key))
	})
}

// PurgeExpired deletes every expired entry from memory and disk and returns
// how many were removed.
func (pc *PersistentCache) PurgeExpired() (int, error) {
	now := pc.now()
	var expired [][]byte

	err := pc.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return errBucketMissing
		}

		err := b.ForEach(func(k, v []byte) error {
			var entry CacheEntry
			if err := json.Unmarshal(v, &entry); err != nil || entry.Expired(now) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, k := range expired {
		pc.memCache.Delete(string(k))
	}

	// Entries only present in memory (disk write failed) still need sweeping.
	pc.memCache.Range(func(k, v any) bool {
		if v.(CacheEntry).Expired(now) {
			pc.memCache.Delete(k)
		}
		return true
	})

	return len(expired), nil
}

// Range iterates over all cache entries
func (pc *PersistentCache) Range(fn func(key string, entry CacheEntry) bool) {
	pc.memCache.Range(func(k, v any) bool {
		return fn(k.(string), v.(CacheEntry))
	})
}

// Stats returns the number of keys held in memory and their approximate
// stored size in KB.
func (pc *PersistentCache) Stats() (numKeys int, sizeInKB int) {
	pc.Range(func(key string, entry CacheEntry) bool {
		numKeys++
		sizeInKB += len(key) + len(entry.Value)
		return true
	})
	sizeInKB = sizeInKB / 1024
	return
}

// Close closes the database connection
func (pc *PersistentCache) Close() error {
	if pc.db != nil {
		return pc.db.Close()
	}
	return nil
}
