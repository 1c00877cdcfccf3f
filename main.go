package main

import (
	"context"
	"errors"
	"lyrifind-api/cache"
	"lyrifind-api/circuitbreaker"
	"lyrifind-api/config"
	"lyrifind-api/logcolors"
	"lyrifind-api/middleware"
	"lyrifind-api/services/lrclib"
	"lyrifind-api/services/songs"
	"lyrifind-api/stats"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var conf = config.Get()

var (
	persistentCache *cache.PersistentCache
	lrclibBreaker   *circuitbreaker.CircuitBreaker
	lyricsService   *songs.Service
)

func init() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
}

func main() {
	var err error
	persistentCache, err = cache.NewPersistentCache(conf.Configuration.CacheDBPath, conf.FeatureFlags.CacheCompression)
	if err != nil {
		log.Fatalf("%s Failed to open cache: %v", logcolors.LogCacheInit, err)
	}
	defer persistentCache.Close()

	statsStore, err := stats.NewStore(conf.Configuration.StatsDBPath, stats.Get())
	if err != nil {
		log.Warnf("%s Stats will not persist: %v", logcolors.LogStats, err)
	} else {
		if err := statsStore.Load(); err != nil {
			log.Warnf("%s %v", logcolors.LogStats, err)
		}
		if interval := time.Duration(conf.Configuration.StatsAutoSaveIntervalSecs) * time.Second; interval > 0 {
			statsStore.StartAutoSave(interval)
		}
		defer statsStore.Close()
	}

	lrclibBreaker = circuitbreaker.New(circuitbreaker.Config{
		Name:          "lrclib",
		Threshold:     conf.Configuration.CircuitBreakerThreshold,
		Cooldown:      time.Duration(conf.Configuration.CircuitBreakerCooldownSecs) * time.Second,
		OnStateChange: logBreakerTransition,
	})

	client := lrclib.New(lrclib.Options{
		BaseURL:   conf.Upstream.BaseURL,
		UserAgent: conf.Upstream.UserAgent,
		Timeout:   conf.UpstreamTimeout(),
		Breaker:   lrclibBreaker,
	})

	upstream := newCachedSource(client, persistentCache, cachedSourceOptions{
		Enabled:     conf.FeatureFlags.UpstreamCache,
		SearchTTL:   conf.SearchCacheTTL(),
		LyricsTTL:   conf.LyricsCacheTTL(),
		NegativeTTL: conf.NegativeCacheTTL(),
	})
	lyricsService = songs.NewService(upstream)

	limiter := middleware.NewIPRateLimiter(rate.Limit(conf.Configuration.RateLimitPerSecond), conf.Configuration.RateLimitBurstLimit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go invalidateCache(ctx, limiter)

	server := &http.Server{
		Addr:              ":" + conf.Port,
		Handler:           buildHandler(limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("%s Server listening on port %s (upstream: %s)", logcolors.LogServer, conf.Port, conf.Upstream.BaseURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("%s Server failed: %v", logcolors.LogServer, err)
		}
	}()

	<-ctx.Done()
	log.Infof("%s Shutting down server...", logcolors.LogServer)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("%s Server forced to shutdown: %v", logcolors.LogServer, err)
	}

	log.Infof("%s Server exited", logcolors.LogServer)
}

// buildHandler assembles the router and the middleware chain:
// logging -> cors -> rate limit -> routes.
func buildHandler(limiter *middleware.IPRateLimiter) http.Handler {
	router := mux.NewRouter()
	setupRoutes(router)

	c := cors.New(cors.Options{
		AllowedOrigins: conf.Configuration.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		ExposedHeaders: []string{"X-Cache-Status", middleware.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
	})

	return middleware.LoggingMiddleware(c.Handler(limitMiddleware(router, limiter)))
}

func limitMiddleware(next http.Handler, limiter *middleware.IPRateLimiter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		allowed, remaining := limiter.Allow(ip)
		stats.Get().RecordRateLimit(allowed)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			log.Warnf("%s IP %s exceeded rate limit", logcolors.LogRateLimit, ip)
			w.Header().Set("Retry-After", "1")
			Respond(w, r).ErrorMessage(http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr so one client shares one bucket
// across connections.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func logBreakerTransition(name string, from, to circuitbreaker.State) {
	prefix := logcolors.CircuitBreakerPrefix(name)
	if to == circuitbreaker.StateOpen {
		log.Warnf("%s %s -> %s", prefix, from, to)
		return
	}
	log.Infof("%s %s -> %s", prefix, from, to)
}

// invalidateCache periodically purges expired cache entries and forgets idle
// rate limiter clients until ctx is done.
func invalidateCache(ctx context.Context, limiter *middleware.IPRateLimiter) {
	interval := time.Duration(conf.Configuration.CacheInvalidationIntervalInSeconds) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}
	idle := time.Duration(conf.Configuration.RateLimitIdleSecs) * time.Second

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(limiter, idle)
		}
	}
}

func sweep(limiter *middleware.IPRateLimiter, idle time.Duration) {
	if persistentCache != nil {
		removed, err := persistentCache.PurgeExpired()
		if err != nil {
			log.Errorf("%s Purge failed: %v", logcolors.LogCacheInvalidation, err)
		} else if removed > 0 {
			log.Infof("%s Purged %d expired entries", logcolors.LogCacheInvalidation, removed)
		}
	}

	if limiter != nil && idle > 0 {
		if dropped := limiter.Cleanup(idle); dropped > 0 {
			log.Debugf("%s Dropped %d idle clients", logcolors.LogRateLimit, dropped)
		}
	}
}
