package logcolors

// ANSI color codes for log prefixes
const (
	Reset  = "\033[0m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"
)

// Server/Init log prefixes
const (
	LogServer = Green + "[Server]" + Reset
	LogConfig = Cyan + "[Config]" + Reset
	LogStats  = Blue + "[Stats]" + Reset
)

// Cache-related log prefixes
const (
	LogCacheInit         = Blue + "[Cache:Init]" + Reset
	LogCache             = Blue + "[Cache]" + Reset
	LogCacheUpstream     = Green + "[Cache:Upstream]" + Reset
	LogCacheNegative     = Cyan + "[Cache:Negative]" + Reset
	LogCacheInvalidation = Blue + "[Cache:Invalidation]" + Reset
)

// Rate limiting log prefixes
const (
	LogRateLimit = Purple + "[RateLimit]" + Reset
)

// Lookup log prefixes
const (
	LogRequest        = Purple + "[Request]" + Reset
	LogSearch         = Blue + "[Search]" + Reset
	LogHTTP           = Cyan + "[HTTP]" + Reset
	LogLyrics         = Blue + "[Lyrics]" + Reset
	LogFallback       = Cyan + "[Fallback]" + Reset
	LogCircuitBreaker = Purple + "[CircuitBreaker]" + Reset
)

// CircuitBreakerPrefix returns a colored circuit breaker prefix with the given name
func CircuitBreakerPrefix(name string) string {
	return Purple + "[CircuitBreaker:" + name + "]" + Reset
}

// Status returns the color for an HTTP status code.
func Status(code int) string {
	switch {
	case code >= 500:
		return Red
	case code >= 400:
		return Yellow
	case code >= 300:
		return Cyan
	case code >= 200:
		return Green
	default:
		return Reset
	}
}
