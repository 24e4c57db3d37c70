package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// DefaultIdleExpiry is how long an unused client limiter is kept.
const DefaultIdleExpiry = 10 * time.Minute

// IPRateLimiter holds one token bucket per client IP. Buckets of clients
// that stay idle longer than the expiry are evicted.
type IPRateLimiter struct {
	mu       sync.Mutex
	limiters *cache.Cache
	limit    rate.Limit
	burst    int
}

// NewIPRateLimiter allows perMinute requests per client with the given burst.
func NewIPRateLimiter(perMinute float64, burst int, idleExpiry time.Duration) *IPRateLimiter {
	if idleExpiry <= 0 {
		idleExpiry = DefaultIdleExpiry
	}
	if burst <= 0 {
		burst = 1
	}
	return &IPRateLimiter{
		limiters: cache.New(idleExpiry, 2*idleExpiry),
		limit:    rate.Limit(perMinute / 60),
		burst:    burst,
	}
}

// Allow reports whether a request from ip may proceed now.
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	var limiter *rate.Limiter
	if v, found := l.limiters.Get(ip); found {
		limiter = v.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(l.limit, l.burst)
	}
	// refresh the idle expiry on every request
	l.limiters.Set(ip, limiter, cache.DefaultExpiration)
	l.mu.Unlock()

	return limiter.Allow()
}

// Clients returns the number of tracked client IPs.
func (l *IPRateLimiter) Clients() int {
	return l.limiters.ItemCount()
}

// Middleware rejects requests over the limit with 429 and the toast-shaped
// error body. onLimited, if set, is called for each rejection.
func (l *IPRateLimiter) Middleware(onLimited func(c echo.Context)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if l.Allow(c.RealIP()) {
				return next(c)
			}
			if onLimited != nil {
				onLimited(c)
			}
			c.Response().Header().Set("Retry-After", "60")
			return c.JSON(http.StatusTooManyRequests, map[string]any{
				"success": false,
				"error":   "too many requests",
			})
		}
	}
}
