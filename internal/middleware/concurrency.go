package middleware

import (
	"log"
	"net/http"
	"sync/atomic"

	"github.com/harliandi/go-img2jpeg/pkg/metrics"
)

// ConcurrencyLimiter caps the number of requests being served at once.
type ConcurrencyLimiter struct {
	slots  chan struct{}
	active atomic.Int64
}

// NewConcurrencyLimiter creates a limiter with max slots.
func NewConcurrencyLimiter(max int) *ConcurrencyLimiter {
	return &ConcurrencyLimiter{slots: make(chan struct{}, max)}
}

// Acquire takes a slot without waiting. It returns false when all slots
// are taken.
func (cl *ConcurrencyLimiter) Acquire() bool {
	select {
	case cl.slots <- struct{}{}:
		metrics.UpdateConcurrency(int(cl.active.Add(1)))
		return true
	default:
		return false
	}
}

// Release gives back a slot taken by Acquire.
func (cl *ConcurrencyLimiter) Release() {
	metrics.UpdateConcurrency(int(cl.active.Add(-1)))
	<-cl.slots
}

// Active returns the number of requests currently holding a slot.
func (cl *ConcurrencyLimiter) Active() int {
	return int(cl.active.Load())
}

// isHealthOrMetrics reports health checks and metrics scrapes. Neither
// limit applies to them.
func isHealthOrMetrics(r *http.Request) bool {
	return r.URL.Path == "/health" || r.URL.Path == "/metrics"
}

// ConcurrencyLimit returns middleware that turns requests away with 503
// while max others are being served. Health checks and metrics scrapes do
// not take a slot.
func ConcurrencyLimit(max int) func(http.Handler) http.Handler {
	cl := NewConcurrencyLimiter(max)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isHealthOrMetrics(r) {
				next.ServeHTTP(w, r)
				return
			}
			if !cl.Acquire() {
				log.Printf("Concurrency limit reached: %d/%d active, rejecting %s %s", cl.Active(), max, r.Method, r.URL.Path)
				metrics.RecordConcurrencyLimitExceeded()
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"error":"Service busy, please try again"}`))
				return
			}

			defer cl.Release()
			next.ServeHTTP(w, r)
		})
	}
}
