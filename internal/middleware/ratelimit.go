package middleware

import (
	"fmt"
	"log"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/harliandi/go-img2jpeg/pkg/jpeg"
	"github.com/harliandi/go-img2jpeg/pkg/metrics"
)

// costUnit is the payload size one extra rate-limit token pays for.
const costUnit = 1 << 20

// RateLimiter is a per-client token bucket where requests may cost more
// than one token.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64       // tokens per second
	burst   float64       // bucket capacity
	ttl     time.Duration // idle buckets older than this are dropped
}

type bucket struct {
	tokens  float64
	lastRef time.Time
}

// NewRateLimiter creates a limiter refilling rate tokens per second up to
// burst.
func NewRateLimiter(rate, burst int) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		rate:    float64(rate),
		burst:   float64(max(burst, 1)),
		ttl:     5 * time.Minute,
	}
	go rl.cleanup()
	return rl
}

// Reserve charges cost tokens to client, capping the cost at the burst.
// When the bucket is short it charges nothing and reports how long until
// it holds enough.
func (rl *RateLimiter) Reserve(client string, cost float64) (bool, time.Duration) {
	if cost <= 0 {
		return true, 0
	}
	cost = min(cost, rl.burst)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[client]
	if !ok {
		b = &bucket{tokens: rl.burst, lastRef: now}
		rl.buckets[client] = b
	} else {
		b.tokens = min(b.tokens+now.Sub(b.lastRef).Seconds()*rl.rate, rl.burst)
		b.lastRef = now
	}

	if b.tokens >= cost {
		b.tokens -= cost
		return true, 0
	}
	if rl.rate <= 0 {
		return false, time.Minute
	}
	return false, time.Duration((cost - b.tokens) / rl.rate * float64(time.Second))
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for client, b := range rl.buckets {
			if now.Sub(b.lastRef) > rl.ttl {
				delete(rl.buckets, client)
			}
		}
		rl.mu.Unlock()
	}
}

// RequestCost prices a request in tokens. Health and metrics are free.
// /encode pays one token plus one per MiB of the frame its query declares,
// /convert one plus one per MiB of its body. Everything else pays one.
func RequestCost(r *http.Request) float64 {
	if isHealthOrMetrics(r) {
		return 0
	}
	switch r.URL.Path {
	case "/encode":
		q := r.URL.Query()
		w, errW := strconv.Atoi(q.Get("width"))
		h, errH := strconv.Atoi(q.Get("height"))
		f, errF := jpeg.ParsePixelFormat(q.Get("format"))
		if errW != nil || errH != nil || errF != nil ||
			w <= 0 || h <= 0 || w > jpeg.MaxDimension || h > jpeg.MaxDimension {
			return 1
		}
		return 1 + float64(f.FrameSize(w, h))/costUnit
	case "/convert":
		if r.ContentLength > 0 {
			return 1 + float64(r.ContentLength)/costUnit
		}
	}
	return 1
}

// clientIP extracts the client address without its port.
func clientIP(r *http.Request) string {
	// Proxies and load balancers put the original client first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ipPrefix coarsens ip for metric labels: the first octet for IPv4, the
// first group for IPv6.
func ipPrefix(ip string) string {
	parsed := net.ParseIP(ip)
	switch {
	case parsed == nil:
		return "unknown"
	case parsed.To4() != nil:
		return fmt.Sprintf("%d.0.0.0", parsed.To4()[0])
	default:
		return fmt.Sprintf("%x::", uint16(parsed[0])<<8|uint16(parsed[1]))
	}
}

// RateLimit returns middleware that charges every client RequestCost
// tokens per request.
func RateLimit(rate, burst int) func(http.Handler) http.Handler {
	rl := NewRateLimiter(rate, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			cost := RequestCost(r)

			if ok, wait := rl.Reserve(ip, cost); !ok {
				log.Printf("Rate limit exceeded for %s: %s %s costs %.1f tokens", ip, r.Method, r.URL.Path, cost)
				metrics.RecordRateLimitExceeded(ipPrefix(ip))
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"Rate limit exceeded"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
