package middleware

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestSecurityHeaders tests security headers are set correctly
func TestSecurityHeaders(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := Security(next)
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	tests := []struct {
		header  string
		want    string
	}{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Content-Security-Policy", "default-src 'none'"},
		{"X-XSS-Protection", "1; mode=block"},
		{"Referrer-Policy", "no-referrer"},
		{"Cache-Control", "no-store"},
		{"Cross-Origin-Resource-Policy", "same-origin"},
		{"Strict-Transport-Security", ""},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got := w.Header().Get(tt.header)
			if got != tt.want {
				t.Errorf("%s header = %s, want %s", tt.header, got, tt.want)
			}
		})
	}
}

// TestRateLimit_Basic tests basic rate limiting
func TestRateLimit_Basic(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := RateLimit(2, 2)(next) // 2 requests/sec, burst 2

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "192.168.1.1:1234"

	// First request should pass
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("First request should pass, got %d", w.Code)
	}

	// Second request should pass
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Second request should pass, got %d", w.Code)
	}

	// Third request should be rate limited
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Third request should be rate limited, got %d", w.Code)
	}
}

// TestRateLimit_DifferentIPs tests rate limiting is per IP
func TestRateLimit_DifferentIPs(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := RateLimit(1, 1)(next) // 1 request/sec, burst 1

	// IP 1
	req1 := httptest.NewRequest(http.MethodGet, "/test", nil)
	req1.RemoteAddr = "192.168.1.1:1234"
	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, req1)

	// IP 2 (different IP, should not be rate limited)
	req2 := httptest.NewRequest(http.MethodGet, "/test", nil)
	req2.RemoteAddr = "192.168.1.2:1234"
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, req2)

	if w1.Code != http.StatusOK {
		t.Errorf("IP 1 first request should pass, got %d", w1.Code)
	}
	if w2.Code != http.StatusOK {
		t.Errorf("IP 2 first request should pass, got %d", w2.Code)
	}
}

// TestRateLimit_Refill tests token bucket refills over time
func TestRateLimit_Refill(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := RateLimit(5, 1)(next) // 5 requests/sec, burst 1

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "192.168.1.1:1234"

	// First request should pass
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("First request should pass, got %d", w.Code)
	}

	// Second request should be rate limited immediately
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Second request should be rate limited, got %d", w.Code)
	}

	// Wait for refill
	time.Sleep(250 * time.Millisecond)

	// After wait, should have tokens available
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Request after refill should pass, got %d", w.Code)
	}
}

// TestConcurrencyLimit_Basic tests concurrent request limiting
func TestConcurrencyLimit_Basic(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Simulate slow request
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	handler := ConcurrencyLimit(2)(next)

	// Track results
	var successCount, rejectedCount int32
	var wg sync.WaitGroup

	// Launch 5 concurrent requests
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code == http.StatusOK {
				atomic.AddInt32(&successCount, 1)
			} else if w.Code == http.StatusServiceUnavailable {
				atomic.AddInt32(&rejectedCount, 1)
			}
		}()
	}

	wg.Wait()

	// At most 2 should succeed, at least 3 should be rejected
	if successCount > 2 {
		t.Errorf("Expected at most 2 successful requests, got %d", successCount)
	}
	if rejectedCount < 3 {
		t.Errorf("Expected at least 3 rejected requests, got %d", rejectedCount)
	}
}

// TestConcurrencyLimit_Sequential tests sequential requests all pass
func TestConcurrencyLimit_Sequential(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := ConcurrencyLimit(2)(next)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	// All sequential requests should pass
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("Sequential request %d should pass, got %d", i, w.Code)
		}
	}
}

// TestRecovery tests panic recovery
func TestRecovery(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	handler := Recovery(next)
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	// Should not panic, return 500 instead
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500 after panic, got %d", w.Code)
	}

	contentType := w.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", contentType)
	}
}

// TestRecovery_NoPanic tests normal requests pass through
func TestRecovery_NoPanic(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	handler := Recovery(next)
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	if body != "OK" {
		t.Errorf("Expected body 'OK', got %s", body)
	}
}

// TestLogger tests logging middleware records metrics
func TestLogger(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	handler := Logger(next)
	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	w := httptest.NewRecorder()

	// Should not panic
	handler.ServeHTTP(w, req)

	// Status should be passed through
	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}
}

// TestMiddlewareChaining tests multiple middleware work together
func TestMiddlewareChaining(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Chain: Security -> RateLimit -> ConcurrencyLimit -> Recovery -> RequestID -> Logger -> next
	handler := Security(
		RateLimit(100, 10)(
			ConcurrencyLimit(10)(
				Recovery(
					RequestID(
						Logger(next),
					),
				),
			),
		),
	)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	// Request should complete successfully
	if w.Code != http.StatusOK {
		t.Errorf("Chained middleware should pass, got %d", w.Code)
	}

	// Security headers should be set
	csp := w.Header().Get("Content-Security-Policy")
	if csp == "" {
		t.Error("Security headers should be set")
	}

	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("Request ID header should be set")
	}
}

// TestRateLimit_IPv6 tests IPv6 addresses work correctly
func TestRateLimit_IPv6(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := RateLimit(1, 1)(next)

	// IPv6 address
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "[2001:db8::1]:1234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("IPv6 address first request should pass, got %d", w.Code)
	}

	// Same IPv6, second request should be rate limited
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("IPv6 address second request should be rate limited, got %d", w.Code)
	}
}

// TestRateLimit_NoPort tests addresses without port work correctly
func TestRateLimit_NoPort(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := RateLimit(1, 1)(next)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "192.168.1.1" // No port
	w := httptest.NewRecorder()

	// Should handle gracefully
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Address without port should work, got %d", w.Code)
	}
}

// TestConcurrencyLimit_Decrement tests semaphore is released after request
func TestConcurrencyLimit_Decrement(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := ConcurrencyLimit(1)(next)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	// First request
	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, req)
	if w1.Code != http.StatusOK {
		t.Errorf("First request should pass, got %d", w1.Code)
	}

	// Second request immediately after (should also pass since first completed)
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, req)
	if w2.Code != http.StatusOK {
		t.Errorf("Second request should pass after first completes, got %d", w2.Code)
	}
}

// TestRecovery_NilPanic tests recovery from nil panic
func TestRecovery_NilPanic(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(nil)
	})

	handler := Recovery(next)
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	// Should handle nil panic gracefully
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500 after nil panic, got %d", w.Code)
	}
}

// TestRequestID tests IDs are generated, propagated and echoed
func TestRequestID(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	})
	handler := RequestID(next)

	// Generated when absent
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if seen == "" || seen == "-" {
		t.Fatalf("Expected generated request ID, got %q", seen)
	}
	if got := w.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("Response header %q, context %q", got, seen)
	}

	// Reused when well-formed
	const id = "0f8fad5b-d9cb-469f-a165-70867728950e"
	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(RequestIDHeader, id)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if seen != id {
		t.Errorf("Expected incoming ID %s, got %s", id, seen)
	}

	// Replaced when malformed
	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if seen == "<script>" {
		t.Error("Malformed request ID should be replaced")
	}
}

// TestGetRequestID_Missing tests the placeholder without middleware
func TestGetRequestID_Missing(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "-" {
		t.Errorf("Expected -, got %q", got)
	}
}

// TestLogger_StreamedBody tests the wrapper counts bytes and flushes
func TestLogger_StreamedBody(t *testing.T) {
	var flushed bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("chunk1"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
			flushed = true
		}
		w.Write([]byte("chunk2"))
	})

	w := httptest.NewRecorder()
	Logger(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream", nil))

	if !flushed {
		t.Error("Logger wrapper should implement http.Flusher")
	}
	if !w.Flushed {
		t.Error("Flush should reach the underlying writer")
	}
	if w.Body.String() != "chunk1chunk2" {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestRequestCost(t *testing.T) {
	tests := []struct {
		name   string
		target string
		length int64
		want   float64
	}{
		{"health is free", "/health", 0, 0},
		{"metrics is free", "/metrics", 0, 0},
		{"formats", "/formats", 0, 1},
		{"small frame", "/encode?width=16&height=16&format=grey", 0, 1 + 256.0/costUnit},
		{"4MiB frame", "/encode?width=1024&height=1024&format=RGB3", 0, 4},
		{"bad query", "/encode?width=x&height=16&format=grey", 0, 1},
		{"oversized dimension", "/encode?width=70000&height=1&format=grey", 0, 1},
		{"convert body", "/convert", 2 << 20, 3},
		{"convert unknown length", "/convert", -1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.target, nil)
			req.ContentLength = tt.length
			if got := RequestCost(req); got != tt.want {
				t.Errorf("RequestCost(%s) = %v, want %v", tt.target, got, tt.want)
			}
		})
	}
}

func TestReserve(t *testing.T) {
	rl := NewRateLimiter(1, 4)

	if ok, _ := rl.Reserve("a", 3); !ok {
		t.Fatal("first reservation should fit a full bucket")
	}
	ok, wait := rl.Reserve("a", 3)
	if ok {
		t.Fatal("second reservation should not fit")
	}
	if wait < 1900*time.Millisecond || wait > 2*time.Second {
		t.Errorf("wait = %v, want about 2s", wait)
	}
	// A refused reservation charges nothing
	if ok, _ := rl.Reserve("a", 1); !ok {
		t.Error("remaining token should still be available")
	}
	// Costs above the burst are capped rather than refused forever
	if ok, _ := rl.Reserve("b", 100); !ok {
		t.Error("oversized cost should be charged as the burst")
	}
	if ok, _ := rl.Reserve("b", 0); !ok {
		t.Error("zero cost should always pass")
	}
}

func TestRateLimit_WeightedByFrameSize(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RateLimit(1, 8)(next)

	serve := func(target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, target, nil)
		req.RemoteAddr = "10.0.0.1:5555"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	// 1920x1080 RGB24 is about 6.9 tokens, leaving about 1
	if w := serve("/encode?width=1920&height=1080&format=rgb24"); w.Code != http.StatusOK {
		t.Fatalf("first large frame got %d", w.Code)
	}
	w := serve("/encode?width=1920&height=1080&format=rgb24")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second large frame got %d, want 429", w.Code)
	}
	if ra := w.Header().Get("Retry-After"); ra != "6" && ra != "7" {
		t.Errorf("Retry-After = %q, want about 6", ra)
	}
	// Health and metrics requests are not charged
	for i := 0; i < 5; i++ {
		if w := serve("/health"); w.Code != http.StatusOK {
			t.Errorf("health request %d got %d", i, w.Code)
		}
	}
}

func TestRateLimit_SharedAcrossPorts(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RateLimit(1, 1)(next)

	for i, addr := range []string{"192.168.7.1:1000", "192.168.7.1:2000"} {
		req := httptest.NewRequest(http.MethodGet, "/formats", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		want := http.StatusOK
		if i == 1 {
			want = http.StatusTooManyRequests
		}
		if w.Code != want {
			t.Errorf("request from %s got %d, want %d", addr, w.Code, want)
		}
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"ipv4 with port", "192.168.1.1:1234", nil, "192.168.1.1"},
		{"ipv6 with port", "[2001:db8::1]:1234", nil, "2001:db8::1"},
		{"no port", "192.168.1.1", nil, "192.168.1.1"},
		{"forwarded list", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "203.0.113.7"},
		{"real ip", "10.0.0.1:1", map[string]string{"X-Real-IP": "198.51.100.2"}, "198.51.100.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIPPrefix(t *testing.T) {
	tests := map[string]string{
		"192.168.1.1": "192.0.0.0",
		"2001:db8::1": "2001::",
		"not-an-ip":   "unknown",
	}
	for ip, want := range tests {
		if got := ipPrefix(ip); got != want {
			t.Errorf("ipPrefix(%q) = %q, want %q", ip, got, want)
		}
	}
}

func TestConcurrencyLimit_HealthBypassesLimit(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/encode" {
			close(started)
			<-release
		}
		w.WriteHeader(http.StatusOK)
	})
	handler := ConcurrencyLimit(1)(next)

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/encode", nil))
	}()
	<-started

	for _, path := range []string{"/health", "/metrics"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s got %d while the only slot is taken", path, w.Code)
		}
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/formats", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("/formats got %d, want 503", w.Code)
	}

	close(release)
	<-done
}

func TestRecovery_LogsRequestID(t *testing.T) {
	var logs bytes.Buffer
	log.SetOutput(&logs)
	defer log.SetOutput(os.Stderr)

	handler := RequestID(Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	const id = "0b8f6a3e-4c1d-4e7a-9f2b-5d6c7e8f9a01"
	req := httptest.NewRequest(http.MethodGet, "/encode", nil)
	req.Header.Set(RequestIDHeader, id)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
	if !strings.Contains(logs.String(), "["+id+"] PANIC") {
		t.Errorf("panic log lacks the request ID: %s", logs.String())
	}
}
