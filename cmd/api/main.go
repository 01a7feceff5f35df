package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/harliandi/go-img2jpeg/internal/config"
	"github.com/harliandi/go-img2jpeg/internal/converter"
	"github.com/harliandi/go-img2jpeg/internal/handler"
	"github.com/harliandi/go-img2jpeg/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()

	// Worker pool for /convert jobs
	pool := converter.NewWorkerPool(cfg.WorkerCount, converter.New(cfg.TargetSizeKB, cfg.EncodeOptions()))
	pool.Start()
	defer pool.Stop()

	// Configure server with timeouts to prevent slowloris and hanging connections
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      newRouter(cfg, pool),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Starting raw frame to JPEG encoding API on %s", server.Addr)
	log.Printf("Target size: %dKB, Max upload: %dMB, Max concurrent: %d, Rate limit: %d/sec, Workers: %d",
		cfg.TargetSizeKB, cfg.MaxUploadMB, cfg.MaxConcurrent, cfg.RateLimitPerSec, cfg.WorkerCount)
	log.Printf("Encoder: default quality %d, chunk size %dB, max pixels %d",
		cfg.DefaultQuality, cfg.ChunkSize, cfg.MaxPixels)

	if err := server.ListenAndServe(); err != nil {
		log.Printf("Server error: %v", err)
		os.Exit(1)
	}
}

// newRouter wires the endpoints and wraps them in the middleware stack.
func newRouter(cfg *config.Config, pool *converter.WorkerPool) http.Handler {
	h := handler.New(cfg, pool)

	mux := http.NewServeMux()
	mux.HandleFunc("/encode", h.Encode)
	mux.HandleFunc("/convert", h.Convert)
	mux.HandleFunc("/formats", h.Formats)
	mux.HandleFunc("/health", h.Health)
	mux.Handle("/metrics", promhttp.Handler())

	return withMiddleware(cfg, mux)
}

// withMiddleware wraps h in the middleware stack, outermost first.
// RequestID must wrap Recovery for panic logs to carry the request ID.
func withMiddleware(cfg *config.Config, h http.Handler) http.Handler {
	return middleware.Security(
		middleware.RateLimit(cfg.RateLimitPerSec, cfg.RateLimitBurst)(
			middleware.ConcurrencyLimit(cfg.MaxConcurrent)(
				middleware.RequestID(
					middleware.Recovery(
						middleware.Logger(h),
					),
				),
			),
		),
	)
}
