package config

import (
	"os"
	"strconv"

	"github.com/harliandi/go-img2jpeg/pkg/jpeg"
)

// Config holds application configuration
type Config struct {
	Port            int
	MaxUploadMB     int
	TargetSizeKB    int
	MaxConcurrent   int
	RateLimitPerSec int
	RateLimitBurst  int
	WorkerCount     int

	// Encoder settings
	DefaultQuality int
	ChunkSize      int
	MaxPixels      int
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	cfg := &Config{
		Port:            getEnvInt("PORT", 8080),
		MaxUploadMB:     getEnvInt("MAX_UPLOAD_MB", 10),
		TargetSizeKB:    getEnvInt("TARGET_SIZE_KB", 500),
		MaxConcurrent:   getEnvInt("MAX_CONCURRENT", 50),
		RateLimitPerSec: getEnvInt("RATE_LIMIT", 10),
		RateLimitBurst:  getEnvInt("RATE_LIMIT_BURST", 20),
		WorkerCount:     getEnvInt("WORKER_COUNT", 10),
		DefaultQuality:  getEnvInt("DEFAULT_QUALITY", jpeg.DefaultQuality),
		ChunkSize:       getEnvInt("CHUNK_SIZE", jpeg.DefaultChunkSize),
		MaxPixels:       getEnvInt("MAX_PIXELS", 50_000_000),
	}
	cfg.DefaultQuality = jpeg.ClampQuality(cfg.DefaultQuality)
	return cfg
}

// EncodeOptions returns the encoder options derived from the configuration.
func (c *Config) EncodeOptions() *jpeg.Options {
	return &jpeg.Options{
		ChunkSize: c.ChunkSize,
		MaxPixels: c.MaxPixels,
	}
}

// MaxUploadBytes is the request body limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultValue
}
