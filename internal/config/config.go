// Package config loads runtime configuration from the environment and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"

	apperrors "github.com/kimhsiao/gosauna/backend/internal/errors"
)

// Storage backends for the local record store.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Visit log sources.
const (
	VisitSourceRemote = "remote"
	VisitSourceMongo  = "mongo"
)

type Config struct {
	Env      string
	LogLevel string
	Port     string

	StorageBackend string
	DataDir        string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	RemoteBaseURL string
	RemoteAppID   string
	RemoteToken   string
	RemoteTimeout time.Duration

	SyncInterval     time.Duration
	ConflictStrategy string
	BookingPageSize  int

	VisitLogSource  string
	VisitLogLimit   int
	MongoURI        string
	MongoDB         string
	MongoCollection string

	CapturePollInterval time.Duration
	CaptureMaxPolls     int

	CORSOrigins  []string
	RateLimitRPS float64
}

var (
	cfg  *Config
	once sync.Once
)

// Load reads the configuration once; later calls return the cached value.
// It panics on an invalid configuration, since nothing can start without one.
func Load() *Config {
	once.Do(func() {
		_ = godotenv.Load()
		c, err := FromEnv()
		if err != nil {
			panic("Invalid config: " + err.Error())
		}
		cfg = c
	})
	return cfg
}

// FromEnv builds and validates a Config from the current environment.
func FromEnv() (*Config, error) {
	c := &Config{
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnv("PORT", "8090"),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", BackendSQLite)),
		DataDir:        getEnv("DATA_DIR", "./data"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getInt("REDIS_DB", 0),

		RemoteBaseURL: strings.TrimRight(getEnv("REMOTE_BASE_URL", "https://go-sauna-now.base44.app/api/apps"), "/"),
		RemoteAppID:   getEnv("REMOTE_APP_ID", "698de9b6841548fa03673e8c"),
		RemoteToken:   getEnv("REMOTE_TOKEN", ""),
		RemoteTimeout: getDuration("REMOTE_TIMEOUT", 15*time.Second),

		SyncInterval:     getDuration("SYNC_INTERVAL", 5*time.Minute),
		ConflictStrategy: getEnv("CONFLICT_STRATEGY", "remote_wins"),
		BookingPageSize:  getInt("BOOKING_PAGE_SIZE", 500),

		VisitLogSource:  strings.ToLower(getEnv("VISIT_LOG_SOURCE", VisitSourceRemote)),
		VisitLogLimit:   getInt("VISIT_LOG_LIMIT", 5000),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:         getEnv("MONGO_DB", "gosauna"),
		MongoCollection: getEnv("MONGO_COLLECTION", "visit_logs"),

		CapturePollInterval: getDuration("CAPTURE_POLL_INTERVAL", 250*time.Millisecond),
		CaptureMaxPolls:     getInt("CAPTURE_MAX_POLLS", 40),

		CORSOrigins:  splitList(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPS: getFloat("RATE_LIMIT_RPS", 10),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendSQLite, BackendMemory:
	case BackendRedis:
		if c.RedisAddr == "" {
			return apperrors.New(apperrors.ErrConfig, "REDIS_ADDR is required when STORAGE_BACKEND=redis")
		}
	default:
		return apperrors.New(apperrors.ErrConfig, fmt.Sprintf("STORAGE_BACKEND must be one of sqlite, redis, memory (got %q)", c.StorageBackend))
	}
	switch c.VisitLogSource {
	case VisitSourceRemote:
	case VisitSourceMongo:
		if c.MongoURI == "" || c.MongoCollection == "" {
			return apperrors.New(apperrors.ErrConfig, "MONGO_URI and MONGO_COLLECTION are required when VISIT_LOG_SOURCE=mongo")
		}
	default:
		return apperrors.New(apperrors.ErrConfig, fmt.Sprintf("VISIT_LOG_SOURCE must be remote or mongo (got %q)", c.VisitLogSource))
	}
	if c.RemoteBaseURL == "" || c.RemoteAppID == "" {
		return apperrors.New(apperrors.ErrConfig, "REMOTE_BASE_URL and REMOTE_APP_ID must be set")
	}
	if c.CaptureMaxPolls <= 0 || c.CapturePollInterval <= 0 {
		return apperrors.New(apperrors.ErrConfig, "CAPTURE_MAX_POLLS and CAPTURE_POLL_INTERVAL must be positive")
	}
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return apperrors.New(apperrors.ErrConfig, "APP_ENV must be one of: development, staging, production")
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
