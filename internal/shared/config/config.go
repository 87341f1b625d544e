package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port              string
	CORSAllowOrigin   []string
	ObjectStoreType   string
	LocalStoreDir     string
	AWSRegion         string
	S3Bucket          string
	S3Prefix          string
	SSEKMSKeyID       string
	DatabaseURL       string
	RedisURL          string
	Env               string
	FetchTimeout      time.Duration
	FetchMaxBytes     int64
	FetchCacheTTL     time.Duration
	FetchUserAgent    string
	FetchAllowPrivate bool
	MaxHTMLBytes      int64
	ContextRadius     int
	Dispatch          string
	QueueName         string
	WorkerConcurrency int
	ShutdownTimeout   time.Duration
}

const (
	defaultFetchTimeout   = 10 * time.Second
	defaultFetchMaxBytes  = 5 << 20
	defaultFetchCacheTTL  = 5 * time.Minute
	defaultFetchUserAgent = "markupcheck/1.0 (+https://github.com/markupcheck)"
	defaultMaxHTMLBytes   = 2 << 20
	defaultContextRadius  = 3
	defaultQueueName      = "markupcheck:analyses"
	defaultWorkerCount    = 4
	defaultShutdown       = 30 * time.Second
)

// Dispatch modes for queued analyses.
const (
	DispatchInline = "inline"
	DispatchQueue  = "queue"
)

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:              getEnv("PORT", "8080"),
		CORSAllowOrigin:   splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		ObjectStoreType:   normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:     getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:         getEnv("AWS_REGION", ""),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3Prefix:          getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:       getEnv("SSE_KMS_KEY_ID", ""),
		DatabaseURL:       dbURL,
		RedisURL:          getEnv("REDIS_URL", ""),
		Env:               env,
		FetchTimeout:      getDuration("FETCH_TIMEOUT", defaultFetchTimeout),
		FetchMaxBytes:     getInt64("FETCH_MAX_BYTES", defaultFetchMaxBytes),
		FetchCacheTTL:     getDuration("FETCH_CACHE_TTL", defaultFetchCacheTTL),
		FetchUserAgent:    getEnv("FETCH_USER_AGENT", defaultFetchUserAgent),
		FetchAllowPrivate: getBool("FETCH_ALLOW_PRIVATE", false),
		MaxHTMLBytes:      getInt64("MAX_HTML_BYTES", defaultMaxHTMLBytes),
		ContextRadius:     int(getInt64("CONTEXT_RADIUS", defaultContextRadius)),
		Dispatch:          normalizeDispatch(getEnv("DISPATCH", DispatchInline)),
		QueueName:         getEnv("QUEUE_NAME", defaultQueueName),
		WorkerConcurrency: int(getInt64("WORKER_CONCURRENCY", defaultWorkerCount)),
		ShutdownTimeout:   getDuration("SHUTDOWN_TIMEOUT", defaultShutdown),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt64(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || val <= 0 {
		log.Printf("config %s invalid positive int %q, using %d", key, raw, def)
		return def
	}
	return val
}

func getBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("config %s invalid bool %q, using %t", key, raw, def)
		return def
	}
	return val
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val < 0 {
		log.Printf("config %s invalid duration %q, using %s", key, raw, def)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeDispatch(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "queue", "redis":
		return DispatchQueue
	default:
		return DispatchInline
	}
}
