package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
)

type Config struct {
	API       APIConfig
	Editor    EditorConfig
	Queue     QueueConfig
	Worker    WorkerConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Telemetry TelemetryConfig
}

type APIConfig struct {
	Addr                  string
	RateLimitEnabled      bool
	RateLimitCapacity     int
	RateLimitWindow       time.Duration
	RateLimitUserIDHeader string
}

// EditorConfig drives sessions, local rendering and submission.
type EditorConfig struct {
	AppOrigin      string
	ProcessingMode string
	SubmitBaseURL  string
	SubmitTimeout  time.Duration
	SessionTTL     time.Duration
	SweepInterval  time.Duration
	OutputFormat   string
	OutputQuality  int
	MediaRoot      string
	FetchTimeout   time.Duration
}

type QueueConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Name          string
}

func (q QueueConfig) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

type WorkerConfig struct {
	Concurrency        int
	MetricsAddr        string
	WebhookURL         string
	WebhookSecret      string
	WebhookTimeout     time.Duration
	WebhookMaxAttempts int
}

type StorageConfig struct {
	Enabled     bool
	Endpoint    string
	AccessKey   string
	SecretKey   string
	Bucket      string
	UseSSL      bool
	StripPrefix string
}

type DatabaseConfig struct {
	DSN string
}

type TelemetryConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
	SampleRatio  float64
}

// Load reads .env.local and .env (when present) without overriding the
// process environment, then builds the config from the environment.
func Load() Config {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")
	return FromEnv()
}

func FromEnv() Config {
	return Config{
		API: APIConfig{
			Addr:                  env("PIXELEDIT_API_ADDR", ":8080"),
			RateLimitEnabled:      envBool("PIXELEDIT_RATE_LIMIT_ENABLED", true),
			RateLimitCapacity:     envInt("PIXELEDIT_RATE_LIMIT_CAPACITY", 120),
			RateLimitWindow:       envDuration("PIXELEDIT_RATE_LIMIT_WINDOW", time.Minute),
			RateLimitUserIDHeader: env("PIXELEDIT_RATE_LIMIT_USER_HEADER", "X-User-ID"),
		},
		Editor: EditorConfig{
			AppOrigin:      env("EDITOR_APP_ORIGIN", "http://localhost:3000"),
			ProcessingMode: env("EDITOR_PROCESSING_MODE", "origin"),
			SubmitBaseURL:  strings.TrimRight(env("EDITOR_SUBMIT_BASE_URL", "http://localhost:3000/api"), "/"),
			SubmitTimeout:  envDuration("EDITOR_SUBMIT_TIMEOUT", 30*time.Second),
			SessionTTL:     envDuration("EDITOR_SESSION_TTL", 30*time.Minute),
			SweepInterval:  envDuration("EDITOR_SWEEP_INTERVAL", time.Minute),
			OutputFormat:   env("EDITOR_OUTPUT_FORMAT", ""),
			OutputQuality:  envInt("EDITOR_OUTPUT_QUALITY", 90),
			MediaRoot:      env("EDITOR_MEDIA_ROOT", ""),
			FetchTimeout:   envDuration("EDITOR_FETCH_TIMEOUT", 20*time.Second),
		},
		Queue: QueueConfig{
			Enabled:       envBool("QUEUE_ENABLED", true),
			RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
			RedisPassword: env("REDIS_PASSWORD", ""),
			RedisDB:       envInt("REDIS_DB", 0),
			Name:          env("ASYNC_QUEUE", "default"),
		},
		Worker: WorkerConfig{
			Concurrency:        envInt("WORKER_CONCURRENCY", max(2, runtime.NumCPU())),
			MetricsAddr:        env("WORKER_METRICS_ADDR", ":9091"),
			WebhookURL:         env("MEDIA_WEBHOOK_URL", ""),
			WebhookSecret:      env("MEDIA_WEBHOOK_SECRET", ""),
			WebhookTimeout:     envDuration("MEDIA_WEBHOOK_TIMEOUT", 10*time.Second),
			WebhookMaxAttempts: envInt("MEDIA_WEBHOOK_MAX_ATTEMPTS", 3),
		},
		Storage: StorageConfig{
			Enabled:     envBool("MINIO_ENABLED", false),
			Endpoint:    env("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:   env("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey:   env("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:      env("MINIO_BUCKET", "media"),
			UseSSL:      envBool("MINIO_USE_SSL", false),
			StripPrefix: env("MINIO_STRIP_PREFIX", ""),
		},
		Database: DatabaseConfig{
			DSN: env("POSTGRES_DSN", ""),
		},
		Telemetry: TelemetryConfig{
			Exporter:     env("OTEL_TRACES_EXPORTER", "none"),
			OTLPEndpoint: env("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			OTLPInsecure: envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
			SampleRatio:  envFloat("OTEL_TRACES_SAMPLE_RATIO", 1),
		},
	}
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// envDuration accepts Go durations ("45s") or a bare number of seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
