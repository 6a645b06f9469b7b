package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string
	DatabaseURL     string
	RedisURL        string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	OpenAIAPIKey    string
	OpenAIModel     string
	AnthropicAPIKey string
	AnthropicModel  string
	LLMTimeout      time.Duration

	PatentSearchURL    string
	PatentSearchAPIKey string

	SendGridAPIKey    string
	SendGridBaseURL   string
	SendGridFromEmail string
	SendGridFromName  string
	AppBaseURL        string

	StageTransport   string
	StageBaseURL     string
	StageQueueURLs   map[string]string
	InternalAPIToken string

	RetryMaxAttempts      int
	RetryInitialDelay     time.Duration
	ScoringInterval       time.Duration
	MaxConflictCandidates int
	IdempotencyTTL        time.Duration

	WorkerConcurrency      int
	ShutdownTimeoutSeconds int
	OTLPEndpoint           string
}

// Load reads configuration from environment variables and optional .env files.
func Load() Config {
	v := viper.New()
	setDefaults(v)
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(v, ".env", "cmd/.env")
	v.AutomaticEnv()

	return Config{
		Port:            v.GetString("PORT"),
		Env:             normalizeEnv(v.GetString("ENV")),
		CORSAllowOrigin: splitAndTrim(v.GetString("CORS_ALLOW_ORIGINS")),
		DatabaseURL:     strings.TrimSpace(v.GetString("DATABASE_URL")),
		RedisURL:        strings.TrimSpace(v.GetString("REDIS_URL")),

		ObjectStoreType: normalizeStoreType(v.GetString("OBJECT_STORE")),
		LocalStoreDir:   v.GetString("LOCAL_STORE_DIR"),
		AWSRegion:       v.GetString("AWS_REGION"),
		S3Bucket:        v.GetString("S3_BUCKET"),
		S3Prefix:        v.GetString("S3_PREFIX"),
		SSEKMSKeyID:     v.GetString("SSE_KMS_KEY_ID"),

		OpenAIAPIKey:    strings.TrimSpace(v.GetString("OPENAI_API_KEY")),
		OpenAIModel:     v.GetString("OPENAI_MODEL"),
		AnthropicAPIKey: strings.TrimSpace(v.GetString("ANTHROPIC_API_KEY")),
		AnthropicModel:  v.GetString("ANTHROPIC_MODEL"),
		LLMTimeout:      time.Duration(v.GetInt("LLM_TIMEOUT_SECONDS")) * time.Second,

		PatentSearchURL:    strings.TrimSpace(v.GetString("PATENT_SEARCH_URL")),
		PatentSearchAPIKey: strings.TrimSpace(v.GetString("PATENT_SEARCH_API_KEY")),

		SendGridAPIKey:    strings.TrimSpace(v.GetString("SENDGRID_API_KEY")),
		SendGridBaseURL:   v.GetString("SENDGRID_BASE_URL"),
		SendGridFromEmail: v.GetString("SENDGRID_FROM_EMAIL"),
		SendGridFromName:  v.GetString("SENDGRID_FROM_NAME"),
		AppBaseURL:        strings.TrimRight(v.GetString("APP_BASE_URL"), "/"),

		StageTransport:   normalizeTransport(v.GetString("STAGE_TRANSPORT")),
		StageBaseURL:     strings.TrimRight(v.GetString("STAGE_BASE_URL"), "/"),
		InternalAPIToken: strings.TrimSpace(v.GetString("INTERNAL_API_TOKEN")),
		StageQueueURLs: map[string]string{
			"search":   strings.TrimSpace(v.GetString("SQS_QUEUE_URL_SEARCH")),
			"analysis": strings.TrimSpace(v.GetString("SQS_QUEUE_URL_ANALYSIS")),
			"report":   strings.TrimSpace(v.GetString("SQS_QUEUE_URL_REPORT")),
			"delivery": strings.TrimSpace(v.GetString("SQS_QUEUE_URL_DELIVERY")),
		},

		RetryMaxAttempts:      v.GetInt("RETRY_MAX_ATTEMPTS"),
		RetryInitialDelay:     v.GetDuration("RETRY_INITIAL_DELAY"),
		ScoringInterval:       v.GetDuration("SCORING_INTERVAL"),
		MaxConflictCandidates: v.GetInt("MAX_CONFLICT_CANDIDATES"),
		IdempotencyTTL:        v.GetDuration("IDEMPOTENCY_TTL"),

		WorkerConcurrency:      v.GetInt("WORKER_CONCURRENCY"),
		ShutdownTimeoutSeconds: v.GetInt("SHUTDOWN_TIMEOUT_SECONDS"),
		OTLPEndpoint:           strings.TrimSpace(v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT")),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "dev")
	v.SetDefault("CORS_ALLOW_ORIGINS", "http://localhost:5173")
	v.SetDefault("OBJECT_STORE", "local")
	v.SetDefault("LOCAL_STORE_DIR", "./data")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("ANTHROPIC_MODEL", "claude-3-5-sonnet-latest")
	v.SetDefault("LLM_TIMEOUT_SECONDS", 120)
	v.SetDefault("SENDGRID_FROM_NAME", "IP Risk Reports")
	v.SetDefault("APP_BASE_URL", "http://localhost:5173")
	v.SetDefault("STAGE_TRANSPORT", "async")
	v.SetDefault("RETRY_MAX_ATTEMPTS", 3)
	v.SetDefault("RETRY_INITIAL_DELAY", "1s")
	v.SetDefault("SCORING_INTERVAL", "500ms")
	v.SetDefault("MAX_CONFLICT_CANDIDATES", 20)
	v.SetDefault("IDEMPOTENCY_TTL", "24h")
	v.SetDefault("WORKER_CONCURRENCY", 4)
	v.SetDefault("SHUTDOWN_TIMEOUT_SECONDS", 30)

	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range []string{
		"DATABASE_URL", "REDIS_URL", "AWS_REGION", "S3_BUCKET", "S3_PREFIX", "SSE_KMS_KEY_ID",
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "PATENT_SEARCH_URL", "PATENT_SEARCH_API_KEY",
		"SENDGRID_API_KEY", "SENDGRID_BASE_URL", "SENDGRID_FROM_EMAIL", "STAGE_BASE_URL",
		"SQS_QUEUE_URL_SEARCH", "SQS_QUEUE_URL_ANALYSIS", "SQS_QUEUE_URL_REPORT", "SQS_QUEUE_URL_DELIVERY",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "INTERNAL_API_TOKEN",
	} {
		v.SetDefault(key, "")
	}
}

// IsDevLike reports whether env allows in-memory fallbacks.
func (c Config) IsDevLike() bool {
	switch c.Env {
	case "dev", "local":
		return true
	default:
		return false
	}
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

func normalizeTransport(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sqs":
		return "sqs"
	case "http":
		return "http"
	default:
		return "async"
	}
}
