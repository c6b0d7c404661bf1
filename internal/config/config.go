package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Provider  ProviderConfig
	Pipeline  PipelineConfig
	R2        R2Config
	Zitadel   ZitadelConfig
	Gateway   GatewayConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	JobsPerHour     int
	StagesPerMin    int
	EditsPerHour    int
	FinalizePerHour int
	ExportsPerHour  int
}

// ProviderConfig configures the structured-generation provider.
// CredentialName is the actionable name reported when the API key is
// absent.
type ProviderConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	CredentialName string
	TimeoutSeconds int
}

// PipelineConfig holds retry/backoff bounds and per-stage model defaults
type PipelineConfig struct {
	MaxAttempts         int
	RetryBaseMS         int
	RetryMaxMS          int
	StageTimeoutSeconds int
	RetentionHours      int
	StageModels         map[string]string
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type ZitadelConfig struct {
	Domain   string
	ClientID string
	Issuer   string
}

// GatewayConfig toggles Traefik ForwardAuth mode: when enabled, identity
// arrives in X-User-* headers instead of bearer tokens.
type GatewayConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("PROVIDER_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("ZITADEL_CLIENT_ID")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("provider.api_key", "PROVIDER_API_KEY")
	_ = viper.BindEnv("provider.base_url", "PROVIDER_BASE_URL")
	_ = viper.BindEnv("provider.model", "PROVIDER_MODEL")
	_ = viper.BindEnv("provider.credential_name", "PROVIDER_CREDENTIAL_NAME")
	_ = viper.BindEnv("provider.timeout", "PROVIDER_TIMEOUT")
	_ = viper.BindEnv("pipeline.max_attempts", "PIPELINE_MAX_ATTEMPTS")
	_ = viper.BindEnv("pipeline.retry_base_ms", "PIPELINE_RETRY_BASE_MS")
	_ = viper.BindEnv("pipeline.retry_max_ms", "PIPELINE_RETRY_MAX_MS")
	_ = viper.BindEnv("pipeline.stage_timeout", "PIPELINE_STAGE_TIMEOUT")
	_ = viper.BindEnv("pipeline.retention_hours", "PIPELINE_RETENTION_HOURS")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("zitadel.domain", "ZITADEL_DOMAIN")
	_ = viper.BindEnv("zitadel.client_id", "ZITADEL_CLIENT_ID")
	_ = viper.BindEnv("zitadel.issuer", "ZITADEL_ISSUER")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.jobs_per_hour", 10)
	viper.SetDefault("ratelimit.stages_per_min", 20)
	viper.SetDefault("ratelimit.edits_per_hour", 30)
	viper.SetDefault("ratelimit.finalize_per_hour", 20)
	viper.SetDefault("ratelimit.exports_per_hour", 20)

	// Provider defaults (OpenAI-compatible structured outputs)
	viper.SetDefault("provider.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("provider.model", "llama-3.3-70b-versatile")
	viper.SetDefault("provider.credential_name", "PROVIDER_API_KEY")
	viper.SetDefault("provider.timeout", 120)

	// Pipeline defaults
	viper.SetDefault("pipeline.max_attempts", 3)
	viper.SetDefault("pipeline.retry_base_ms", 500)
	viper.SetDefault("pipeline.retry_max_ms", 8000)
	viper.SetDefault("pipeline.stage_timeout", 120)
	viper.SetDefault("pipeline.retention_hours", 168)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			JobsPerHour:     viper.GetInt("ratelimit.jobs_per_hour"),
			StagesPerMin:    viper.GetInt("ratelimit.stages_per_min"),
			EditsPerHour:    viper.GetInt("ratelimit.edits_per_hour"),
			FinalizePerHour: viper.GetInt("ratelimit.finalize_per_hour"),
			ExportsPerHour:  viper.GetInt("ratelimit.exports_per_hour"),
		},
		Provider: ProviderConfig{
			APIKey:         viper.GetString("provider.api_key"),
			BaseURL:        viper.GetString("provider.base_url"),
			Model:          viper.GetString("provider.model"),
			CredentialName: viper.GetString("provider.credential_name"),
			TimeoutSeconds: viper.GetInt("provider.timeout"),
		},
		Pipeline: PipelineConfig{
			MaxAttempts:         viper.GetInt("pipeline.max_attempts"),
			RetryBaseMS:         viper.GetInt("pipeline.retry_base_ms"),
			RetryMaxMS:          viper.GetInt("pipeline.retry_max_ms"),
			StageTimeoutSeconds: viper.GetInt("pipeline.stage_timeout"),
			RetentionHours:      viper.GetInt("pipeline.retention_hours"),
			StageModels:         viper.GetStringMapString("pipeline.stage_models"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		Zitadel: ZitadelConfig{
			Domain:   viper.GetString("zitadel.domain"),
			ClientID: viper.GetString("zitadel.client_id"),
			Issuer:   viper.GetString("zitadel.issuer"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
		},
	}

	return cfg, nil
}
