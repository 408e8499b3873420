package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Planner   PlannerConfig
	Generator GeneratorConfig
	Reference ReferenceConfig
	Prompts   PromptConfig
	Metrics   MetricsConfig
	Jobs      JobsConfig
	Exports   ExportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// PlannerConfig tunes the workload and conflict arithmetic.
type PlannerConfig struct {
	BaselineSubjectHours  float64
	ReviewBufferDays      int
	MaxCombinedDailyHours float64
	MinDailyHoursFloor    float64
	SnapshotCacheTTL      time.Duration
	SnapshotWindowDays    int
	RecentWindowDays      int
}

// GeneratorConfig configures the upstream text-generation service.
type GeneratorConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// ReferenceConfig locates the static subject catalog.
type ReferenceConfig struct {
	CatalogPath string
}

// PromptConfig locates prompt template overrides.
type PromptConfig struct {
	TemplateDir string
}

// MetricsConfig toggles Prometheus exposure.
type MetricsConfig struct {
	Enabled bool
}

// JobsConfig governs the async generation worker pool.
type JobsConfig struct {
	Enabled           bool
	WorkerConcurrency int
	WorkerRetries     int
	RetryDelay        time.Duration
}

// ExportsConfig gates the plan export endpoint.
type ExportsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Planner = PlannerConfig{
		BaselineSubjectHours:  v.GetFloat64("PLANNER_BASELINE_SUBJECT_HOURS"),
		ReviewBufferDays:      v.GetInt("PLANNER_REVIEW_BUFFER_DAYS"),
		MaxCombinedDailyHours: v.GetFloat64("PLANNER_MAX_COMBINED_DAILY_HOURS"),
		MinDailyHoursFloor:    v.GetFloat64("PLANNER_MIN_DAILY_HOURS"),
		SnapshotCacheTTL:      parseDuration(v.GetString("PLANNER_SNAPSHOT_CACHE_TTL"), 5*time.Minute),
		SnapshotWindowDays:    v.GetInt("PLANNER_SNAPSHOT_WINDOW_DAYS"),
		RecentWindowDays:      v.GetInt("PLANNER_RECENT_WINDOW_DAYS"),
	}

	cfg.Generator = GeneratorConfig{
		Provider:    v.GetString("GENERATOR_PROVIDER"),
		APIKey:      v.GetString("GENERATOR_API_KEY"),
		BaseURL:     v.GetString("GENERATOR_BASE_URL"),
		Model:       v.GetString("GENERATOR_MODEL"),
		Timeout:     parseDuration(v.GetString("GENERATOR_TIMEOUT"), 60*time.Second),
		MaxTokens:   v.GetInt("GENERATOR_MAX_TOKENS"),
		Temperature: v.GetFloat64("GENERATOR_TEMPERATURE"),
	}

	cfg.Reference = ReferenceConfig{
		CatalogPath: v.GetString("REFERENCE_CATALOG_PATH"),
	}

	cfg.Prompts = PromptConfig{
		TemplateDir: v.GetString("PROMPT_TEMPLATE_DIR"),
	}

	cfg.Metrics = MetricsConfig{
		Enabled: v.GetBool("ENABLE_METRICS"),
	}

	cfg.Jobs = JobsConfig{
		Enabled:           v.GetBool("ENABLE_ASYNC_GENERATION"),
		WorkerConcurrency: v.GetInt("JOBS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("JOBS_WORKER_RETRIES"),
		RetryDelay:        parseDuration(v.GetString("JOBS_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Exports = ExportsConfig{
		Enabled: v.GetBool("ENABLE_EXPORTS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "study_plan")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PLANNER_BASELINE_SUBJECT_HOURS", 60.0)
	v.SetDefault("PLANNER_REVIEW_BUFFER_DAYS", 7)
	v.SetDefault("PLANNER_MAX_COMBINED_DAILY_HOURS", 12.0)
	v.SetDefault("PLANNER_MIN_DAILY_HOURS", 2.0)
	v.SetDefault("PLANNER_SNAPSHOT_CACHE_TTL", "5m")
	v.SetDefault("PLANNER_SNAPSHOT_WINDOW_DAYS", 90)
	v.SetDefault("PLANNER_RECENT_WINDOW_DAYS", 14)

	v.SetDefault("GENERATOR_PROVIDER", "deepseek")
	v.SetDefault("GENERATOR_API_KEY", "")
	v.SetDefault("GENERATOR_BASE_URL", "https://api.deepseek.com/v1")
	v.SetDefault("GENERATOR_MODEL", "deepseek-chat")
	v.SetDefault("GENERATOR_TIMEOUT", "60s")
	v.SetDefault("GENERATOR_MAX_TOKENS", 2048)
	v.SetDefault("GENERATOR_TEMPERATURE", 0.7)

	v.SetDefault("REFERENCE_CATALOG_PATH", "")
	v.SetDefault("PROMPT_TEMPLATE_DIR", "")

	v.SetDefault("ENABLE_METRICS", true)

	v.SetDefault("ENABLE_ASYNC_GENERATION", true)
	v.SetDefault("JOBS_WORKER_CONCURRENCY", 2)
	v.SetDefault("JOBS_WORKER_RETRIES", 1)
	v.SetDefault("JOBS_RETRY_DELAY", "5s")

	v.SetDefault("ENABLE_EXPORTS", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
