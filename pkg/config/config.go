package config

import (
	"errors"
	"io/fs"
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

	Database   DatabaseConfig
	Redis      RedisConfig
	CORS       CORSConfig
	Log        LogConfig
	Scoring    ScoringConfig
	Cache      CacheConfig
	DataSource DataSourceConfig
	Sync       SyncConfig
	Monitor    MonitorConfig
	AccessCode AccessCodeConfig
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
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ScoringConfig tunes the batch processor.
type ScoringConfig struct {
	BatchSize    int
	Concurrency  int
	CacheEnabled bool
}

// CacheTierConfig overrides the stale/evict windows of one tier.
type CacheTierConfig struct {
	StaleAfter time.Duration
	EvictAfter time.Duration
}

// CacheConfig governs the tiered read-through cache.
type CacheConfig struct {
	Prefix          string
	DisableCooldown time.Duration
	Static          CacheTierConfig
	Config          CacheTierConfig
	Scores          CacheTierConfig
	User            CacheTierConfig
	Live            CacheTierConfig
}

// DataSourceConfig bounds every data-source call.
type DataSourceConfig struct {
	Timeout        time.Duration
	Retries        int
	RetryBaseDelay time.Duration
}

// SyncConfig configures extra-score reconciliation.
type SyncConfig struct {
	MaxAgeMinutes     int
	Interval          time.Duration
	SchedulerEnabled  bool
	UpsertConcurrency int
	QueueWorkers      int
	QueueRetries      int
}

// MonitorConfig configures the performance monitor ring and slow thresholds.
type MonitorConfig struct {
	MaxEntries      int
	SlowCalculation time.Duration
	SlowQuery       time.Duration
	SlowBatch       time.Duration
	SlowSync        time.Duration
}

// AccessCodeConfig controls stored access-code lockout.
type AccessCodeConfig struct {
	MaxFailures int
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
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
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scoring = ScoringConfig{
		BatchSize:    positiveInt(v.GetInt("SCORING_BATCH_SIZE"), 200),
		Concurrency:  positiveInt(v.GetInt("SCORING_CONCURRENCY"), 8),
		CacheEnabled: v.GetBool("SCORING_CACHE_ENABLED"),
	}

	cfg.Cache = CacheConfig{
		Prefix:          v.GetString("CACHE_PREFIX"),
		DisableCooldown: parseDuration(v.GetString("CACHE_DISABLE_COOLDOWN"), 30*time.Second),
		Static:          tierConfig(v, "STATIC", 30*time.Minute, 60*time.Minute),
		Config:          tierConfig(v, "CONFIG", 15*time.Minute, 30*time.Minute),
		Scores:          tierConfig(v, "SCORES", 5*time.Minute, 15*time.Minute),
		User:            tierConfig(v, "USER", 2*time.Minute, 10*time.Minute),
		Live:            tierConfig(v, "LIVE", 30*time.Second, 2*time.Minute),
	}

	cfg.DataSource = DataSourceConfig{
		Timeout:        parseDuration(v.GetString("DATASOURCE_TIMEOUT"), 10*time.Second),
		Retries:        v.GetInt("DATASOURCE_RETRIES"),
		RetryBaseDelay: parseDuration(v.GetString("DATASOURCE_RETRY_BASE_DELAY"), 200*time.Millisecond),
	}

	cfg.Sync = SyncConfig{
		MaxAgeMinutes:     positiveInt(v.GetInt("SYNC_MAX_AGE_MINUTES"), 30),
		Interval:          parseDuration(v.GetString("SYNC_INTERVAL"), 15*time.Minute),
		SchedulerEnabled:  v.GetBool("SYNC_SCHEDULER_ENABLED"),
		UpsertConcurrency: positiveInt(v.GetInt("SYNC_UPSERT_CONCURRENCY"), 8),
		QueueWorkers:      positiveInt(v.GetInt("SYNC_QUEUE_WORKERS"), 2),
		QueueRetries:      positiveInt(v.GetInt("SYNC_QUEUE_RETRIES"), 3),
	}

	cfg.Monitor = MonitorConfig{
		MaxEntries:      positiveInt(v.GetInt("MONITOR_MAX_ENTRIES"), 1000),
		SlowCalculation: parseDuration(v.GetString("MONITOR_SLOW_CALCULATION"), time.Second),
		SlowQuery:       parseDuration(v.GetString("MONITOR_SLOW_QUERY"), 500*time.Millisecond),
		SlowBatch:       parseDuration(v.GetString("MONITOR_SLOW_BATCH"), 5*time.Second),
		SlowSync:        parseDuration(v.GetString("MONITOR_SLOW_SYNC"), 10*time.Second),
	}

	cfg.AccessCode = AccessCodeConfig{
		MaxFailures: positiveInt(v.GetInt("ACCESS_CODE_MAX_FAILURES"), 5),
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
	v.SetDefault("DB_NAME", "admin_panel_sma")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCORING_BATCH_SIZE", 200)
	v.SetDefault("SCORING_CONCURRENCY", 8)
	v.SetDefault("SCORING_CACHE_ENABLED", true)

	v.SetDefault("CACHE_PREFIX", "sma")
	v.SetDefault("CACHE_DISABLE_COOLDOWN", "30s")

	v.SetDefault("DATASOURCE_TIMEOUT", "10s")
	v.SetDefault("DATASOURCE_RETRIES", 2)
	v.SetDefault("DATASOURCE_RETRY_BASE_DELAY", "200ms")

	v.SetDefault("SYNC_MAX_AGE_MINUTES", 30)
	v.SetDefault("SYNC_INTERVAL", "15m")
	v.SetDefault("SYNC_SCHEDULER_ENABLED", false)
	v.SetDefault("SYNC_UPSERT_CONCURRENCY", 8)
	v.SetDefault("SYNC_QUEUE_WORKERS", 2)
	v.SetDefault("SYNC_QUEUE_RETRIES", 3)

	v.SetDefault("MONITOR_MAX_ENTRIES", 1000)
	v.SetDefault("MONITOR_SLOW_CALCULATION", "1s")
	v.SetDefault("MONITOR_SLOW_QUERY", "500ms")
	v.SetDefault("MONITOR_SLOW_BATCH", "5s")
	v.SetDefault("MONITOR_SLOW_SYNC", "10s")

	v.SetDefault("ACCESS_CODE_MAX_FAILURES", 5)
}

func tierConfig(v *viper.Viper, name string, stale, evict time.Duration) CacheTierConfig {
	return CacheTierConfig{
		StaleAfter: parseDuration(v.GetString("CACHE_"+name+"_STALE_AFTER"), stale),
		EvictAfter: parseDuration(v.GetString("CACHE_"+name+"_EVICT_AFTER"), evict),
	}
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

// isMissingFile reports a missing .env file, which viper surfaces as a path error
// rather than ConfigFileNotFoundError when SetConfigFile is used.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func positiveInt(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
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
