package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared/valueobject"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. LMS_DATABASE_PASSWORD
const EnvPrefix = "LMS"

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Scheduler SchedulerConfig
	Telemetry TelemetryConfig
	Storage   StorageConfig
	Lending   LendingConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
	// Service names the process in every log entry
	Service string
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres or sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Path            string // sqlite file, ":memory:" for an in-process database
	AutoMigrate     bool   // create the lending tables on start (sqlite only)
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns the host:port address of the Redis server
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig holds the settings used to validate operator tokens
type JWTConfig struct {
	Secret                string
	Issuer                string
	AccessTokenExpiration time.Duration
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// SchedulerConfig holds the daily delinquency sweep configuration
type SchedulerConfig struct {
	Enabled           bool
	SweepCronSchedule string
	SweepConcurrency  int
	JobTimeout        time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
	Timezone          string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings
	// Continuous profiling
	ProfilingEnabled  bool
	ProfilingEndpoint string // Pyroscope server address
	// Prometheus scrape endpoint for the sweep collector
	MetricsEnabled bool
}

// StorageConfig holds the S3-compatible object storage used for legal dossiers
type StorageConfig struct {
	Enabled       bool
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	UsePathStyle  bool
	DossierPrefix string
}

// LendingConfig holds the lending policy and the tunables of the lending services
type LendingConfig struct {
	Currency         string
	PenaltyRateBps   int64
	ProcessingFeeBps int64
	DefaultMethod    string
	AdvancePolicy    string
	// First DPD of each bucket after Current
	ThresholdX     int
	ThresholdY     int
	ThresholdM1    int
	ThresholdM2    int
	ThresholdM3    int
	ThresholdLegal int
	// Bounded retries of the read-allocate-commit sequence
	MaxAttempts int
	LockTTL     time.Duration
	LockBackend string // memory or redis
	// Payment idempotency keys
	IdempotencyTTL     time.Duration
	IdempotencyBackend string // memory or redis
}

// Policy builds the lending policy the engine is configured with
func (l LendingConfig) Policy() (lending.Policy, error) {
	thresholds, err := lending.NewThresholdTable(
		l.ThresholdX, l.ThresholdY, l.ThresholdM1, l.ThresholdM2, l.ThresholdM3, l.ThresholdLegal,
	)
	if err != nil {
		return lending.Policy{}, err
	}
	return lending.Policy{
		Currency:         valueobject.Currency(l.Currency),
		PenaltyRateBps:   l.PenaltyRateBps,
		ProcessingFeeBps: l.ProcessingFeeBps,
		AdvancePolicy:    lending.AdvancePolicy(l.AdvancePolicy),
		Thresholds:       thresholds,
	}, nil
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with LMS_ prefix (e.g., LMS_DATABASE_PASSWORD)
// 2. A .env file in the working directory
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	// godotenv never overrides variables that are already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			Path:            v.GetString("database.path"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:                v.GetString("jwt.secret"),
			Issuer:                v.GetString("jwt.issuer"),
			AccessTokenExpiration: v.GetDuration("jwt.access_token_expiration"),
		},
		Log: LogConfig{
			Level:   v.GetString("log.level"),
			Format:  v.GetString("log.format"),
			Output:  v.GetString("log.output"),
			Service: v.GetString("app.name"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Scheduler: SchedulerConfig{
			Enabled:           v.GetBool("scheduler.enabled"),
			SweepCronSchedule: v.GetString("scheduler.sweep_cron_schedule"),
			SweepConcurrency:  v.GetInt("scheduler.sweep_concurrency"),
			JobTimeout:        v.GetDuration("scheduler.job_timeout"),
			RetryAttempts:     v.GetInt("scheduler.retry_attempts"),
			RetryDelay:        v.GetDuration("scheduler.retry_delay"),
			Timezone:          v.GetString("scheduler.timezone"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			ProfilingEndpoint: v.GetString("telemetry.profiling_endpoint"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
		},
		Storage: StorageConfig{
			Enabled:       v.GetBool("storage.enabled"),
			Endpoint:      v.GetString("storage.endpoint"),
			Region:        v.GetString("storage.region"),
			Bucket:        v.GetString("storage.bucket"),
			AccessKey:     v.GetString("storage.access_key"),
			SecretKey:     v.GetString("storage.secret_key"),
			UseSSL:        v.GetBool("storage.use_ssl"),
			UsePathStyle:  v.GetBool("storage.use_path_style"),
			DossierPrefix: v.GetString("storage.dossier_prefix"),
		},
		Lending: LendingConfig{
			Currency:           v.GetString("lending.currency"),
			PenaltyRateBps:     v.GetInt64("lending.penalty_rate_bps"),
			ProcessingFeeBps:   v.GetInt64("lending.processing_fee_bps"),
			DefaultMethod:      v.GetString("lending.default_method"),
			AdvancePolicy:      v.GetString("lending.advance_policy"),
			ThresholdX:         v.GetInt("lending.threshold_x"),
			ThresholdY:         v.GetInt("lending.threshold_y"),
			ThresholdM1:        v.GetInt("lending.threshold_m1"),
			ThresholdM2:        v.GetInt("lending.threshold_m2"),
			ThresholdM3:        v.GetInt("lending.threshold_m3"),
			ThresholdLegal:     v.GetInt("lending.threshold_legal"),
			MaxAttempts:        v.GetInt("lending.max_attempts"),
			LockTTL:            v.GetDuration("lending.lock_ttl"),
			LockBackend:        v.GetString("lending.lock_backend"),
			IdempotencyTTL:     v.GetDuration("lending.idempotency_ttl"),
			IdempotencyBackend: v.GetString("lending.idempotency_backend"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "loan-engine"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPostgres
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "lending"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "lending.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "loan-engine"
	}
	if cfg.JWT.AccessTokenExpiration == 0 {
		cfg.JWT.AccessTokenExpiration = 15 * time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 100
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	// An empty origin list allows no cross-origin requests
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "X-Tenant-ID", "Idempotency-Key"}
	}
	if cfg.Scheduler.SweepCronSchedule == "" {
		cfg.Scheduler.SweepCronSchedule = "30 0 * * *"
	}
	if cfg.Scheduler.SweepConcurrency == 0 {
		cfg.Scheduler.SweepConcurrency = 8
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 2 * time.Hour
	}
	if cfg.Scheduler.RetryAttempts == 0 {
		cfg.Scheduler.RetryAttempts = 3
	}
	if cfg.Scheduler.RetryDelay == 0 {
		cfg.Scheduler.RetryDelay = 5 * time.Minute
	}
	if cfg.Scheduler.Timezone == "" {
		cfg.Scheduler.Timezone = "Asia/Kolkata"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "loan-engine"
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Telemetry.ProfilingEndpoint == "" {
		cfg.Telemetry.ProfilingEndpoint = "http://localhost:4040"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.DossierPrefix == "" {
		cfg.Storage.DossierPrefix = "legal-dossiers"
	}
	applyLendingDefaults(&cfg.Lending)
}

func applyLendingDefaults(l *LendingConfig) {
	if l.Currency == "" {
		l.Currency = string(valueobject.INR)
	}
	if l.PenaltyRateBps == 0 {
		l.PenaltyRateBps = 3600
	}
	if l.ProcessingFeeBps == 0 {
		l.ProcessingFeeBps = 200
	}
	if l.DefaultMethod == "" {
		l.DefaultMethod = string(lending.MethodReducingBalance)
	}
	if l.AdvancePolicy == "" {
		l.AdvancePolicy = string(lending.AdvanceReduceTenure)
	}
	if l.ThresholdX == 0 {
		l.ThresholdX = 1
	}
	if l.ThresholdY == 0 {
		l.ThresholdY = 31
	}
	if l.ThresholdM1 == 0 {
		l.ThresholdM1 = 61
	}
	if l.ThresholdM2 == 0 {
		l.ThresholdM2 = 91
	}
	if l.ThresholdM3 == 0 {
		l.ThresholdM3 = 181
	}
	if l.ThresholdLegal == 0 {
		l.ThresholdLegal = 366
	}
	if l.MaxAttempts == 0 {
		l.MaxAttempts = 3
	}
	if l.LockTTL == 0 {
		l.LockTTL = 30 * time.Second
	}
	if l.LockBackend == "" {
		l.LockBackend = BackendMemory
	}
	if l.IdempotencyTTL == 0 {
		l.IdempotencyTTL = 24 * time.Hour
	}
	if l.IdempotencyBackend == "" {
		l.IdempotencyBackend = BackendMemory
	}
}

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Lock and idempotency backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.Driver != DriverPostgres && c.Database.Driver != DriverSQLite {
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.App.Env == "production" {
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Driver != DriverPostgres {
			return fmt.Errorf("database.driver must be postgres in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	if c.Scheduler.SweepConcurrency < 1 {
		return fmt.Errorf("scheduler.sweep_concurrency must be positive")
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("scheduler.timezone: %w", err)
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage is enabled")
	}
	return c.Lending.validate()
}

func (l LendingConfig) validate() error {
	if !lending.InterestMethod(l.DefaultMethod).IsValid() {
		return fmt.Errorf("lending.default_method %q is not supported", l.DefaultMethod)
	}
	if l.MaxAttempts < 1 {
		return fmt.Errorf("lending.max_attempts must be positive")
	}
	if l.LockTTL <= 0 {
		return fmt.Errorf("lending.lock_ttl must be positive")
	}
	for name, backend := range map[string]string{
		"lending.lock_backend":        l.LockBackend,
		"lending.idempotency_backend": l.IdempotencyBackend,
	} {
		if backend != BackendMemory && backend != BackendRedis {
			return fmt.Errorf("%s must be %q or %q, got %q", name, BackendMemory, BackendRedis, backend)
		}
	}
	policy, err := l.Policy()
	if err != nil {
		return fmt.Errorf("invalid lending thresholds: %w", err)
	}
	if _, err := lending.NewEngine(policy); err != nil {
		return fmt.Errorf("invalid lending policy: %w", err)
	}
	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	if d.Driver == DriverSQLite {
		return d.Path
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
