package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Ledger    LedgerConfig
	Transfer  TransferConfig
	Scheduler SchedulerConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string // json or console
	Output string // stdout, stderr or a file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds the Postgres connection and pool settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // minutes
	ConnMaxIdleTime int // minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
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

// LedgerConfig holds position locking and allocation settings
type LedgerConfig struct {
	LockTimeout          time.Duration // Bound on waiting for one position lock
	MaxRetries           int           // Retries of concurrency failures
	RetryBaseDelay       time.Duration
	RetryMaxDelay        time.Duration
	LockBackend          string        // memory or redis
	LockTTL              time.Duration // Lifetime of a Redis lock without release
	DefaultAllocationTTL time.Duration
}

// TransferConfig holds transfer workflow policy
type TransferConfig struct {
	RequireDistinctApprover bool
}

// SchedulerConfig holds background job configuration
type SchedulerConfig struct {
	Enabled           bool
	Workers           int
	QueueSize         int
	JobTimeout        time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
	SweepInterval     time.Duration // Allocation expiry sweep
	SweepBatchSize    int
	SweepParallelism  int
	ReconcileEnabled  bool
	ReconcileInterval time.Duration
}

// TelemetryConfig controls the OTLP exporters and database instrumentation
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string // OTLP gRPC host:port
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	LogsEnabled       bool
	DBTraceEnabled    bool
	DBLogFullSQL      bool // record statements with bound values in spans
	DBSlowQueryThresh time.Duration
}

// Load reads config.toml from the working directory, ./config or /app, then
// applies ERP_* environment overrides (ERP_LEDGER_LOCK_TIMEOUT overrides
// ledger.lock_timeout) on top of the built-in defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	return FromViper(v)
}

// FromViper builds a validated Config from an already populated viper
// instance. Environment overrides with the ERP_ prefix are enabled on v.
func FromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("ERP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := build(v)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaults lists every key that has a built-in value. Keys without an entry
// (passwords, CORS origins, trusted proxies) start empty.
var defaults = map[string]any{
	"app.name": "stockledger",
	"app.env":  "development",
	"app.port": "8080",

	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.dbname":             "stockledger",
	"database.sslmode":            "disable",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,

	"redis.host": "localhost",
	"redis.port": 6379,

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"http.read_timeout":        15 * time.Second,
	"http.write_timeout":       15 * time.Second,
	"http.idle_timeout":        60 * time.Second,
	"http.max_header_bytes":    1 << 20,
	"http.max_body_size":       1 << 20,
	"http.rate_limit_requests": 100,
	"http.rate_limit_window":   time.Minute,
	"http.cors_allow_methods":  []string{"GET", "POST", "OPTIONS"},
	"http.cors_allow_headers":  []string{"Content-Type", "X-Request-ID"},

	"ledger.lock_timeout":           5 * time.Second,
	"ledger.max_retries":            3,
	"ledger.retry_base_delay":       20 * time.Millisecond,
	"ledger.retry_max_delay":        500 * time.Millisecond,
	"ledger.lock_backend":           "memory",
	"ledger.lock_ttl":               30 * time.Second,
	"ledger.default_allocation_ttl": 24 * time.Hour,

	"scheduler.workers":            2,
	"scheduler.queue_size":         16,
	"scheduler.job_timeout":        5 * time.Minute,
	"scheduler.retry_attempts":     3,
	"scheduler.retry_delay":        10 * time.Second,
	"scheduler.sweep_interval":     time.Minute,
	"scheduler.sweep_batch_size":   500,
	"scheduler.sweep_parallelism":  8,
	"scheduler.reconcile_interval": time.Hour,

	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "stockledger",
	"telemetry.metrics_interval":        60 * time.Second,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,
}

func setDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

func build(v *viper.Viper) *Config {
	return &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
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
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
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
		Ledger: LedgerConfig{
			LockTimeout:          v.GetDuration("ledger.lock_timeout"),
			MaxRetries:           v.GetInt("ledger.max_retries"),
			RetryBaseDelay:       v.GetDuration("ledger.retry_base_delay"),
			RetryMaxDelay:        v.GetDuration("ledger.retry_max_delay"),
			LockBackend:          v.GetString("ledger.lock_backend"),
			LockTTL:              v.GetDuration("ledger.lock_ttl"),
			DefaultAllocationTTL: v.GetDuration("ledger.default_allocation_ttl"),
		},
		Transfer: TransferConfig{
			RequireDistinctApprover: v.GetBool("transfer.require_distinct_approver"),
		},
		Scheduler: SchedulerConfig{
			Enabled:           v.GetBool("scheduler.enabled"),
			Workers:           v.GetInt("scheduler.workers"),
			QueueSize:         v.GetInt("scheduler.queue_size"),
			JobTimeout:        v.GetDuration("scheduler.job_timeout"),
			RetryAttempts:     v.GetInt("scheduler.retry_attempts"),
			RetryDelay:        v.GetDuration("scheduler.retry_delay"),
			SweepInterval:     v.GetDuration("scheduler.sweep_interval"),
			SweepBatchSize:    v.GetInt("scheduler.sweep_batch_size"),
			SweepParallelism:  v.GetInt("scheduler.sweep_parallelism"),
			ReconcileEnabled:  v.GetBool("scheduler.reconcile_enabled"),
			ReconcileInterval: v.GetDuration("scheduler.reconcile_interval"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
	}
}

// validate rejects settings the ledger cannot run with
func (c *Config) validate() error {
	switch db := c.Database; {
	case db.MaxOpenConns <= 0:
		return fmt.Errorf("database.max_open_conns must be positive, got %d", db.MaxOpenConns)
	case db.MaxIdleConns < 0 || db.MaxIdleConns > db.MaxOpenConns:
		return fmt.Errorf("database.max_idle_conns (%d) must be within 0 and database.max_open_conns (%d)",
			db.MaxIdleConns, db.MaxOpenConns)
	}

	if c.Ledger.LockTimeout < 0 {
		return fmt.Errorf("ledger.lock_timeout must be positive")
	}
	if c.Ledger.MaxRetries < 0 {
		return fmt.Errorf("ledger.max_retries cannot be negative")
	}
	if c.Ledger.RetryMaxDelay < c.Ledger.RetryBaseDelay {
		return fmt.Errorf("ledger.retry_max_delay (%s) cannot be below ledger.retry_base_delay (%s)",
			c.Ledger.RetryMaxDelay, c.Ledger.RetryBaseDelay)
	}
	switch c.Ledger.LockBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("ledger.lock_backend must be memory or redis, got %q", c.Ledger.LockBackend)
	}
	if c.Ledger.DefaultAllocationTTL < 0 {
		return fmt.Errorf("ledger.default_allocation_ttl must be positive")
	}
	if c.Scheduler.SweepInterval < 0 || c.Scheduler.ReconcileInterval < 0 {
		return fmt.Errorf("scheduler intervals must be positive")
	}

	if r := c.Telemetry.SamplingRatio; r < 0 || r > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be within [0, 1], got %g", r)
	}

	if c.App.Env != "production" {
		return nil
	}
	switch {
	case c.Database.Password == "":
		return fmt.Errorf("database.password must be set in production")
	case c.Database.SSLMode == "disable":
		return fmt.Errorf("database.sslmode %q is not allowed in production", c.Database.SSLMode)
	case slices.Contains(c.HTTP.CORSAllowOrigins, "*"):
		return fmt.Errorf("http.cors_allow_origins must list explicit origins in production")
	case c.Telemetry.DBLogFullSQL:
		return fmt.Errorf("telemetry.db_log_full_sql must be off in production")
	}
	return nil
}

// DSN renders a postgres URL, escaping the credentials
func (d *DatabaseConfig) DSN() string {
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
