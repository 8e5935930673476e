package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "stockledger", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "stockledger", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)

		assert.Equal(t, 5*time.Second, cfg.Ledger.LockTimeout)
		assert.Equal(t, 3, cfg.Ledger.MaxRetries)
		assert.Equal(t, 20*time.Millisecond, cfg.Ledger.RetryBaseDelay)
		assert.Equal(t, 500*time.Millisecond, cfg.Ledger.RetryMaxDelay)
		assert.Equal(t, "memory", cfg.Ledger.LockBackend)
		assert.Equal(t, 30*time.Second, cfg.Ledger.LockTTL)
		assert.Equal(t, 24*time.Hour, cfg.Ledger.DefaultAllocationTTL)

		assert.False(t, cfg.Transfer.RequireDistinctApprover)
		assert.Equal(t, time.Minute, cfg.Scheduler.SweepInterval)
		assert.Equal(t, time.Hour, cfg.Scheduler.ReconcileInterval)
		assert.Equal(t, 1.0, cfg.Telemetry.SamplingRatio)
	})

	t.Run("loads values from environment variables with ERP prefix", func(t *testing.T) {
		t.Setenv("ERP_APP_PORT", "9000")
		t.Setenv("ERP_DATABASE_HOST", "testdb.local")
		t.Setenv("ERP_DATABASE_MAX_OPEN_CONNS", "50")
		t.Setenv("ERP_DATABASE_MAX_IDLE_CONNS", "10")
		t.Setenv("ERP_LEDGER_LOCK_TIMEOUT", "2s")
		t.Setenv("ERP_LEDGER_MAX_RETRIES", "7")
		t.Setenv("ERP_LEDGER_LOCK_BACKEND", "redis")
		t.Setenv("ERP_LEDGER_DEFAULT_ALLOCATION_TTL", "90m")
		t.Setenv("ERP_TRANSFER_REQUIRE_DISTINCT_APPROVER", "true")
		t.Setenv("ERP_SCHEDULER_SWEEP_INTERVAL", "30s")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.Equal(t, 2*time.Second, cfg.Ledger.LockTimeout)
		assert.Equal(t, 7, cfg.Ledger.MaxRetries)
		assert.Equal(t, "redis", cfg.Ledger.LockBackend)
		assert.Equal(t, 90*time.Minute, cfg.Ledger.DefaultAllocationTTL)
		assert.True(t, cfg.Transfer.RequireDistinctApprover)
		assert.Equal(t, 30*time.Second, cfg.Scheduler.SweepInterval)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		t.Setenv("ERP_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("ERP_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.max_idle_conns")
	})

	t.Run("rejects unknown lock backend", func(t *testing.T) {
		t.Setenv("ERP_LEDGER_LOCK_BACKEND", "zookeeper")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ledger.lock_backend")
	})

	t.Run("explicit zero retries is kept", func(t *testing.T) {
		t.Setenv("ERP_LEDGER_MAX_RETRIES", "0")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 0, cfg.Ledger.MaxRetries)
	})

	t.Run("rejects negative retries", func(t *testing.T) {
		t.Setenv("ERP_LEDGER_MAX_RETRIES", "-1")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_retries")
	})
}

func TestFromViper_TOML(t *testing.T) {
	v := viper.New()
	v.SetConfigType("toml")
	err := v.ReadConfig(strings.NewReader(`
[ledger]
lock_timeout = "750ms"
retry_base_delay = "10ms"
retry_max_delay = "40ms"

[scheduler]
enabled = true
reconcile_enabled = true
sweep_batch_size = 50

[http]
cors_allow_origins = ["https://ops.example.com"]
`))
	require.NoError(t, err)

	cfg, err := FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 750*time.Millisecond, cfg.Ledger.LockTimeout)
	assert.Equal(t, 10*time.Millisecond, cfg.Ledger.RetryBaseDelay)
	assert.Equal(t, 40*time.Millisecond, cfg.Ledger.RetryMaxDelay)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.True(t, cfg.Scheduler.ReconcileEnabled)
	assert.Equal(t, 50, cfg.Scheduler.SweepBatchSize)
	assert.Equal(t, []string{"https://ops.example.com"}, cfg.HTTP.CORSAllowOrigins)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		v := viper.New()
		setDefaults(v)
		return build(v)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "retry max below base",
			mutate:  func(c *Config) { c.Ledger.RetryMaxDelay = time.Millisecond },
			wantErr: "retry_max_delay",
		},
		{
			name:    "sampling ratio out of range",
			mutate:  func(c *Config) { c.Telemetry.SamplingRatio = 1.5 },
			wantErr: "sampling_ratio",
		},
		{
			name: "production requires password",
			mutate: func(c *Config) {
				c.App.Env = "production"
				c.Database.SSLMode = "require"
			},
			wantErr: "database.password",
		},
		{
			name: "production rejects wildcard origin",
			mutate: func(c *Config) {
				c.App.Env = "production"
				c.Database.Password = "secret"
				c.Database.SSLMode = "require"
				c.HTTP.CORSAllowOrigins = []string{"*"}
			},
			wantErr: "cors_allow_origins",
		},
		{
			name: "production rejects full SQL logging",
			mutate: func(c *Config) {
				c.App.Env = "production"
				c.Database.Password = "secret"
				c.Database.SSLMode = "require"
				c.Telemetry.DBLogFullSQL = true
			},
			wantErr: "db_log_full_sql",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "ledger",
		Password: "p@ss/word",
		DBName:   "stockledger",
		SSLMode:  "disable",
	}

	assert.Equal(t, "postgres://ledger:p%40ss%2Fword@db:5432/stockledger?sslmode=disable", d.DSN())
}
