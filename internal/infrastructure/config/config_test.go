package config

import (
	"testing"
	"time"

	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// managedEnv lists every variable the tests touch. viper ignores empty
// variables, so setting them to "" clears them for the test.
var managedEnv = []string{
	"LMS_APP_NAME",
	"LMS_APP_ENV",
	"LMS_APP_PORT",
	"LMS_DATABASE_DRIVER",
	"LMS_DATABASE_HOST",
	"LMS_DATABASE_PORT",
	"LMS_DATABASE_USER",
	"LMS_DATABASE_PASSWORD",
	"LMS_DATABASE_DBNAME",
	"LMS_DATABASE_SSLMODE",
	"LMS_DATABASE_MAX_OPEN_CONNS",
	"LMS_DATABASE_MAX_IDLE_CONNS",
	"LMS_JWT_SECRET",
	"LMS_SCHEDULER_SWEEP_CONCURRENCY",
	"LMS_SCHEDULER_TIMEZONE",
	"LMS_STORAGE_ENABLED",
	"LMS_STORAGE_BUCKET",
	"LMS_LENDING_PENALTY_RATE_BPS",
	"LMS_LENDING_DEFAULT_METHOD",
	"LMS_LENDING_ADVANCE_POLICY",
	"LMS_LENDING_THRESHOLD_Y",
	"LMS_LENDING_THRESHOLD_M1",
	"LMS_LENDING_LOCK_BACKEND",
	"LMS_LENDING_LOCK_TTL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range managedEnv {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "loan-engine", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, DriverPostgres, cfg.Database.Driver)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "lending", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.Equal(t, "30 0 * * *", cfg.Scheduler.SweepCronSchedule)
		assert.Equal(t, 8, cfg.Scheduler.SweepConcurrency)
		assert.Equal(t, "legal-dossiers", cfg.Storage.DossierPrefix)
	})

	t.Run("loads lending defaults", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		l := cfg.Lending
		assert.Equal(t, "INR", l.Currency)
		assert.Equal(t, int64(3600), l.PenaltyRateBps)
		assert.Equal(t, int64(200), l.ProcessingFeeBps)
		assert.Equal(t, string(lending.MethodReducingBalance), l.DefaultMethod)
		assert.Equal(t, string(lending.AdvanceReduceTenure), l.AdvancePolicy)
		assert.Equal(t, []int{1, 31, 61, 91, 181, 366},
			[]int{l.ThresholdX, l.ThresholdY, l.ThresholdM1, l.ThresholdM2, l.ThresholdM3, l.ThresholdLegal})
		assert.Equal(t, 3, l.MaxAttempts)
		assert.Equal(t, 30*time.Second, l.LockTTL)
		assert.Equal(t, BackendMemory, l.LockBackend)
		assert.Equal(t, 24*time.Hour, l.IdempotencyTTL)
	})

	t.Run("loads values from environment variables with LMS prefix", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("LMS_APP_NAME", "test-app")
		t.Setenv("LMS_APP_ENV", "testing")
		t.Setenv("LMS_APP_PORT", "9000")
		t.Setenv("LMS_DATABASE_HOST", "testdb.local")
		t.Setenv("LMS_DATABASE_PORT", "5433")
		t.Setenv("LMS_DATABASE_USER", "testuser")
		t.Setenv("LMS_DATABASE_PASSWORD", "testpass")
		t.Setenv("LMS_DATABASE_DBNAME", "testdb")
		t.Setenv("LMS_DATABASE_SSLMODE", "require")
		t.Setenv("LMS_DATABASE_MAX_OPEN_CONNS", "50")
		t.Setenv("LMS_DATABASE_MAX_IDLE_CONNS", "10")
		t.Setenv("LMS_LENDING_PENALTY_RATE_BPS", "2400")
		t.Setenv("LMS_LENDING_ADVANCE_POLICY", "REDUCE_EMI")
		t.Setenv("LMS_LENDING_LOCK_BACKEND", "redis")
		t.Setenv("LMS_LENDING_LOCK_TTL", "45s")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "testing", cfg.App.Env)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "testuser", cfg.Database.User)
		assert.Equal(t, "testpass", cfg.Database.Password)
		assert.Equal(t, "testdb", cfg.Database.DBName)
		assert.Equal(t, "require", cfg.Database.SSLMode)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.Equal(t, int64(2400), cfg.Lending.PenaltyRateBps)
		assert.Equal(t, "REDUCE_EMI", cfg.Lending.AdvancePolicy)
		assert.Equal(t, BackendRedis, cfg.Lending.LockBackend)
		assert.Equal(t, 45*time.Second, cfg.Lending.LockTTL)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("LMS_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("LMS_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns")
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("zero MaxOpenConns uses default", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("LMS_DATABASE_MAX_OPEN_CONNS", "0")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	})

	t.Run("validates MaxIdleConns cannot be negative", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("LMS_DATABASE_MAX_IDLE_CONNS", "-1")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns cannot be negative")
	})

	t.Run("rejects an unknown database driver", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("LMS_DATABASE_DRIVER", "mysql")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.driver")
	})

	t.Run("rejects an unknown timezone", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("LMS_SCHEDULER_TIMEZONE", "Mars/Olympus_Mons")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scheduler.timezone")
	})

	t.Run("requires a bucket when storage is enabled", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("LMS_STORAGE_ENABLED", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage.bucket is required")
	})
}

func TestLoad_LendingValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "unknown interest method",
			env:     map[string]string{"LMS_LENDING_DEFAULT_METHOD": "BALLOON"},
			wantErr: "lending.default_method",
		},
		{
			name:    "unknown advance policy",
			env:     map[string]string{"LMS_LENDING_ADVANCE_POLICY": "SKIP_NEXT"},
			wantErr: "invalid lending policy",
		},
		{
			name:    "overlapping thresholds",
			env:     map[string]string{"LMS_LENDING_THRESHOLD_Y": "70", "LMS_LENDING_THRESHOLD_M1": "61"},
			wantErr: "invalid lending thresholds",
		},
		{
			name:    "negative penalty rate",
			env:     map[string]string{"LMS_LENDING_PENALTY_RATE_BPS": "-5"},
			wantErr: "invalid lending policy",
		},
		{
			name:    "unknown lock backend",
			env:     map[string]string{"LMS_LENDING_LOCK_BACKEND": "etcd"},
			wantErr: "lending.lock_backend",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLendingConfig_Policy(t *testing.T) {
	cfg := LendingConfig{
		Currency:         "INR",
		PenaltyRateBps:   3600,
		ProcessingFeeBps: 200,
		AdvancePolicy:    string(lending.AdvanceReduceEMI),
		ThresholdX:       1,
		ThresholdY:       31,
		ThresholdM1:      61,
		ThresholdM2:      91,
		ThresholdM3:      181,
		ThresholdLegal:   366,
	}

	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, valueobject.INR, policy.Currency)
	assert.Equal(t, lending.AdvanceReduceEMI, policy.AdvancePolicy)
	assert.Equal(t, 366, policy.Thresholds.LegalThreshold())
	assert.Equal(t, lending.BucketM1, policy.Thresholds.BucketFor(75))

	engine, err := lending.NewEngine(policy)
	require.NoError(t, err)
	assert.Equal(t, int64(200), engine.Policy().ProcessingFeeBps)
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func(t *testing.T) {
		clearEnv(t)
		t.Setenv("LMS_APP_ENV", "production")
		t.Setenv("LMS_JWT_SECRET", "this-is-a-very-secure-jwt-secret-key-32chars")
		t.Setenv("LMS_DATABASE_PASSWORD", "secure-password")
		t.Setenv("LMS_DATABASE_SSLMODE", "require")
	}

	t.Run("requires jwt.secret at least 32 characters in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("LMS_JWT_SECRET", "short-secret")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt.secret must be at least 32 characters")
	})

	t.Run("requires database.password in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("LMS_DATABASE_PASSWORD", "")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("LMS_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("rejects sqlite in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("LMS_DATABASE_DRIVER", "sqlite")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.driver must be postgres in production")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		setValidProductionBase(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Driver:   DriverPostgres,
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost")
		assert.Contains(t, dsn, "5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})

	t.Run("sqlite uses the file path", func(t *testing.T) {
		cfg := DatabaseConfig{Driver: DriverSQLite, Path: ":memory:"}
		assert.Equal(t, ":memory:", cfg.DSN())
	})
}

func TestRedisConfig_Addr(t *testing.T) {
	assert.Equal(t, "cache.local:6380", RedisConfig{Host: "cache.local", Port: 6380}.Addr())
}
