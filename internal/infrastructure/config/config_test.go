package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadIn(t *testing.T, dir string) (*Config, error) {
	t.Helper()
	return LoadFrom(viper.New(), dir)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadIn(t, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "wmssync", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)

	assert.Equal(t, "picqer", cfg.WMS.PathPrefix)
	assert.Equal(t, "picqer", cfg.WMS.HandlerCode)
	assert.Equal(t, 30*time.Second, cfg.WMS.HTTPTimeout)

	assert.Equal(t, "memory", cfg.Queue.Backend)
	assert.Equal(t, "wms-sync", cfg.Queue.Name)
	assert.Equal(t, 1, cfg.Queue.WorkerCount)
	assert.Equal(t, 10, cfg.Queue.MaxRetries)
	assert.Equal(t, time.Second, cfg.Queue.BaseRetryDelay)
	assert.Equal(t, 30*time.Minute, cfg.Queue.MaxRetryDelay)
	assert.Zero(t, cfg.Queue.QueueSize, "the queue is unbounded unless capped")

	assert.Equal(t, 1000, cfg.Sync.FullSyncPageSize)
	assert.Equal(t, 10, cfg.Sync.FullSyncBatchSize)
	assert.False(t, cfg.Kafka.Enabled)
	assert.False(t, cfg.Profiler.Enabled)
	assert.Equal(t, []string{"cpu", "alloc_space", "inuse_space", "goroutines"}, cfg.Profiler.ProfileTypes)
	assert.True(t, cfg.Swagger.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("WMSSYNC_APP_PORT", "9000")
	t.Setenv("WMSSYNC_DATABASE_DRIVER", "sqlite")
	t.Setenv("WMSSYNC_DATABASE_PATH", ":memory:")
	t.Setenv("WMSSYNC_WMS_PATH_PREFIX", "/warehouse/")
	t.Setenv("WMSSYNC_QUEUE_MAX_RETRIES", "3")
	t.Setenv("WMSSYNC_KAFKA_ENABLED", "true")
	t.Setenv("WMSSYNC_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := loadIn(t, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.App.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, ":memory:", cfg.Database.DSN())
	assert.Equal(t, "warehouse", cfg.WMS.PathPrefix)
	assert.Equal(t, 3, cfg.Queue.MaxRetries)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[app]
public_host = "https://sync.example.com/"

[wms]
handler_code = "warehouse"
order_note_template = "Order {{.Code}}"

[sync]
full_sync_batch_size = 25
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o600))

	cfg, err := loadIn(t, dir)
	require.NoError(t, err)

	assert.Equal(t, "warehouse", cfg.WMS.HandlerCode)
	assert.Equal(t, "Order {{.Code}}", cfg.WMS.OrderNoteTemplate)
	assert.Equal(t, 25, cfg.Sync.FullSyncBatchSize)
	assert.Equal(t, "https://sync.example.com/picqer/hooks/tok%2F1", cfg.WebhookURL("tok/1"))
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "unknown driver",
			env:  map[string]string{"WMSSYNC_DATABASE_DRIVER": "mysql"},
			want: "database.driver",
		},
		{
			name: "redis queue without redis",
			env:  map[string]string{"WMSSYNC_QUEUE_BACKEND": "redis"},
			want: "redis.enabled",
		},
		{
			name: "zero workers",
			env:  map[string]string{"WMSSYNC_QUEUE_WORKER_COUNT": "0"},
			want: "worker_count",
		},
		{
			name: "max delay below base",
			env: map[string]string{
				"WMSSYNC_QUEUE_BASE_RETRY_DELAY": "1m",
				"WMSSYNC_QUEUE_MAX_RETRY_DELAY":  "1s",
			},
			want: "retry delays",
		},
		{
			name: "kafka without brokers",
			env:  map[string]string{"WMSSYNC_KAFKA_ENABLED": "true"},
			want: "kafka.brokers",
		},
		{
			name: "production without jwt secret",
			env: map[string]string{
				"WMSSYNC_APP_ENV":          "production",
				"WMSSYNC_DATABASE_SSLMODE": "require",
			},
			want: "jwt.secret",
		},
		{
			name: "production with open swagger",
			env: map[string]string{
				"WMSSYNC_APP_ENV":          "production",
				"WMSSYNC_DATABASE_SSLMODE": "require",
				"WMSSYNC_JWT_SECRET":       "0123456789abcdef0123456789abcdef",
			},
			want: "swagger endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := loadIn(t, t.TempDir())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	db := DatabaseConfig{
		Driver:   "postgres",
		Host:     "db",
		Port:     5432,
		User:     "sync",
		Password: "p@ss word",
		DBName:   "wmssync",
		SSLMode:  "disable",
	}
	dsn := db.DSN()
	assert.Contains(t, dsn, "postgres://sync:p%40ss%20word@db:5432/wmssync")
	assert.Contains(t, dsn, "sslmode=disable")

	db.ConnMaxLifetime = 2
	assert.Equal(t, 2*time.Minute, db.ConnMaxLifetimeDuration())
}
