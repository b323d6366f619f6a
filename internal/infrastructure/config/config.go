// Package config loads service configuration from config.toml, an optional
// .env file and WMSSYNC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "WMSSYNC"

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	WMS       WMSConfig
	Queue     QueueConfig
	Sync      SyncConfig
	Storage   StorageConfig
	Kafka     KafkaConfig
	Telemetry TelemetryConfig
	Profiler  ProfilerConfig
	Swagger   SwaggerConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name       string
	Env        string
	Port       string
	PublicHost string // externally reachable base URL used in webhook addresses
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres or sqlite
	Path            string // sqlite file, ":memory:" for tests
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds settings for admin API tokens
type JWTConfig struct {
	Secret string
	Issuer string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxBodySize    int64
	TrustedProxies []string

	// Requests per RateWindow accepted on one webhook token; 0 disables.
	WebhookRateLimit int
	RateWindow       time.Duration
}

// WMSConfig holds settings of the Picqer integration shared by all channels
type WMSConfig struct {
	AppName           string // prefix of hook names and User-Agent
	PathPrefix        string // webhook path prefix, e.g. "picqer"
	HandlerCode       string // fulfillment handler code of orders shipped through the WMS
	OrderNoteTemplate string // text/template over the order; empty disables notes
	HTTPTimeout       time.Duration
	ClientCacheTTL    time.Duration
	WebhookDedupeTTL  time.Duration
}

// QueueConfig holds the sync job queue configuration
type QueueConfig struct {
	Backend        string // memory or redis
	Name           string
	WorkerCount    int
	QueueSize      int // caps new jobs, 0 means unbounded
	MaxRetries     int
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration
	JobTimeout     time.Duration
	PollInterval   time.Duration
}

// SyncConfig holds full sync settings
type SyncConfig struct {
	FullSyncPageSize  int
	FullSyncBatchSize int
}

// StorageConfig holds asset storage settings. An empty bucket selects the
// local directory.
type StorageConfig struct {
	LocalDir     string
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UsePathStyle bool
}

// KafkaConfig holds commerce event bridge settings
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	GroupID      string
	EventsTopic  string // commerce events consumed
	StockTopic   string // stock movements published
	WriteTimeout time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	MetricsInterval   time.Duration
}

// ProfilerConfig holds Pyroscope continuous profiling configuration
type ProfilerConfig struct {
	Enabled           bool
	ServerAddress     string // e.g. "http://pyroscope:4040"
	ApplicationName   string
	BasicAuthUser     string
	BasicAuthPassword string
	// ProfileTypes lists pyroscope profile types, e.g. cpu, inuse_space, goroutines
	ProfileTypes []string
	// SpanProfiles links CPU profiles to trace spans when telemetry is enabled
	SpanProfiles bool
}

// SwaggerConfig holds configuration of the admin API documentation endpoint
type SwaggerConfig struct {
	Enabled     bool
	RequireAuth bool     // require a valid admin token
	AllowedIPs  []string // IP or CIDR allow list, empty allows all
}

// Load loads configuration.
// Priority (highest to lowest):
// 1. Environment variables with WMSSYNC_ prefix (e.g., WMSSYNC_DATABASE_PASSWORD)
// 2. .env file in the working directory
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}
	return LoadFrom(viper.New(), ".", "./config", "/etc/wmssync")
}

// LoadFrom reads configuration through v, searching config.toml in paths.
func LoadFrom(v *viper.Viper, paths ...string) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("toml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:       v.GetString("app.name"),
			Env:        v.GetString("app.env"),
			Port:       v.GetString("app.port"),
			PublicHost: strings.TrimRight(v.GetString("app.public_host"), "/"),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(v.GetString("database.driver")),
			Path:            v.GetString("database.path"),
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
			Enabled:  v.GetBool("redis.enabled"),
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			Issuer: v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
			WebhookRateLimit: v.GetInt("http.webhook_rate_limit"),
			RateWindow:       v.GetDuration("http.rate_window"),
		},
		WMS: WMSConfig{
			AppName:           v.GetString("wms.app_name"),
			PathPrefix:        strings.Trim(v.GetString("wms.path_prefix"), "/"),
			HandlerCode:       v.GetString("wms.handler_code"),
			OrderNoteTemplate: v.GetString("wms.order_note_template"),
			HTTPTimeout:       v.GetDuration("wms.http_timeout"),
			ClientCacheTTL:    v.GetDuration("wms.client_cache_ttl"),
			WebhookDedupeTTL:  v.GetDuration("wms.webhook_dedupe_ttl"),
		},
		Queue: QueueConfig{
			Backend:        strings.ToLower(v.GetString("queue.backend")),
			Name:           v.GetString("queue.name"),
			WorkerCount:    v.GetInt("queue.worker_count"),
			QueueSize:      v.GetInt("queue.queue_size"),
			MaxRetries:     v.GetInt("queue.max_retries"),
			BaseRetryDelay: v.GetDuration("queue.base_retry_delay"),
			MaxRetryDelay:  v.GetDuration("queue.max_retry_delay"),
			JobTimeout:     v.GetDuration("queue.job_timeout"),
			PollInterval:   v.GetDuration("queue.poll_interval"),
		},
		Sync: SyncConfig{
			FullSyncPageSize:  v.GetInt("sync.full_sync_page_size"),
			FullSyncBatchSize: v.GetInt("sync.full_sync_batch_size"),
		},
		Storage: StorageConfig{
			LocalDir:     v.GetString("storage.local_dir"),
			Endpoint:     v.GetString("storage.endpoint"),
			Region:       v.GetString("storage.region"),
			Bucket:       v.GetString("storage.bucket"),
			AccessKey:    v.GetString("storage.access_key"),
			SecretKey:    v.GetString("storage.secret_key"),
			UseSSL:       v.GetBool("storage.use_ssl"),
			UsePathStyle: v.GetBool("storage.use_path_style"),
		},
		Kafka: KafkaConfig{
			Enabled:      v.GetBool("kafka.enabled"),
			Brokers:      splitList(v.GetStringSlice("kafka.brokers")),
			GroupID:      v.GetString("kafka.group_id"),
			EventsTopic:  v.GetString("kafka.events_topic"),
			StockTopic:   v.GetString("kafka.stock_topic"),
			WriteTimeout: v.GetDuration("kafka.write_timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
		},
		Profiler: ProfilerConfig{
			Enabled:           v.GetBool("profiler.enabled"),
			ServerAddress:     v.GetString("profiler.server_address"),
			ApplicationName:   v.GetString("profiler.application_name"),
			BasicAuthUser:     v.GetString("profiler.basic_auth_user"),
			BasicAuthPassword: v.GetString("profiler.basic_auth_password"),
			ProfileTypes:      splitList(v.GetStringSlice("profiler.profile_types")),
			SpanProfiles:      v.GetBool("profiler.span_profiles"),
		},
		Swagger: SwaggerConfig{
			Enabled:     v.GetBool("swagger.enabled"),
			RequireAuth: v.GetBool("swagger.require_auth"),
			AllowedIPs:  splitList(v.GetStringSlice("swagger.allowed_ips")),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// splitList accepts both TOML arrays and comma separated env values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "wmssync")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.public_host", "http://localhost:8080")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.path", "wmssync.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "wmssync")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30)
	v.SetDefault("database.conn_max_idle_time", 10)

	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("jwt.issuer", "wmssync")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("http.read_timeout", "30s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.idle_timeout", "120s")
	v.SetDefault("http.max_body_size", 10<<20)
	v.SetDefault("http.webhook_rate_limit", 600)
	v.SetDefault("http.rate_window", "1m")

	v.SetDefault("wms.app_name", "WMSSync")
	v.SetDefault("wms.path_prefix", "picqer")
	v.SetDefault("wms.handler_code", "picqer")
	v.SetDefault("wms.order_note_template", "")
	v.SetDefault("wms.http_timeout", "30s")
	v.SetDefault("wms.client_cache_ttl", "10m")
	v.SetDefault("wms.webhook_dedupe_ttl", "24h")

	v.SetDefault("queue.backend", "memory")
	v.SetDefault("queue.name", "wms-sync")
	v.SetDefault("queue.worker_count", 1)
	v.SetDefault("queue.queue_size", 0)
	v.SetDefault("queue.max_retries", 10)
	v.SetDefault("queue.base_retry_delay", "1s")
	v.SetDefault("queue.max_retry_delay", "30m")
	v.SetDefault("queue.job_timeout", "5m")
	v.SetDefault("queue.poll_interval", "500ms")

	v.SetDefault("sync.full_sync_page_size", 1000)
	v.SetDefault("sync.full_sync_batch_size", 10)

	v.SetDefault("storage.local_dir", "./assets")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.use_path_style", true)

	v.SetDefault("kafka.group_id", "wmssync")
	v.SetDefault("kafka.events_topic", "commerce.events")
	v.SetDefault("kafka.stock_topic", "commerce.stock")
	v.SetDefault("kafka.write_timeout", "10s")

	v.SetDefault("telemetry.collector_endpoint", "localhost:4317")
	v.SetDefault("telemetry.sampling_ratio", 1.0)
	v.SetDefault("telemetry.service_name", "wmssync")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.metrics_interval", "60s")

	v.SetDefault("profiler.enabled", false)
	v.SetDefault("profiler.server_address", "http://localhost:4040")
	v.SetDefault("profiler.application_name", "wmssync")
	v.SetDefault("profiler.profile_types", []string{"cpu", "alloc_space", "inuse_space", "goroutines"})
	v.SetDefault("profiler.span_profiles", true)

	v.SetDefault("swagger.enabled", true)
	v.SetDefault("swagger.require_auth", false)
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required for postgres")
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("database.max_open_conns must be at least 1")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns cannot exceed max_open_conns")
	}

	if c.WMS.PathPrefix == "" {
		return fmt.Errorf("wms.path_prefix is required")
	}
	if c.WMS.HandlerCode == "" {
		return fmt.Errorf("wms.handler_code is required")
	}

	switch c.Queue.Backend {
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("queue.backend redis requires redis.enabled")
		}
	default:
		return fmt.Errorf("queue.backend must be memory or redis, got %q", c.Queue.Backend)
	}
	if c.Queue.WorkerCount < 1 {
		return fmt.Errorf("queue.worker_count must be at least 1")
	}
	if c.Queue.MaxRetries < 0 {
		return fmt.Errorf("queue.max_retries cannot be negative")
	}
	if c.Queue.BaseRetryDelay <= 0 || c.Queue.MaxRetryDelay < c.Queue.BaseRetryDelay {
		return fmt.Errorf("queue retry delays must satisfy 0 < base_retry_delay <= max_retry_delay")
	}

	if c.Sync.FullSyncPageSize < 1 || c.Sync.FullSyncBatchSize < 1 {
		return fmt.Errorf("sync page and batch sizes must be positive")
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}

	if c.HTTP.WebhookRateLimit > 0 && c.HTTP.RateWindow <= 0 {
		return fmt.Errorf("http.rate_window must be positive when webhook_rate_limit is set")
	}

	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0 and 1")
	}

	if c.Profiler.Enabled && (c.Profiler.ServerAddress == "" || c.Profiler.ApplicationName == "") {
		return fmt.Errorf("profiler.server_address and profiler.application_name are required when profiling is enabled")
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" || len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Driver == "postgres" && c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode must not be disable in production")
		}
		if c.Swagger.Enabled && !c.Swagger.RequireAuth && len(c.Swagger.AllowedIPs) == 0 {
			return fmt.Errorf("swagger endpoint must be disabled, require authentication, or have IP restriction in production")
		}
	}

	return nil
}

// IsProduction reports whether the app runs with env "production".
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// WebhookURL returns the public address Picqer posts events to for a channel.
func (c *Config) WebhookURL(channelToken string) string {
	return fmt.Sprintf("%s/%s/hooks/%s", c.App.PublicHost, c.WMS.PathPrefix, url.PathEscape(channelToken))
}

// DSN returns the database connection string.
// Uses url.URL so credentials with special characters are escaped.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "sqlite" {
		return c.Path
	}
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.DBName,
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// ConnMaxLifetimeDuration returns the connection lifetime as a duration.
func (c *DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(c.ConnMaxLifetime) * time.Minute
}

// ConnMaxIdleTimeDuration returns the idle timeout as a duration.
func (c *DatabaseConfig) ConnMaxIdleTimeDuration() time.Duration {
	return time.Duration(c.ConnMaxIdleTime) * time.Minute
}
