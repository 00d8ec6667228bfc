package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kotky/gradebook-edx-platform-extensions/internal/data/db"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/gradebook"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/jobs/queue"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/observability"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/envutil"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/realtime/bus"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/temporalx"
)

const ConfigPathEnv = "GRADEBOOK_CONFIG_PATH"

type Config struct {
	LogMode string `yaml:"log_mode"`

	Database db.Config       `yaml:"database"`
	Redis    bus.RedisConfig `yaml:"redis"`

	Queue    QueueConfig      `yaml:"queue"`
	Temporal temporalx.Config `yaml:"temporal"`

	Grades GradesConfig `yaml:"grades"`

	HTTP    HTTPConfig                `yaml:"http"`
	Metrics MetricsConfig             `yaml:"metrics"`
	Otel    observability.OtelConfig `yaml:"otel"`

	Gradebook gradebook.Config `yaml:"gradebook"`

	RunServer bool `yaml:"run_server"`
	RunWorker bool `yaml:"run_worker"`
}

type QueueConfig struct {
	Backend      string            `yaml:"backend"`
	Concurrency  int               `yaml:"concurrency"`
	PollInterval time.Duration     `yaml:"poll_interval"`
	Retry        queue.RetryPolicy `yaml:"retry"`
}

type GradesConfig struct {
	BaseURL       string        `yaml:"base_url"`
	ServiceSecret string        `yaml:"service_secret"`
	Audience      string        `yaml:"audience"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type MetricsConfig struct {
	Enabled        bool          `yaml:"enabled"`
	ScrapeInterval time.Duration `yaml:"scrape_interval"`
}

func DefaultConfig() Config {
	return Config{
		LogMode: "development",
		Database: db.Config{
			Driver:          db.DriverPostgres,
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			Name:            "edxapp",
			SSLMode:         "disable",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			SlowThreshold:   time.Second,
		},
		Redis: bus.RedisConfig{Channel: "gradebook.events"},
		Queue: QueueConfig{
			Backend:      queue.BackendDB,
			Concurrency:  4,
			PollInterval: time.Second,
			Retry:        queue.DefaultRetryPolicy(),
		},
		Temporal: temporalx.DefaultConfig(),
		Grades: GradesConfig{
			Timeout:    30 * time.Second,
			MaxRetries: 2,
		},
		HTTP: HTTPConfig{
			Addr:            ":8090",
			ShutdownTimeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:        true,
			ScrapeInterval: 10 * time.Second,
		},
		Otel: observability.OtelConfig{
			ServiceName: "gradebook",
			SampleRatio: 1,
		},
		Gradebook: gradebook.DefaultConfig(),
		RunServer: true,
		RunWorker: true,
	}
}

// LoadConfig builds the process config: defaults, then the YAML file named by
// GRADEBOOK_CONFIG_PATH (if any), then environment overrides.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if path := strings.TrimSpace(os.Getenv(ConfigPathEnv)); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) ApplyEnv() {
	c.LogMode = envutil.String("LOG_MODE", c.LogMode)

	c.Database.Driver = envutil.String("DB_DRIVER", c.Database.Driver)
	c.Database.SQLitePath = envutil.String("SQLITE_PATH", c.Database.SQLitePath)
	c.Database.Host = envutil.String("POSTGRES_HOST", c.Database.Host)
	c.Database.Port = envutil.String("POSTGRES_PORT", c.Database.Port)
	c.Database.User = envutil.String("POSTGRES_USER", c.Database.User)
	c.Database.Password = envutil.String("POSTGRES_PASSWORD", c.Database.Password)
	c.Database.Name = envutil.String("POSTGRES_NAME", c.Database.Name)
	c.Database.SSLMode = envutil.String("POSTGRES_SSLMODE", c.Database.SSLMode)
	c.Database.MaxOpenConns = envutil.Int("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = envutil.Int("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.MigratePlatformTables = envutil.Bool("DB_MIGRATE_PLATFORM_TABLES", c.Database.MigratePlatformTables)

	c.Redis.Addr = envutil.String("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = envutil.String("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = envutil.Int("REDIS_DB", c.Redis.DB)
	c.Redis.Channel = envutil.String("REDIS_CHANNEL", c.Redis.Channel)

	c.Queue.Backend = strings.ToLower(envutil.String("QUEUE_BACKEND", c.Queue.Backend))
	c.Queue.Concurrency = envutil.Int("WORKER_CONCURRENCY", c.Queue.Concurrency)
	c.Queue.PollInterval = envutil.Millis("WORKER_POLL_INTERVAL_MS", c.Queue.PollInterval)
	c.Queue.Retry.MaxAttempts = envutil.Int("TASK_MAX_ATTEMPTS", c.Queue.Retry.MaxAttempts)
	c.Queue.Retry.RetryDelay = envutil.Seconds("TASK_RETRY_DELAY_SECONDS", c.Queue.Retry.RetryDelay)
	c.Queue.Retry.MaxDelay = envutil.Seconds("TASK_MAX_DELAY_SECONDS", c.Queue.Retry.MaxDelay)
	c.Queue.Retry.StaleRunning = envutil.Seconds("TASK_STALE_RUNNING_SECONDS", c.Queue.Retry.StaleRunning)

	c.Temporal.ApplyEnv()

	c.Grades.BaseURL = envutil.String("GRADES_BASE_URL", c.Grades.BaseURL)
	c.Grades.ServiceSecret = envutil.String("GRADES_SERVICE_SECRET", c.Grades.ServiceSecret)
	c.Grades.Audience = envutil.String("GRADES_AUDIENCE", c.Grades.Audience)
	c.Grades.Timeout = envutil.Seconds("GRADES_TIMEOUT_SECONDS", c.Grades.Timeout)
	c.Grades.MaxRetries = envutil.Int("GRADES_MAX_RETRIES", c.Grades.MaxRetries)

	c.HTTP.Addr = envutil.String("HTTP_ADDR", c.HTTP.Addr)
	c.HTTP.ShutdownTimeout = envutil.Seconds("HTTP_SHUTDOWN_TIMEOUT_SECONDS", c.HTTP.ShutdownTimeout)

	c.Metrics.Enabled = envutil.Bool("METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.ScrapeInterval = envutil.Seconds("METRICS_SCRAPE_INTERVAL_SECONDS", c.Metrics.ScrapeInterval)

	c.Otel.Enabled = envutil.Bool("OTEL_ENABLED", c.Otel.Enabled)
	c.Otel.ServiceName = envutil.String("OTEL_SERVICE_NAME", c.Otel.ServiceName)
	c.Otel.Environment = envutil.String("OTEL_ENVIRONMENT", c.Otel.Environment)
	c.Otel.Version = envutil.String("OTEL_SERVICE_VERSION", c.Otel.Version)
	c.Otel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", c.Otel.Endpoint)
	c.Otel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", c.Otel.Insecure)
	c.Otel.SampleRatio = envutil.Float("OTEL_SAMPLE_RATIO", c.Otel.SampleRatio)
	if raw := envutil.String("OTEL_EXPORTER_OTLP_HEADERS", ""); raw != "" {
		c.Otel.Headers = observability.ParseHeaders(raw)
	}

	c.Gradebook.ApplyEnv()

	c.RunServer = envutil.Bool("RUN_SERVER", c.RunServer)
	c.RunWorker = envutil.Bool("RUN_WORKER", c.RunWorker)
}

func (c Config) Validate() error {
	var errs []error
	if err := queue.ValidateBackend(c.Queue.Backend); err != nil {
		errs = append(errs, err)
	}
	if c.Queue.Backend == queue.BackendTemporal && !c.Temporal.Enabled() {
		errs = append(errs, errors.New("temporal queue backend requires TEMPORAL_ADDRESS"))
	}
	if c.Gradebook.Enabled {
		if strings.TrimSpace(c.Grades.BaseURL) == "" {
			errs = append(errs, errors.New("GRADES_BASE_URL is required when the gradebook is enabled"))
		}
		if strings.TrimSpace(c.Grades.ServiceSecret) == "" {
			errs = append(errs, errors.New("GRADES_SERVICE_SECRET is required when the gradebook is enabled"))
		}
	}
	if c.RunServer && strings.TrimSpace(c.HTTP.Addr) == "" {
		errs = append(errs, errors.New("http addr is required to run the ops server"))
	}
	return errors.Join(errs...)
}
