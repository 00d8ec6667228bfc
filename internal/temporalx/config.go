package temporalx

import (
	"strings"
	"time"

	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/envutil"
)

type Config struct {
	Address   string `yaml:"address"`
	Namespace string `yaml:"namespace"`
	TaskQueue string `yaml:"task_queue"`

	ClientCertPath string `yaml:"client_cert_path"`
	ClientKeyPath  string `yaml:"client_key_path"`
	ClientCAPath   string `yaml:"client_ca_path"`

	// Local/self-hosted convenience; Temporal Cloud namespaces are pre-created.
	AutoRegisterNamespace bool `yaml:"auto_register_namespace"`
	RetentionDays         int  `yaml:"retention_days"`

	DialTimeout        time.Duration `yaml:"dial_timeout"`
	DialMaxWait        time.Duration `yaml:"dial_max_wait"`
	Backoff            time.Duration `yaml:"backoff"`
	BackoffMax         time.Duration `yaml:"backoff_max"`
	NamespaceTimeout   time.Duration `yaml:"namespace_timeout"`
	WorkerStartMaxWait time.Duration `yaml:"worker_start_max_wait"`
}

func DefaultConfig() Config {
	return Config{
		Namespace:          "gradebook",
		TaskQueue:          "gradebook",
		RetentionDays:      7,
		DialTimeout:        5 * time.Second,
		DialMaxWait:        60 * time.Second,
		Backoff:            250 * time.Millisecond,
		BackoffMax:         5 * time.Second,
		NamespaceTimeout:   10 * time.Second,
		WorkerStartMaxWait: 60 * time.Second,
	}
}

// ApplyEnv overrides fields from TEMPORAL_* variables.
func (c *Config) ApplyEnv() {
	c.Address = envutil.String("TEMPORAL_ADDRESS", c.Address)
	c.Namespace = envutil.String("TEMPORAL_NAMESPACE", c.Namespace)
	c.TaskQueue = envutil.String("TEMPORAL_TASK_QUEUE", c.TaskQueue)
	c.ClientCertPath = envutil.String("TEMPORAL_CLIENT_CERT_PATH", c.ClientCertPath)
	c.ClientKeyPath = envutil.String("TEMPORAL_CLIENT_KEY_PATH", c.ClientKeyPath)
	c.ClientCAPath = envutil.String("TEMPORAL_CLIENT_CA_PATH", c.ClientCAPath)
	c.AutoRegisterNamespace = envutil.Bool("TEMPORAL_AUTO_REGISTER_NAMESPACE", c.AutoRegisterNamespace)
	c.RetentionDays = envutil.Int("TEMPORAL_NAMESPACE_RETENTION_DAYS", c.RetentionDays)
	c.DialTimeout = envutil.Seconds("TEMPORAL_DIAL_TIMEOUT_SECONDS", c.DialTimeout)
	c.DialMaxWait = envutil.Seconds("TEMPORAL_DIAL_MAX_WAIT_SECONDS", c.DialMaxWait)
	c.Backoff = envutil.Millis("TEMPORAL_DIAL_BACKOFF_MS", c.Backoff)
	c.BackoffMax = envutil.Millis("TEMPORAL_DIAL_BACKOFF_MAX_MS", c.BackoffMax)
	c.NamespaceTimeout = envutil.Seconds("TEMPORAL_NAMESPACE_ENSURE_TIMEOUT_SECONDS", c.NamespaceTimeout)
	c.WorkerStartMaxWait = envutil.Seconds("TEMPORAL_WORKER_START_MAX_WAIT_SECONDS", c.WorkerStartMaxWait)
}

func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Address) != ""
}

func (c Config) retentionDays() int {
	switch {
	case c.RetentionDays < 1:
		return 7
	case c.RetentionDays > 365:
		return 365
	default:
		return c.RetentionDays
	}
}
