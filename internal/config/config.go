// Package config handles loading and validating Remora configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	goutils "github.com/jkaninda/go-utils"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()
}

// Config is the root configuration for the agent process.
type Config struct {
	AgentID  string          `json:"agent_id,omitempty" yaml:"agent_id,omitempty"` // Unique instance ID. Default: hostname-pid.
	Projects []ProjectConfig `json:"projects" yaml:"projects"`

	PollIntervalSeconds      int `json:"poll_interval_seconds" yaml:"poll_interval_seconds"`           // Default: 5.
	HeartbeatIntervalSeconds int `json:"heartbeat_interval_seconds" yaml:"heartbeat_interval_seconds"` // Default: 30.

	Limits        *LimitsConfig        `json:"limits,omitempty" yaml:"limits,omitempty"`               // nil = built-in defaults
	Journal       *JournalConfig       `json:"journal,omitempty" yaml:"journal,omitempty"`             // nil = journaling disabled
	Observability *ObservabilityConfig `json:"observability,omitempty" yaml:"observability,omitempty"` // nil = observability disabled
}

// ProjectConfig is one control-plane registration: endpoint plus credential.
type ProjectConfig struct {
	ProjectCode string `json:"project_code" yaml:"project_code"`
	Token       string `json:"token" yaml:"token"`
	APIURL      string `json:"api_url" yaml:"api_url"`
}

// LimitsConfig bounds command execution. Zero values fall back to defaults.
type LimitsConfig struct {
	MaxOutputBytes          int   `json:"max_output_bytes" yaml:"max_output_bytes"`                     // Default: 1 MiB.
	MaxFileSizeBytes        int64 `json:"max_file_size_bytes" yaml:"max_file_size_bytes"`               // Default: 10 MiB.
	MaxDirEntries           int   `json:"max_dir_entries" yaml:"max_dir_entries"`                       // Default: 500.
	MaxCommandTimeoutMS     int   `json:"max_command_timeout_ms" yaml:"max_command_timeout_ms"`         // Default: 300000.
	DefaultCommandTimeoutMS int   `json:"default_command_timeout_ms" yaml:"default_command_timeout_ms"` // Default: 30000.
}

// JournalConfig configures the local SQLite execution journal.
type JournalConfig struct {
	Path          string `json:"path" yaml:"path"`                       // Database file path. Default: ~/.remora/journal.db.
	PruneSchedule string `json:"prune_schedule" yaml:"prune_schedule"`   // Cron spec. Default: "0 3 * * *".
	RetentionDays int    `json:"retention_days" yaml:"retention_days"`   // Default: 14.
	JournalMode   string `json:"journal_mode" yaml:"journal_mode"`       // "wal" (default), "delete", etc.
}

// ObservabilityConfig configures metrics, tracing, and the local status API.
// When nil, all observability features are disabled with zero overhead.
type ObservabilityConfig struct {
	Metrics *MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing *TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
	Status  *StatusConfig  `json:"status,omitempty" yaml:"status,omitempty"`
}

// MetricsConfig configures Prometheus metrics collection.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"` // Default: "/metrics"
}

// TracingConfig configures OpenTelemetry distributed tracing.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`         // OTLP endpoint, e.g. "localhost:4317"
	Protocol    string  `json:"protocol" yaml:"protocol"`         // "grpc" or "http". Default: "grpc"
	ServiceName string  `json:"service_name" yaml:"service_name"` // Default: "remora"
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`   // 0.0–1.0. Default: 1.0
	Insecure    bool    `json:"insecure" yaml:"insecure"`         // Skip TLS for dev
}

// StatusConfig configures the local status/debug HTTP server.
type StatusConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"` // Default: "127.0.0.1:7600"
}

// DefaultConfigPath returns ~/.remora/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".remora", "config.yaml")
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays environment variables onto the loaded file.
// A single-project setup can run without a config file token on disk.
func (c *Config) applyEnv() {
	if len(c.Projects) == 1 {
		p := &c.Projects[0]
		p.Token = goutils.Env("REMORA_TOKEN", p.Token)
		p.APIURL = goutils.Env("REMORA_API_URL", p.APIURL)
	}
	c.AgentID = goutils.Env("REMORA_AGENT_ID", c.AgentID)
}

func (c *Config) applyDefaults() {
	if c.AgentID == "" {
		hostname, _ := os.Hostname()
		c.AgentID = fmt.Sprintf("%s-%d", hostname, os.Getpid())
	}
	if c.PollIntervalSeconds <= 0 {
		c.PollIntervalSeconds = 5
	}
	if c.HeartbeatIntervalSeconds <= 0 {
		c.HeartbeatIntervalSeconds = 30
	}
	if c.Journal != nil {
		if c.Journal.Path == "" {
			home, _ := os.UserHomeDir()
			c.Journal.Path = filepath.Join(home, ".remora", "journal.db")
		}
		if c.Journal.PruneSchedule == "" {
			c.Journal.PruneSchedule = "0 3 * * *"
		}
		if c.Journal.RetentionDays <= 0 {
			c.Journal.RetentionDays = 14
		}
	}
	if c.Observability != nil && c.Observability.Status != nil {
		if c.Observability.Status.ListenAddr == "" {
			c.Observability.Status.ListenAddr = "127.0.0.1:7600"
		}
	}
}

// Validate checks the configuration for fatal mistakes.
func (c *Config) Validate() error {
	if len(c.Projects) == 0 {
		return fmt.Errorf("config: at least one project is required")
	}
	seen := make(map[string]bool, len(c.Projects))
	for i, p := range c.Projects {
		if p.ProjectCode == "" {
			return fmt.Errorf("config: projects[%d]: project_code is required", i)
		}
		if p.Token == "" {
			return fmt.Errorf("config: project %s: token is required", p.ProjectCode)
		}
		if p.APIURL == "" {
			return fmt.Errorf("config: project %s: api_url is required", p.ProjectCode)
		}
		if seen[p.ProjectCode] {
			return fmt.Errorf("config: duplicate project_code %s", p.ProjectCode)
		}
		seen[p.ProjectCode] = true
	}
	return nil
}

// PollInterval returns the poll ticker interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// HeartbeatInterval returns the heartbeat ticker interval.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSeconds) * time.Second
}
