package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Platform PlatformConfig `json:"platform"`
	NATS     NATSConfig     `json:"nats"`
	HTTP     HTTPConfig     `json:"http"`
	Metrics  MetricsConfig  `json:"metrics"`
	LVM      LVMConfig      `json:"lvm"`
}

// PlatformConfig defines platform identity
type PlatformConfig struct {
	Org         string `json:"org"`                   // Organization namespace (e.g., "c360")
	ID          string `json:"id"`                    // Instance identifier (e.g., "storage-node-1")
	Environment string `json:"environment,omitempty"` // "prod", "dev", "test"
}

// NATSConfig defines NATS connection settings. An empty URL list disables
// the NATS command service entirely.
type NATSConfig struct {
	URLs          []string      `json:"urls,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`
	Subject       string        `json:"subject,omitempty"` // request/reply subject for commands
	Queue         string        `json:"queue,omitempty"`   // queue group name
}

// HTTPConfig defines the HTTP API settings
type HTTPConfig struct {
	Enabled        bool     `json:"enabled"`
	Addr           string   `json:"addr,omitempty"`
	EnableCORS     bool     `json:"enable_cors,omitempty"`
	CORSOrigins    []string `json:"cors_origins,omitempty"`
	MaxRequestSize int64    `json:"max_request_size,omitempty"`
}

// MetricsConfig defines the Prometheus metrics server settings
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port,omitempty"`
	Path    string `json:"path,omitempty"`
}

// LVMConfig defines command gateway settings
type LVMConfig struct {
	// ReportFlags overrides the report-format suffix appended to every
	// command. Leave empty for the default JSON report format.
	ReportFlags string `json:"report_flags,omitempty"`
	// AllowedCommands restricts which command verbs the daemon surfaces
	// accept. Empty means no restriction.
	AllowedCommands []string `json:"allowed_commands,omitempty"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Platform: PlatformConfig{
			Org:         "c360",
			ID:          "lvmgate",
			Environment: "dev",
		},
		NATS: NATSConfig{
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			Subject:       "lvm.command.run",
			Queue:         "lvmgate",
		},
		HTTP: HTTPConfig{
			Enabled:        true,
			Addr:           ":8080",
			MaxRequestSize: 1 << 20,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// Load reads configuration from a JSON file, applies environment
// overrides and validates the result. A missing path yields defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides lets the environment override connection settings
// without touching the config file. Useful for credentials.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LVMGATE_NATS_URLS"); v != "" {
		c.NATS.URLs = strings.Split(v, ",")
	}
	if v := os.Getenv("LVMGATE_NATS_USERNAME"); v != "" {
		c.NATS.Username = v
	}
	if v := os.Getenv("LVMGATE_NATS_PASSWORD"); v != "" {
		c.NATS.Password = v
	}
	if v := os.Getenv("LVMGATE_NATS_TOKEN"); v != "" {
		c.NATS.Token = v
	}
	if v := os.Getenv("LVMGATE_HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.Platform.ID == "" {
		return fmt.Errorf("platform.id is required")
	}

	for _, u := range c.NATS.URLs {
		if !strings.HasPrefix(u, "nats://") && !strings.HasPrefix(u, "tls://") {
			return fmt.Errorf("invalid NATS URL %q: must start with nats:// or tls://", u)
		}
	}
	if len(c.NATS.URLs) > 0 && c.NATS.Subject == "" {
		return fmt.Errorf("nats.subject is required when NATS is configured")
	}

	if c.HTTP.Enabled && c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required when the HTTP API is enabled")
	}
	if c.HTTP.MaxRequestSize < 0 {
		return fmt.Errorf("http.max_request_size must not be negative")
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be in (0, 65535], got %d", c.Metrics.Port)
	}

	for _, verb := range c.LVM.AllowedCommands {
		if strings.TrimSpace(verb) == "" {
			return fmt.Errorf("lvm.allowed_commands must not contain empty entries")
		}
		if strings.ContainsAny(verb, " \t") {
			return fmt.Errorf("lvm.allowed_commands entry %q must be a single verb", verb)
		}
	}

	return nil
}

// CommandAllowed reports whether a command verb passes the allowlist.
func (c *Config) CommandAllowed(verb string) bool {
	if len(c.LVM.AllowedCommands) == 0 {
		return true
	}
	for _, allowed := range c.LVM.AllowedCommands {
		if verb == allowed {
			return true
		}
	}
	return false
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}

	return &clone
}

// SafeConfig provides thread-safe access to configuration
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = &Config{}
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically updates the configuration after validation
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}
