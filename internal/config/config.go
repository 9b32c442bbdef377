// Package config loads server configuration from an optional YAML file
// with APPFORGE_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults. The webhook URL has no default and must be configured.
const (
	DefaultListenAddr        = ":8088"
	DefaultGenerateTimeout   = 90 * time.Second
	DefaultRunTimeout        = 10 * time.Second
	DefaultSessionTTL        = 30 * time.Minute
	DefaultMaxPromptBytes    = 16 * 1024
	DefaultMaxCodeBytes      = 256 * 1024
	DefaultRequestsPerMinute = 500
)

// Config holds everything the server needs at startup.
type Config struct {
	ListenAddr        string
	WebhookURL        string
	GenerateTimeout   time.Duration
	RunTimeout        time.Duration
	SessionTTL        time.Duration
	MaxPromptBytes    int
	MaxCodeBytes      int
	RequestsPerMinute int
	Debug             bool
}

// fileConfig is the YAML shape; durations are strings like "90s".
type fileConfig struct {
	ListenAddr        string `yaml:"listen_addr"`
	WebhookURL        string `yaml:"webhook_url"`
	GenerateTimeout   string `yaml:"generate_timeout"`
	RunTimeout        string `yaml:"run_timeout"`
	SessionTTL        string `yaml:"session_ttl"`
	MaxPromptBytes    int    `yaml:"max_prompt_bytes"`
	MaxCodeBytes      int    `yaml:"max_code_bytes"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	Debug             bool   `yaml:"debug"`
}

// Load builds the config from defaults, then the YAML file at path (if
// path is non-empty), then environment variables. It fails if the
// webhook URL ends up unset.
func Load(path string) (*Config, error) {
	cfg := &Config{
		ListenAddr:        DefaultListenAddr,
		GenerateTimeout:   DefaultGenerateTimeout,
		RunTimeout:        DefaultRunTimeout,
		SessionTTL:        DefaultSessionTTL,
		MaxPromptBytes:    DefaultMaxPromptBytes,
		MaxCodeBytes:      DefaultMaxCodeBytes,
		RequestsPerMinute: DefaultRequestsPerMinute,
	}

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("webhook URL is not configured (set webhook_url or APPFORGE_WEBHOOK_URL)")
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if fc.ListenAddr != "" {
		c.ListenAddr = fc.ListenAddr
	}
	if fc.WebhookURL != "" {
		c.WebhookURL = fc.WebhookURL
	}
	if fc.MaxPromptBytes > 0 {
		c.MaxPromptBytes = fc.MaxPromptBytes
	}
	if fc.MaxCodeBytes > 0 {
		c.MaxCodeBytes = fc.MaxCodeBytes
	}
	if fc.RequestsPerMinute > 0 {
		c.RequestsPerMinute = fc.RequestsPerMinute
	}
	c.Debug = c.Debug || fc.Debug

	for _, d := range []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{fc.GenerateTimeout, "generate_timeout", &c.GenerateTimeout},
		{fc.RunTimeout, "run_timeout", &c.RunTimeout},
		{fc.SessionTTL, "session_ttl", &c.SessionTTL},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse config %s: %s: %w", path, d.name, err)
		}
		*d.dst = v
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("APPFORGE_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("APPFORGE_WEBHOOK_URL"); v != "" {
		c.WebhookURL = v
	}
	if v := os.Getenv("APPFORGE_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("APPFORGE_DEBUG: %w", err)
		}
		c.Debug = b
	}

	for _, d := range []struct {
		env string
		dst *time.Duration
	}{
		{"APPFORGE_GENERATE_TIMEOUT", &c.GenerateTimeout},
		{"APPFORGE_RUN_TIMEOUT", &c.RunTimeout},
		{"APPFORGE_SESSION_TTL", &c.SessionTTL},
	} {
		raw := os.Getenv(d.env)
		if raw == "" {
			continue
		}
		v, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.env, err)
		}
		*d.dst = v
	}

	for _, n := range []struct {
		env string
		dst *int
	}{
		{"APPFORGE_MAX_PROMPT_BYTES", &c.MaxPromptBytes},
		{"APPFORGE_MAX_CODE_BYTES", &c.MaxCodeBytes},
		{"APPFORGE_REQUESTS_PER_MINUTE", &c.RequestsPerMinute},
	} {
		raw := os.Getenv(n.env)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", n.env, err)
		}
		*n.dst = v
	}
	return nil
}
