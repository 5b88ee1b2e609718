package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	WS struct {
		OriginPatterns []string `yaml:"origin_patterns"`
		OutboxSize     int      `yaml:"outbox_size"`
	} `yaml:"ws"`

	Audit struct {
		Path    string `yaml:"path"`
		Enabled bool   `yaml:"enabled"`
	} `yaml:"audit"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

func Default() *Config {
	cfg := &Config{}
	cfg.Server.Addr = ":8080"
	cfg.WS.OutboxSize = 16
	cfg.Audit.Path = "auction-audit.db"
	cfg.Audit.Enabled = true
	cfg.Logging.Level = "info"
	return cfg
}

// Load reads the YAML config at path, then applies environment overrides.
// An empty path yields the defaults (still env-overridable).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("AUCTION_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("AUCTION_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AUCTION_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	if v := os.Getenv("AUCTION_AUDIT_PATH"); v != "" {
		cfg.Audit.Path = v
	}
	if v := os.Getenv("AUCTION_OUTBOX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WS.OutboxSize = n
		}
	}
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.WS.OutboxSize <= 0 {
		return fmt.Errorf("ws.outbox_size must be positive, got %d", c.WS.OutboxSize)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	if c.Audit.Enabled && c.Audit.Path == "" {
		return fmt.Errorf("audit.path is required when audit is enabled")
	}
	return nil
}
