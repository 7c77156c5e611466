// File path: internal/docstore/config.go
package docstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Policy  Policy `json:"policy"`
	DataDir string `json:"data_dir"`

	RemoteURL    string `json:"remote_url"`
	RemoteAPIKey string `json:"remote_api_key"`

	RemoteTimeout       time.Duration `json:"-"`
	RemoteTimeoutString string        `json:"remote_timeout"`

	HTTPMaxIdleConns       int           `json:"http_max_idle_conns"`
	HTTPMaxIdlePerHost     int           `json:"http_max_idle_per_host"`
	HTTPIdleConnTimeout    time.Duration `json:"-"`
	HTTPIdleConnTimeoutStr string        `json:"http_idle_conn_timeout"`
}

// DefaultConfig keeps documents as local JSON files under data/documents.
func DefaultConfig() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

func (c Config) Merge(override Config) Config {
	result := c
	if strings.TrimSpace(string(override.Policy)) != "" {
		result.Policy = override.Policy
	}
	if strings.TrimSpace(override.DataDir) != "" {
		result.DataDir = strings.TrimSpace(override.DataDir)
	}
	if strings.TrimSpace(override.RemoteURL) != "" {
		result.RemoteURL = strings.TrimSpace(override.RemoteURL)
	}
	if strings.TrimSpace(override.RemoteAPIKey) != "" {
		result.RemoteAPIKey = override.RemoteAPIKey
	}
	if override.RemoteTimeout > 0 {
		result.RemoteTimeout = override.RemoteTimeout
	}
	if strings.TrimSpace(override.RemoteTimeoutString) != "" {
		result.RemoteTimeoutString = strings.TrimSpace(override.RemoteTimeoutString)
	}
	if override.HTTPMaxIdleConns > 0 {
		result.HTTPMaxIdleConns = override.HTTPMaxIdleConns
	}
	if override.HTTPMaxIdlePerHost > 0 {
		result.HTTPMaxIdlePerHost = override.HTTPMaxIdlePerHost
	}
	if override.HTTPIdleConnTimeout > 0 {
		result.HTTPIdleConnTimeout = override.HTTPIdleConnTimeout
	}
	if strings.TrimSpace(override.HTTPIdleConnTimeoutStr) != "" {
		result.HTTPIdleConnTimeoutStr = strings.TrimSpace(override.HTTPIdleConnTimeoutStr)
	}
	return result
}

// LoadConfig reads DECISIONMATE_DOCSTORE_CONFIG_FILE (JSON) when set, then
// overlays the DECISIONMATE_* environment variables.
func LoadConfig() (Config, error) {
	cfg := Config{}
	if path := strings.TrimSpace(os.Getenv("DECISIONMATE_DOCSTORE_CONFIG_FILE")); path != "" {
		fileCfg, err := loadConfigFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = cfg.Merge(fileCfg)
	}
	envCfg, err := loadConfigEnv()
	if err != nil {
		return Config{}, err
	}
	cfg = cfg.Merge(envCfg)
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(string(c.Policy)) == "" {
		if strings.TrimSpace(c.RemoteURL) != "" {
			c.Policy = PolicyRemoteFallback
		} else {
			c.Policy = PolicyLocal
		}
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = filepath.Join("data", "documents")
	}
	if c.RemoteTimeout <= 0 {
		if c.RemoteTimeoutString != "" {
			if parsed, err := time.ParseDuration(c.RemoteTimeoutString); err == nil {
				c.RemoteTimeout = parsed
			}
		}
		if c.RemoteTimeout <= 0 {
			c.RemoteTimeout = 10 * time.Second
		}
	}
	if c.HTTPMaxIdleConns <= 0 {
		c.HTTPMaxIdleConns = 32
	}
	if c.HTTPMaxIdlePerHost <= 0 {
		c.HTTPMaxIdlePerHost = 8
	}
	if c.HTTPIdleConnTimeout <= 0 {
		if c.HTTPIdleConnTimeoutStr != "" {
			if parsed, err := time.ParseDuration(c.HTTPIdleConnTimeoutStr); err == nil {
				c.HTTPIdleConnTimeout = parsed
			}
		}
		if c.HTTPIdleConnTimeout <= 0 {
			c.HTTPIdleConnTimeout = 90 * time.Second
		}
	}
}

func (c Config) validate() error {
	if _, err := ParsePolicy(string(c.Policy)); err != nil {
		return err
	}
	if c.Policy != PolicyMemory && strings.TrimSpace(c.DataDir) == "" && c.Policy != PolicyRemote {
		return fmt.Errorf("data dir required for policy %s", c.Policy)
	}
	if c.RemoteTimeout <= 0 {
		return fmt.Errorf("remote timeout must be positive")
	}
	return nil
}

func loadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read docstore config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse docstore config: %w", err)
	}
	if cfg.Policy != "" {
		policy, err := ParsePolicy(string(cfg.Policy))
		if err != nil {
			return Config{}, err
		}
		cfg.Policy = policy
	}
	return cfg, nil
}

func loadConfigEnv() (Config, error) {
	cfg := Config{}
	if value := strings.TrimSpace(os.Getenv("DECISIONMATE_STORE_POLICY")); value != "" {
		policy, err := ParsePolicy(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse DECISIONMATE_STORE_POLICY: %w", err)
		}
		cfg.Policy = policy
	}
	if value := strings.TrimSpace(os.Getenv("DECISIONMATE_DATA_DIR")); value != "" {
		cfg.DataDir = value
	}
	if value := strings.TrimSpace(os.Getenv("DECISIONMATE_REMOTE_URL")); value != "" {
		cfg.RemoteURL = value
	}
	if value := strings.TrimSpace(os.Getenv("DECISIONMATE_REMOTE_API_KEY")); value != "" {
		cfg.RemoteAPIKey = value
	}
	if value := strings.TrimSpace(os.Getenv("DECISIONMATE_REMOTE_TIMEOUT")); value != "" {
		cfg.RemoteTimeoutString = value
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse DECISIONMATE_REMOTE_TIMEOUT: %w", err)
		}
		cfg.RemoteTimeout = parsed
	}
	if value := strings.TrimSpace(os.Getenv("DECISIONMATE_REMOTE_MAX_IDLE_CONNS")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse DECISIONMATE_REMOTE_MAX_IDLE_CONNS: %w", err)
		}
		if parsed > 0 {
			cfg.HTTPMaxIdleConns = parsed
		}
	}
	return cfg, nil
}
