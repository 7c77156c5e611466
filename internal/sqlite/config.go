// File path: internal/sqlite/config.go
package sqlite

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultJournalMode = "WAL"
	defaultSynchronous = "NORMAL"
)

var (
	journalModes = map[string]bool{"WAL": true, "DELETE": true, "TRUNCATE": true, "PERSIST": true, "MEMORY": true}
	syncModes    = map[string]bool{"OFF": true, "NORMAL": true, "FULL": true, "EXTRA": true}
)

// Config describes the catalog database file and how it is opened.
//
// The config file named by DECISIONMATE_SQLITE_CONFIG_FILE is YAML:
//
//	path: data/decisionmate.db
//	journal_mode: wal
//	synchronous: normal
//	busy_timeout: 5s
//	max_open_conns: 4
type Config struct {
	Path         string        `yaml:"path"`
	JournalMode  string        `yaml:"journal_mode"`
	Synchronous  string        `yaml:"synchronous"`
	BusyTimeout  time.Duration `yaml:"busy_timeout"`
	MaxOpenConns int           `yaml:"max_open_conns"`
}

// DefaultConfig points at data/decisionmate.db in WAL mode.
func DefaultConfig() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads the optional YAML file, then the DECISIONMATE_SQLITE_*
// variables, which win.
func LoadConfig() (Config, error) {
	cfg := Config{}
	if path := strings.TrimSpace(os.Getenv("DECISIONMATE_SQLITE_CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, fmt.Errorf("read sqlite config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse sqlite config %s: %w", path, err)
		}
	}
	if err := cfg.overlayEnv(); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) overlayEnv() error {
	for name, dst := range map[string]*string{
		"DECISIONMATE_SQLITE_PATH":         &c.Path,
		"DECISIONMATE_SQLITE_JOURNAL_MODE": &c.JournalMode,
		"DECISIONMATE_SQLITE_SYNCHRONOUS":  &c.Synchronous,
	} {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			*dst = value
		}
	}
	if value := strings.TrimSpace(os.Getenv("DECISIONMATE_SQLITE_BUSY_TIMEOUT")); value != "" {
		busy, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("parse DECISIONMATE_SQLITE_BUSY_TIMEOUT: %w", err)
		}
		c.BusyTimeout = busy
	}
	if value := strings.TrimSpace(os.Getenv("DECISIONMATE_SQLITE_MAX_OPEN_CONNS")); value != "" {
		conns, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("parse DECISIONMATE_SQLITE_MAX_OPEN_CONNS: %w", err)
		}
		c.MaxOpenConns = conns
	}
	return nil
}

func (c *Config) applyDefaults() {
	c.Path = strings.TrimSpace(c.Path)
	if c.Path == "" {
		c.Path = filepath.Join("data", "decisionmate.db")
	}
	c.JournalMode = strings.ToUpper(strings.TrimSpace(c.JournalMode))
	if c.JournalMode == "" {
		c.JournalMode = defaultJournalMode
	}
	c.Synchronous = strings.ToUpper(strings.TrimSpace(c.Synchronous))
	if c.Synchronous == "" {
		c.Synchronous = defaultSynchronous
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = 5 * time.Second
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 4
	}
}

func (c Config) validate() error {
	var errs []error
	if !journalModes[c.JournalMode] {
		errs = append(errs, fmt.Errorf("sqlite journal mode %q not supported", c.JournalMode))
	}
	if !syncModes[c.Synchronous] {
		errs = append(errs, fmt.Errorf("sqlite synchronous mode %q not supported", c.Synchronous))
	}
	if c.BusyTimeout < time.Millisecond {
		errs = append(errs, fmt.Errorf("sqlite busy timeout %s below 1ms", c.BusyTimeout))
	}
	return errors.Join(errs...)
}

// dsn builds the modernc connection string. Pragmas in the DSN run on every
// pooled connection; busy_timeout comes first so the journal switch waits on
// a locked file instead of failing.
func (c Config) dsn(absPath string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(%s)&_pragma=synchronous(%s)&_pragma=foreign_keys(1)",
		absPath, c.BusyTimeout.Milliseconds(), c.JournalMode, c.Synchronous)
}
