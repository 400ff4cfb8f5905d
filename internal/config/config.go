package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// Carrier bounds how many tRNA carriers are on stage and how long their
// animations may take before being forced forward.
type Carrier struct {
	Capacity       int  `toml:"capacity"`
	EnterTimeoutMS int  `toml:"enter_timeout_ms"`
	ExitTimeoutMS  int  `toml:"exit_timeout_ms"`
	OverlapEntries bool `toml:"overlap_entries"`
}

// Workflow contains driver timing and buffering.
type Workflow struct {
	TickIntervalMS   int `toml:"tick_interval_ms"`
	EventBuffer      int `toml:"event_buffer"`
	TransitTimeoutMS int `toml:"transit_timeout_ms"`
}

// Catalog selects the protein templates offered to students.
type Catalog struct {
	Path           string `toml:"path"`
	DefaultProtein string `toml:"default_protein"`
}

// Bridge configures the WebSocket link to the headset application.
type Bridge struct {
	Advertise    bool     `toml:"advertise"`
	ServiceName  string   `toml:"service_name"`
	ClientBuffer int      `toml:"client_buffer"`
	Origins      []string `toml:"origins"`
}

// History controls the session journal.
type History struct {
	Enabled       bool `toml:"enabled"`
	Buffer        int  `toml:"buffer"`
	RetentionDays int  `toml:"retention_days"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	Journal       bool   `toml:"journal"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for ribosim.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and API bind address
//   - Carrier: on-stage capacity and animation timeouts
//   - Workflow: driver tick, event buffer and transit timeout
//   - Catalog: protein template source and default selection
//   - Bridge: headset WebSocket link and mDNS advertisement
//   - History: session journal
//   - Logging: log format, level, journal and retention
type Config struct {
	Paths    Paths    `toml:"paths"`
	Carrier  Carrier  `toml:"carrier"`
	Workflow Workflow `toml:"workflow"`
	Catalog  Catalog  `toml:"catalog"`
	Bridge   Bridge   `toml:"bridge"`
	History  History  `toml:"history"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("ribosim.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryPath is the SQLite session journal location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.DataDir, "history.db")
}

// LockPath is the single-instance daemon lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "ribosim.lock")
}

// EnterTimeout is the longest a carrier may stay Entering.
func (c Carrier) EnterTimeout() time.Duration {
	return time.Duration(c.EnterTimeoutMS) * time.Millisecond
}

// ExitTimeout is the longest a carrier may stay Exiting.
func (c Carrier) ExitTimeout() time.Duration {
	return time.Duration(c.ExitTimeoutMS) * time.Millisecond
}

// TickInterval is the period between driver pumps.
func (w Workflow) TickInterval() time.Duration {
	return time.Duration(w.TickIntervalMS) * time.Millisecond
}

// TransitTimeout is the longest the strand may spend travelling to the ribosome.
func (w Workflow) TransitTimeout() time.Duration {
	return time.Duration(w.TransitTimeoutMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	out, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return out, nil
}
