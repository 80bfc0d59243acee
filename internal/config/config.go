package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/go-homedir"
)

// Config represents the configuration file of kitchensync.
type Config struct {
	BaseDir  string         `toml:"base_dir"`
	LogDir   string         `toml:"log_dir"`
	Defaults DefaultsConfig `toml:"defaults"`
	Journal  JournalConfig  `toml:"journal"`
}

// DefaultsConfig holds option defaults. Command-line flags that are given
// explicitly take precedence; Exclude is added to the -x patterns.
// Unset values are nil so they can be told apart from false and zero.
type DefaultsConfig struct {
	Verbosity         *int     `toml:"verbosity,omitempty"`
	IncludeTimestamps *bool    `toml:"include_timestamps,omitempty"`
	UseModTime        *bool    `toml:"use_modtime,omitempty"`
	AbortTimeout      *int     `toml:"abort_timeout,omitempty"` // seconds; 0 disables
	Exclude           []string `toml:"exclude,omitempty"`
	ExcludeFrom       string   `toml:"exclude_from,omitempty"` // file with one pattern per line
}

// JournalConfig configures the SQLite run journal.
type JournalConfig struct {
	Enabled *bool  `toml:"enabled,omitempty"`
	Path    string `toml:"path,omitempty"`
}

// Built-in option defaults.
const (
	DefaultVerbosity    = 1
	DefaultAbortTimeout = 30
)

// NewConfig creates a Config rooted at baseDir with every default spelled out.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Defaults: DefaultsConfig{
			Verbosity:         ptr(DefaultVerbosity),
			IncludeTimestamps: ptr(false),
			UseModTime:        ptr(true),
			AbortTimeout:      ptr(DefaultAbortTimeout),
		},
		Journal: JournalConfig{
			Enabled: ptr(true),
			Path:    filepath.Join(baseDir, "journal.db"),
		},
	}
}

func ptr[T any](v T) *T { return &v }

// VerbosityOr returns the configured verbosity or def.
func (d DefaultsConfig) VerbosityOr(def int) int {
	if d.Verbosity == nil {
		return def
	}
	return *d.Verbosity
}

// IncludeTimestampsOr returns the configured value or def.
func (d DefaultsConfig) IncludeTimestampsOr(def bool) bool {
	if d.IncludeTimestamps == nil {
		return def
	}
	return *d.IncludeTimestamps
}

// UseModTimeOr returns the configured value or def.
func (d DefaultsConfig) UseModTimeOr(def bool) bool {
	if d.UseModTime == nil {
		return def
	}
	return *d.UseModTime
}

// AbortTimeoutOr returns the configured timeout in seconds or def.
func (d DefaultsConfig) AbortTimeoutOr(def int) int {
	if d.AbortTimeout == nil {
		return def
	}
	return *d.AbortTimeout
}

// JournalEnabled reports whether runs are journaled. Defaults to true.
func (c *Config) JournalEnabled() bool {
	return c.Journal.Enabled == nil || *c.Journal.Enabled
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if v := c.Defaults.Verbosity; v != nil && (*v < 0 || *v > 2) {
		return fmt.Errorf("defaults.verbosity must be 0, 1 or 2, got %d", *v)
	}
	if a := c.Defaults.AbortTimeout; a != nil && *a < 0 {
		return fmt.Errorf("defaults.abort_timeout must not be negative, got %d", *a)
	}
	return nil
}

// expandPaths resolves a leading ~ in every configured path.
func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.BaseDir, &c.LogDir, &c.Journal.Path, &c.Defaults.ExcludeFrom} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expanding %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// withDefaults fills unset locations from baseDir.
func (c *Config) withDefaults(baseDir string) {
	if c.BaseDir == "" {
		c.BaseDir = baseDir
	}
	if c.LogDir == "" {
		c.LogDir = filepath.Join(c.BaseDir, "log")
	}
	if c.Journal.Path == "" {
		c.Journal.Path = filepath.Join(c.BaseDir, "journal.db")
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads the config at path, or returns the built-in defaults if there
// is no file. Locations left unset are placed under baseDir.
func Load(path, baseDir string) (*Config, error) {
	cfg, err := ReadFromFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewConfig(baseDir), nil
	}
	if err != nil {
		return nil, err
	}
	cfg.withDefaults(baseDir)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to a new config file at path.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
