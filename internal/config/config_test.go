package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mitchellh/go-homedir"
)

func TestConfig_ReadWrite(t *testing.T) {
	t.Parallel()

	cfg := NewConfig("/var/lib/kitchensync")
	cfg.Defaults.Exclude = []string{"*.tmp", "node_modules"}
	cfg.Defaults.ExcludeFrom = "/etc/kitchensync/excludes"

	m := &Manager{}
	var buf bytes.Buffer
	if err := m.Write(&buf, cfg); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.BaseDir != cfg.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, cfg.BaseDir)
	}
	if got.LogDir != cfg.LogDir {
		t.Errorf("LogDir = %q, want %q", got.LogDir, cfg.LogDir)
	}
	if got.Journal.Path != cfg.Journal.Path {
		t.Errorf("Journal.Path = %q, want %q", got.Journal.Path, cfg.Journal.Path)
	}
	if !got.JournalEnabled() {
		t.Error("JournalEnabled() = false, want true")
	}
	if v := got.Defaults.VerbosityOr(-1); v != DefaultVerbosity {
		t.Errorf("Verbosity = %d, want %d", v, DefaultVerbosity)
	}
	if a := got.Defaults.AbortTimeoutOr(-1); a != DefaultAbortTimeout {
		t.Errorf("AbortTimeout = %d, want %d", a, DefaultAbortTimeout)
	}
	if !got.Defaults.UseModTimeOr(false) {
		t.Error("UseModTime = false, want true")
	}
	if got.Defaults.IncludeTimestampsOr(true) {
		t.Error("IncludeTimestamps = true, want false")
	}
	if len(got.Defaults.Exclude) != 2 || got.Defaults.Exclude[1] != "node_modules" {
		t.Errorf("Exclude = %v, want [*.tmp node_modules]", got.Defaults.Exclude)
	}
	if got.Defaults.ExcludeFrom != cfg.Defaults.ExcludeFrom {
		t.Errorf("ExcludeFrom = %q, want %q", got.Defaults.ExcludeFrom, cfg.Defaults.ExcludeFrom)
	}
}

func TestNewConfig(t *testing.T) {
	t.Parallel()
	cfg := NewConfig("/base")

	if cfg.LogDir != filepath.Join("/base", "log") {
		t.Errorf("LogDir = %q", cfg.LogDir)
	}
	if cfg.Journal.Path != filepath.Join("/base", "journal.db") {
		t.Errorf("Journal.Path = %q", cfg.Journal.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestManager_Read(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr string
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:  "empty file leaves everything unset",
			input: "",
			check: func(t *testing.T, cfg *Config) {
				if cfg.Defaults.Verbosity != nil || cfg.Defaults.UseModTime != nil {
					t.Error("expected unset defaults")
				}
				if v := cfg.Defaults.VerbosityOr(2); v != 2 {
					t.Errorf("VerbosityOr(2) = %d", v)
				}
				if !cfg.JournalEnabled() {
					t.Error("journal should be enabled when unset")
				}
			},
		},
		{
			name:  "zero values are kept",
			input: "[defaults]\nverbosity = 0\nuse_modtime = false\nabort_timeout = 0\n",
			check: func(t *testing.T, cfg *Config) {
				if v := cfg.Defaults.VerbosityOr(1); v != 0 {
					t.Errorf("Verbosity = %d, want 0", v)
				}
				if cfg.Defaults.UseModTimeOr(true) {
					t.Error("UseModTime = true, want false")
				}
				if a := cfg.Defaults.AbortTimeoutOr(30); a != 0 {
					t.Errorf("AbortTimeout = %d, want 0", a)
				}
			},
		},
		{
			name:  "journal disabled",
			input: "[journal]\nenabled = false\n",
			check: func(t *testing.T, cfg *Config) {
				if cfg.JournalEnabled() {
					t.Error("JournalEnabled() = true, want false")
				}
			},
		},
		{
			name:    "unknown key",
			input:   "[defaults]\nverbose = 2\n",
			wantErr: "unknown config key",
		},
		{
			name:    "malformed toml",
			input:   "[defaults\n",
			wantErr: "failed to decode config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := &Manager{}
			cfg, err := m.Read(strings.NewReader(tt.input))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Read() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"defaults", "", false},
		{"verbosity 2", "[defaults]\nverbosity = 2\n", false},
		{"verbosity too high", "[defaults]\nverbosity = 3\n", true},
		{"negative verbosity", "[defaults]\nverbosity = -1\n", true},
		{"negative timeout", "[defaults]\nabort_timeout = -5\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := &Manager{}
			cfg, err := m.Read(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Parallel()

	t.Run("creates file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "nested", "kitchensync.toml")
		cfg := NewConfig("/base")

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.Journal.Path != cfg.Journal.Path {
			t.Errorf("Journal.Path = %q, want %q", got.Journal.Path, cfg.Journal.Path)
		}
	})

	t.Run("fails if exists", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "kitchensync.toml")
		if err := os.WriteFile(path, []byte(""), 0644); err != nil {
			t.Fatal(err)
		}

		if err := Init(path, NewConfig("/base")); err == nil {
			t.Error("Init() expected error for existing file")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Parallel()

	t.Run("expands home directory", func(t *testing.T) {
		t.Parallel()
		home, err := homedir.Dir()
		if err != nil {
			t.Skipf("no home directory: %v", err)
		}
		path := filepath.Join(t.TempDir(), "kitchensync.toml")
		content := "log_dir = \"~/ks-log\"\n\n[defaults]\nexclude_from = \"~/.ksignore\"\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if want := filepath.Join(home, "ks-log"); cfg.LogDir != want {
			t.Errorf("LogDir = %q, want %q", cfg.LogDir, want)
		}
		if want := filepath.Join(home, ".ksignore"); cfg.Defaults.ExcludeFrom != want {
			t.Errorf("ExcludeFrom = %q, want %q", cfg.Defaults.ExcludeFrom, want)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		if _, err := ReadFromFile(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("ReadFromFile() expected error for missing file")
		}
	})
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("missing file gives defaults", func(t *testing.T) {
		t.Parallel()
		base := t.TempDir()
		cfg, err := Load(filepath.Join(base, "nope.toml"), base)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Journal.Path != filepath.Join(base, "journal.db") {
			t.Errorf("Journal.Path = %q", cfg.Journal.Path)
		}
		if v := cfg.Defaults.VerbosityOr(-1); v != DefaultVerbosity {
			t.Errorf("Verbosity = %d", v)
		}
	})

	t.Run("fills unset locations", func(t *testing.T) {
		t.Parallel()
		base := t.TempDir()
		path := filepath.Join(base, "kitchensync.toml")
		if err := os.WriteFile(path, []byte("[defaults]\nverbosity = 2\n"), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load(path, base)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.LogDir != filepath.Join(base, "log") {
			t.Errorf("LogDir = %q", cfg.LogDir)
		}
		if v := cfg.Defaults.VerbosityOr(1); v != 2 {
			t.Errorf("Verbosity = %d, want 2", v)
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		t.Parallel()
		base := t.TempDir()
		path := filepath.Join(base, "kitchensync.toml")
		if err := os.WriteFile(path, []byte("[defaults]\nverbosity = 7\n"), 0644); err != nil {
			t.Fatal(err)
		}

		if _, err := Load(path, base); err == nil {
			t.Error("Load() expected error for invalid verbosity")
		}
	})
}
