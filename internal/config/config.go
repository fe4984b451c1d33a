package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// Config holds all configurable partline settings.
type Config struct {
	DBPath                    string `toml:"db_path"`
	SelectionMode             string `toml:"selection_mode"` // "single" | "multi"
	DismissSelectionOnRelease *bool  `toml:"dismiss_selection_on_release"`
	DefaultFormat             string `toml:"default_format"` // "markdown" | "json"
	OutputDir                 string `toml:"output_dir"`
	Verbose                   bool   `toml:"verbose"`
	Watch                     *bool  `toml:"watch"` // reload when another process writes the database
}

// Viper keys bound by the root command.
const (
	KeyDBPath        = "db_path"
	KeySelectionMode = "selection_mode"
	KeyDismiss       = "dismiss_selection_on_release"
	KeyDefaultFormat = "default_format"
	KeyOutputDir     = "output_dir"
	KeyVerbose       = "verbose"
	KeyWatch         = "watch"
)

// Defaults returns sensible default configuration values.
func Defaults() Config {
	return Config{
		DBPath:                    DefaultDBPath(),
		SelectionMode:             "single",
		DismissSelectionOnRelease: boolPtr(false),
		DefaultFormat:             "markdown",
		OutputDir:                 ".",
		Watch:                     boolPtr(true),
	}
}

// DismissOnRelease reports the effective dismiss_selection_on_release value.
func (c Config) DismissOnRelease() bool {
	return c.DismissSelectionOnRelease != nil && *c.DismissSelectionOnRelease
}

// WatchEnabled reports the effective watch value.
func (c Config) WatchEnabled() bool {
	return c.Watch == nil || *c.Watch
}

// DefaultDBPath returns $XDG_DATA_HOME/partline/partline.db, falling back to
// ~/.local/share when XDG_DATA_HOME is unset.
func DefaultDBPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "partline", "partline.db")
}

// LoadGlobal reads ~/.config/partline/config.toml.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(home, ".config", "partline", "config.toml")
	return loadFile(path, true)
}

// LoadProject reads .partline.toml in the current working directory.
// Returns nil (no error) if the file is absent.
func LoadProject() (*Config, error) {
	return loadFile(".partline.toml", false)
}

// loadFile reads and parses a TOML config file at path.
// If returnDefaults is true, returns defaults when the file is absent.
// If returnDefaults is false, returns nil when the file is absent.
func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()
	overlay(&result, global)
	overlay(&result, project)
	return result
}

func overlay(dst *Config, src *Config) {
	if src == nil {
		return
	}
	if src.DBPath != "" {
		dst.DBPath = src.DBPath
	}
	if src.SelectionMode != "" {
		dst.SelectionMode = src.SelectionMode
	}
	if src.DismissSelectionOnRelease != nil {
		dst.DismissSelectionOnRelease = boolPtr(*src.DismissSelectionOnRelease)
	}
	if src.DefaultFormat != "" {
		dst.DefaultFormat = src.DefaultFormat
	}
	if src.OutputDir != "" {
		dst.OutputDir = src.OutputDir
	}
	if src.Verbose {
		dst.Verbose = true
	}
	if src.Watch != nil {
		dst.Watch = boolPtr(*src.Watch)
	}
}

// ApplyViper overlays the keys that v has explicitly set (PARTLINE_*
// environment variables and changed flags) on top of cfg.
func ApplyViper(cfg Config, v *viper.Viper) Config {
	if v.IsSet(KeyDBPath) {
		if s := v.GetString(KeyDBPath); s != "" {
			cfg.DBPath = s
		}
	}
	if v.IsSet(KeySelectionMode) {
		cfg.SelectionMode = v.GetString(KeySelectionMode)
	}
	if v.IsSet(KeyDismiss) {
		cfg.DismissSelectionOnRelease = boolPtr(v.GetBool(KeyDismiss))
	}
	if v.IsSet(KeyDefaultFormat) {
		cfg.DefaultFormat = v.GetString(KeyDefaultFormat)
	}
	if v.IsSet(KeyOutputDir) {
		cfg.OutputDir = v.GetString(KeyOutputDir)
	}
	if v.IsSet(KeyVerbose) {
		cfg.Verbose = v.GetBool(KeyVerbose)
	}
	if v.IsSet(KeyWatch) {
		cfg.Watch = boolPtr(v.GetBool(KeyWatch))
	}
	return cfg
}

// Load reads both config files, merges them and applies v on top.
func Load(v *viper.Viper) (Config, error) {
	global, err := LoadGlobal()
	if err != nil {
		return Config{}, err
	}
	project, err := LoadProject()
	if err != nil {
		return Config{}, err
	}
	cfg := Merge(global, project)
	if v != nil {
		cfg = ApplyViper(cfg, v)
	}
	return cfg, nil
}

func boolPtr(b bool) *bool { return &b }

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
