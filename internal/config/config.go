// Package config loads and validates the TOML run configuration: named
// format preference lists, named URL manglers, directories, and network
// knobs. Loading fails fast; nothing here is re-validated at request time.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Paths contains directory configuration.
type Paths struct {
	TempDir   string `toml:"temp_dir"`
	OutputDir string `toml:"output_dir"`
}

// Catalog contains configuration for the format catalog collaborator.
type Catalog struct {
	BaseURL             string `toml:"base_url"`
	ExperimentalFormats bool   `toml:"experimental_formats"`
}

// Download contains downloader tuning.
type Download struct {
	Workers            int   `toml:"workers"`
	MaxRetries         int   `toml:"max_retries"`
	InitialBackoffMS   int   `toml:"initial_backoff_ms"`
	MaxBackoffMS       int   `toml:"max_backoff_ms"`
	ShrinkToleranceMiB int64 `toml:"shrink_tolerance_mib"`
	ResumeVerifyKiB    int64 `toml:"resume_verify_kib"`
}

// Subtitles contains subtitle stream handling configuration.
type Subtitles struct {
	FilterSpam bool `toml:"filter_spam"`
}

// Output contains container output configuration.
type Output struct {
	MKV bool `toml:"mkv"`
}

// PreferenceList is one named, ordered format preference. Entries are
// literal format numbers or the word "default" (the platform-default
// sentinel). Exactly one configured list must be marked default.
type PreferenceList struct {
	Name    string   `toml:"name"`
	Formats []string `toml:"formats"`
	Default bool     `toml:"default"`
}

// Mangler declares one named URL transform: either a gateway (rewrites
// URLs through a proxy endpoint) or a user-supplied JavaScript function
// compiled at load time. At most one mangler may be marked default.
type Mangler struct {
	Name       string `toml:"name"`
	Type       string `toml:"type"`
	BaseURL    string `toml:"base_url"`
	Script     string `toml:"script"`
	ScriptFile string `toml:"script_file"`
	Default    bool   `toml:"default"`
}

// Config encapsulates all configuration values for one run.
type Config struct {
	Paths           Paths            `toml:"paths"`
	Catalog         Catalog          `toml:"catalog"`
	Download        Download         `toml:"download"`
	Subtitles       Subtitles        `toml:"subtitles"`
	Output          Output           `toml:"output"`
	PreferenceLists []PreferenceList `toml:"preference_list"`
	Manglers        []Mangler        `toml:"mangler"`
}

// Load parses and validates a configuration file. An empty path or a
// missing file at the default location yields the built-in defaults; an
// explicitly named file must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return &cfg, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file %s does not exist", path)
		}
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}
