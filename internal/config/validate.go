package config

import (
	"errors"
	"fmt"

	"github.com/yavdl/yavdl/internal/types"
)

// Validate ensures the configuration is usable. Defaults on preference
// lists and manglers are checked here, at load time, never lazily.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validatePreferenceLists(); err != nil {
		return err
	}
	if err := c.validateManglers(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.TempDir == "" {
		return errors.New("paths.temp_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	return nil
}

func (c *Config) validateDownload() error {
	if c.Download.Workers < 1 {
		return errors.New("download.workers must be at least 1")
	}
	if c.Download.MaxRetries < 0 {
		return errors.New("download.max_retries must not be negative")
	}
	if c.Download.ShrinkToleranceMiB < 0 {
		return errors.New("download.shrink_tolerance_mib must not be negative")
	}
	if c.Download.ResumeVerifyKiB < 0 {
		return errors.New("download.resume_verify_kib must not be negative")
	}
	return nil
}

func (c *Config) validatePreferenceLists() error {
	if len(c.PreferenceLists) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	defaults := 0
	for _, list := range c.PreferenceLists {
		if list.Name == "" {
			return errors.New("preference_list.name must be set")
		}
		if _, dup := seen[list.Name]; dup {
			return fmt.Errorf("preference list %q defined twice", list.Name)
		}
		seen[list.Name] = struct{}{}
		if len(list.Formats) == 0 {
			return fmt.Errorf("preference list %q has no formats", list.Name)
		}
		for _, entry := range list.Formats {
			if _, err := types.ParseFormatID(entry); err != nil {
				return fmt.Errorf("preference list %q: %w", list.Name, err)
			}
		}
		if list.Default {
			defaults++
		}
	}
	if defaults != 1 {
		return fmt.Errorf("exactly one preference list must be marked default, found %d", defaults)
	}
	return nil
}

func (c *Config) validateManglers() error {
	seen := make(map[string]struct{})
	defaults := 0
	for _, m := range c.Manglers {
		if m.Name == "" {
			return errors.New("mangler.name must be set")
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("mangler %q defined twice", m.Name)
		}
		seen[m.Name] = struct{}{}
		switch m.Type {
		case "gateway":
			if m.BaseURL == "" {
				return fmt.Errorf("mangler %q: gateway requires base_url", m.Name)
			}
		case "script":
			if (m.Script == "") == (m.ScriptFile == "") {
				return fmt.Errorf("mangler %q: script requires exactly one of script or script_file", m.Name)
			}
		default:
			return fmt.Errorf("mangler %q: unknown type %q (want gateway or script)", m.Name, m.Type)
		}
		if m.Default {
			defaults++
		}
	}
	if defaults > 1 {
		return fmt.Errorf("at most one mangler may be marked default, found %d", defaults)
	}
	return nil
}
