package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateModes(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateModes() error {
	switch c.Geometry.Mode {
	case "all", "models", "terrains":
	default:
		return fmt.Errorf("geometry.mode must be one of all|models|terrains, got %q", c.Geometry.Mode)
	}
	switch c.Audio.Mode {
	case "all", "at3", "bnk":
	default:
		return fmt.Errorf("audio.mode must be one of all|at3|bnk, got %q", c.Audio.Mode)
	}
	switch c.Movies.Mode {
	case "copy", "probe", "transcode", "all":
	default:
		return fmt.Errorf("movies.mode must be one of copy|probe|transcode|all, got %q", c.Movies.Mode)
	}
	return nil
}

func (c *Config) validateLimits() error {
	if c.Geometry.Limit < 0 {
		return errors.New("geometry.limit must not be negative")
	}
	if c.Levels.Limit < 0 {
		return errors.New("levels.limit must not be negative")
	}
	if c.Movies.Limit < 0 {
		return errors.New("movies.limit must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format must be one of auto|console|json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug|info|warn|error, got %q", c.Logging.Level)
	}
	return nil
}
