package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateExtraction(); err != nil {
		return err
	}
	if err := c.validateEngines(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateExtraction() error {
	if c.Extraction.MaxResolution <= 0 {
		return errors.New("extraction.max_resolution must be positive")
	}
	if c.Extraction.SamplingRate <= 0 {
		return errors.New("extraction.sampling_rate must be positive")
	}
	if c.Extraction.FrameBudget < 0 {
		return errors.New("extraction.frame_budget must be zero or positive")
	}
	if c.Extraction.PollTimeoutMs <= 0 {
		return errors.New("extraction.poll_timeout_ms must be positive")
	}
	if c.Extraction.ImageTimeoutMs <= 0 {
		return errors.New("extraction.image_timeout_ms must be positive")
	}
	return nil
}

func (c *Config) validateEngines() error {
	switch c.Engines.Prober {
	case ProberFFprobe, ProberMP4:
	default:
		return fmt.Errorf("engines.prober: unsupported value %q (want %q or %q)", c.Engines.Prober, ProberFFprobe, ProberMP4)
	}
	if c.Engines.InputSlots < 1 {
		return errors.New("engines.input_slots must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
