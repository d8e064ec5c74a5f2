package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEngines()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(strings.TrimSpace(c.Paths.DataDir)); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeEngines() {
	c.Engines.Prober = strings.ToLower(strings.TrimSpace(c.Engines.Prober))
	if c.Engines.Prober == "" {
		c.Engines.Prober = ProberFFprobe
	}
	if value, ok := os.LookupEnv("FRAMEX_FFPROBE"); ok && strings.TrimSpace(value) != "" {
		c.Engines.FFprobeBinary = value
	}
	if value, ok := os.LookupEnv("FRAMEX_FFMPEG"); ok && strings.TrimSpace(value) != "" {
		c.Engines.FFmpegBinary = value
	}
	c.Engines.FFprobeBinary = strings.TrimSpace(c.Engines.FFprobeBinary)
	if c.Engines.FFprobeBinary == "" {
		c.Engines.FFprobeBinary = defaultFFprobeBinary
	}
	c.Engines.FFmpegBinary = strings.TrimSpace(c.Engines.FFmpegBinary)
	if c.Engines.FFmpegBinary == "" {
		c.Engines.FFmpegBinary = defaultFFmpegBinary
	}
	if c.Engines.InputSlots == 0 {
		c.Engines.InputSlots = defaultInputSlots
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
