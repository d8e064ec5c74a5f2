// Package config loads, normalizes, and validates framex configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours FRAMEX_FFMPEG and FRAMEX_FFPROBE
// environment overrides for the external binaries. Obtain settings through
// Load so callers receive absolute paths and clear validation errors.
package config
