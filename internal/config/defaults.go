package config

const (
	defaultConfigPath     = "~/.config/framex/config.toml"
	defaultDataDir        = "~/.local/share/framex"
	defaultLogDir         = "~/.local/share/framex/logs"
	defaultMaxResolution  = 2000
	defaultSamplingRate   = 60
	defaultPollTimeoutMs  = 10
	defaultImageTimeoutMs = 2500
	defaultFFprobeBinary  = "ffprobe"
	defaultFFmpegBinary   = "ffmpeg"
	defaultInputSlots     = 4
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Extraction: Extraction{
			MaxResolution:  defaultMaxResolution,
			SamplingRate:   defaultSamplingRate,
			PollTimeoutMs:  defaultPollTimeoutMs,
			ImageTimeoutMs: defaultImageTimeoutMs,
		},
		Engines: Engines{
			Prober:        ProberFFprobe,
			FFprobeBinary: defaultFFprobeBinary,
			FFmpegBinary:  defaultFFmpegBinary,
			InputSlots:    defaultInputSlots,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
