package config

const (
	defaultDataDir              = "~/.local/share/songforge"
	defaultLogDir               = "~/.local/share/songforge/logs"
	defaultAPIBind              = "127.0.0.1:8264"
	defaultGeneratorTimeout     = 120
	defaultAnalyzerTimeout      = 120
	defaultIdleTimeoutMinutes   = 30
	defaultSweepIntervalSeconds = 60
	defaultRequestsPerMinute    = 120
	defaultLimitBurst           = 30
	defaultNotifyTimeout        = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Generator: Generator{
			TimeoutSeconds: defaultGeneratorTimeout,
		},
		Analyzer: Analyzer{
			TimeoutSeconds: defaultAnalyzerTimeout,
		},
		Sessions: Sessions{
			IdleTimeoutMinutes:   defaultIdleTimeoutMinutes,
			SweepIntervalSeconds: defaultSweepIntervalSeconds,
		},
		Limits: Limits{
			RequestsPerMinute: defaultRequestsPerMinute,
			Burst:             defaultLimitBurst,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Commit:         true,
			Expiry:         true,
			HumanRequest:   true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
