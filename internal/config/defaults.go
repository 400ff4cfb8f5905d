package config

const (
	defaultConfigPath       = "~/.config/ribosim/config.toml"
	defaultDataDir          = "~/.local/share/ribosim"
	defaultLogDir           = "~/.local/share/ribosim/logs"
	defaultAPIBind          = "127.0.0.1:7650"
	defaultCarrierCapacity  = 2
	defaultEnterTimeoutMS   = 6000
	defaultExitTimeoutMS    = 6000
	defaultTickIntervalMS   = 50
	defaultEventBuffer      = 256
	defaultTransitTimeoutMS = 20000
	defaultProtein          = "Lactase"
	defaultServiceName      = "_ribosim._tcp"
	defaultClientBuffer     = 64
	defaultHistoryBuffer    = 128
	defaultHistoryRetention = 90
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultRetentionDays    = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Carrier: Carrier{
			Capacity:       defaultCarrierCapacity,
			EnterTimeoutMS: defaultEnterTimeoutMS,
			ExitTimeoutMS:  defaultExitTimeoutMS,
		},
		Workflow: Workflow{
			TickIntervalMS:   defaultTickIntervalMS,
			EventBuffer:      defaultEventBuffer,
			TransitTimeoutMS: defaultTransitTimeoutMS,
		},
		Catalog: Catalog{
			DefaultProtein: defaultProtein,
		},
		Bridge: Bridge{
			ServiceName:  defaultServiceName,
			ClientBuffer: defaultClientBuffer,
		},
		History: History{
			Enabled:       true,
			Buffer:        defaultHistoryBuffer,
			RetentionDays: defaultHistoryRetention,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultRetentionDays,
		},
	}
}
