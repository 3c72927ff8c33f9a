package config

const (
	defaultDataDir                = "~/.local/share/labelflow/data"
	defaultLogDir                 = "~/.local/share/labelflow/logs"
	defaultStorageRoot            = "~/.local/share/labelflow/storage"
	defaultStorageMoveTimeout     = 120
	defaultStorageRetryMaxElapsed = 30
	defaultNotifyRequestTimeout   = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			LogDir:      defaultLogDir,
			StorageRoot: defaultStorageRoot,
		},
		Storage: Storage{
			MoveTimeout:     defaultStorageMoveTimeout,
			RetryMaxElapsed: defaultStorageRetryMaxElapsed,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			TaskEvents:     true,
			Alerts:         true,
		},
		Pipeline: Pipeline{
			WarnOnBranching: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
