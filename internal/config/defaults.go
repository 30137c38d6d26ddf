package config

const (
	defaultExportDir       = "~/.local/share/jellybridge/exports"
	defaultLogDir          = "~/.local/share/jellybridge/logs"
	defaultSystemAccount   = "jellyfin"
	defaultScanPollSeconds = 15
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ExportDir: defaultExportDir,
			LogDir:    defaultLogDir,
		},
		Migration: Migration{
			SystemAccount:   defaultSystemAccount,
			ScanPollSeconds: defaultScanPollSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
