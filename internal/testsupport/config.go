// Package testsupport provides shared helpers for building test
// configurations and seeded server database fixtures.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"jellybridge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ExportDir = filepath.Join(base, "exports")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Migration.ScanPollSeconds = 1

	for _, opt := range opts {
		opt(&cfgVal)
	}
	return &cfgVal
}

// WithSourceStores points the source instance at the given database files.
func WithSourceStores(libraryDB, serverDB string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Source.LibraryDB = libraryDB
		cfg.Source.ServerDB = serverDB
	}
}

// WithDestinationStores points the destination instance at the given
// database files.
func WithDestinationStores(libraryDB, serverDB string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Destination.LibraryDB = libraryDB
		cfg.Destination.ServerDB = serverDB
	}
}

// WithPathRule appends one path translation rule.
func WithPathRule(sourcePrefix, destinationPrefix string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Migration.PathRules = append(cfg.Migration.PathRules, config.PathRule{
			SourcePrefix:      sourcePrefix,
			DestinationPrefix: destinationPrefix,
		})
	}
}

// WriteConfig marshals the config to a TOML file under a temp directory
// and returns its path, for tests that drive commands through --config.
func WriteConfig(t testing.TB, cfg *config.Config) string {
	t.Helper()

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal test config: %v", err)
	}
	path := filepath.Join(t.TempDir(), "jellybridge.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	return path
}
