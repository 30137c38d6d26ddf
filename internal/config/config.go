package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"jellybridge/internal/pathmap"
)

//go:embed sample_config.toml
var sampleConfig string

// Instance identifies one Jellyfin server: where its databases live on disk
// and how to reach its REST API.
type Instance struct {
	LibraryDB string `toml:"library_db"`
	ServerDB  string `toml:"server_db"`
	URL       string `toml:"url"`
	APIKey    string `toml:"api_key"`
}

// Paths contains directory configuration for artifacts and logs.
type Paths struct {
	ExportDir string `toml:"export_dir"`
	LogDir    string `toml:"log_dir"`
}

// PathRule maps one source path prefix to its destination equivalent.
type PathRule struct {
	SourcePrefix      string `toml:"source_prefix"`
	DestinationPrefix string `toml:"destination_prefix"`
}

// Migration contains policy knobs shared by the migration commands.
type Migration struct {
	// SystemAccount is the distinguished server-owned account that never
	// migrates. Compared case-insensitively.
	SystemAccount string `toml:"system_account"`
	// ScanPollSeconds is the interval between library scan status checks
	// during library import.
	ScanPollSeconds int        `toml:"scan_poll_seconds"`
	PathRules       []PathRule `toml:"path_rules"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for jellybridge.
//
// Configuration sections by subsystem:
//   - Source: the old server instance being migrated away from
//   - Destination: the new server instance being populated
//   - Paths: artifact export directory and log directory
//   - Migration: system account exclusion, path rules, scan polling
//   - Logging: log format and level
type Config struct {
	Source      Instance  `toml:"source"`
	Destination Instance  `toml:"destination"`
	Paths       Paths     `toml:"paths"`
	Migration   Migration `toml:"migration"`
	Logging     Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/jellybridge/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("jellybridge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the artifact and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ExportDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PathRules returns the ordered translation rule list as pathmap rules.
func (c *Config) PathRules() pathmap.Rules {
	rules := make(pathmap.Rules, 0, len(c.Migration.PathRules))
	for _, rule := range c.Migration.PathRules {
		rules = append(rules, pathmap.Rule{
			SourcePrefix:      rule.SourcePrefix,
			DestinationPrefix: rule.DestinationPrefix,
		})
	}
	return rules
}

// ArtifactPath returns the path of a named artifact under the export directory.
func (c *Config) ArtifactPath(name string) string {
	return filepath.Join(c.Paths.ExportDir, name)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
