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
	if err := c.normalizeInstance("source", &c.Source, "JELLYBRIDGE_SOURCE_API_KEY"); err != nil {
		return err
	}
	if err := c.normalizeInstance("destination", &c.Destination, "JELLYBRIDGE_DESTINATION_API_KEY"); err != nil {
		return err
	}
	c.normalizeMigration()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.ExportDir, err = expandPath(c.Paths.ExportDir); err != nil {
		return fmt.Errorf("paths.export_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeInstance(section string, inst *Instance, apiKeyEnv string) error {
	var err error
	if inst.LibraryDB, err = expandPath(strings.TrimSpace(inst.LibraryDB)); err != nil {
		return fmt.Errorf("%s.library_db: %w", section, err)
	}
	if inst.ServerDB, err = expandPath(strings.TrimSpace(inst.ServerDB)); err != nil {
		return fmt.Errorf("%s.server_db: %w", section, err)
	}
	inst.URL = strings.TrimRight(strings.TrimSpace(inst.URL), "/")
	inst.APIKey = strings.TrimSpace(inst.APIKey)
	if inst.APIKey == "" {
		if value, ok := os.LookupEnv(apiKeyEnv); ok {
			inst.APIKey = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeMigration() {
	c.Migration.SystemAccount = strings.TrimSpace(c.Migration.SystemAccount)
	if c.Migration.SystemAccount == "" {
		c.Migration.SystemAccount = defaultSystemAccount
	}
	if c.Migration.ScanPollSeconds <= 0 {
		c.Migration.ScanPollSeconds = defaultScanPollSeconds
	}
	for i := range c.Migration.PathRules {
		c.Migration.PathRules[i].SourcePrefix = strings.TrimSpace(c.Migration.PathRules[i].SourcePrefix)
		c.Migration.PathRules[i].DestinationPrefix = strings.TrimSpace(c.Migration.PathRules[i].DestinationPrefix)
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
