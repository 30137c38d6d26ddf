package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMigration(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateMigration() error {
	if c.Migration.SystemAccount == "" {
		return errors.New("migration.system_account must be set")
	}
	for i, rule := range c.Migration.PathRules {
		if rule.SourcePrefix == "" {
			return fmt.Errorf("migration.path_rules[%d].source_prefix must be set", i)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

// RequireSourceStores returns an error when the source database paths are unset.
// Commands that read the source databases call this before opening anything.
func (c *Config) RequireSourceStores() error {
	if c.Source.LibraryDB == "" {
		return errors.New("source.library_db must be set")
	}
	if c.Source.ServerDB == "" {
		return errors.New("source.server_db must be set")
	}
	return nil
}

// RequireDestinationStores returns an error when the destination database paths are unset.
func (c *Config) RequireDestinationStores() error {
	if c.Destination.LibraryDB == "" {
		return errors.New("destination.library_db must be set")
	}
	if c.Destination.ServerDB == "" {
		return errors.New("destination.server_db must be set")
	}
	return nil
}

// RequireSourceAPI returns an error when the source REST endpoint is unset.
func (c *Config) RequireSourceAPI() error {
	return requireAPI("source", &c.Source)
}

// RequireDestinationAPI returns an error when the destination REST endpoint is unset.
func (c *Config) RequireDestinationAPI() error {
	return requireAPI("destination", &c.Destination)
}

func requireAPI(section string, inst *Instance) error {
	if inst.URL == "" {
		return fmt.Errorf("%s.url must be set", section)
	}
	if inst.APIKey == "" {
		return fmt.Errorf("%s.api_key must be set (or export the matching environment variable)", section)
	}
	return nil
}
