// Package config loads, normalizes, and validates jellybridge configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// JELLYBRIDGE_SOURCE_API_KEY. The Config type centralizes the source and
// destination instance definitions, artifact locations, and migration policy
// (system account exclusion, path translation rules) so every command
// discovers them in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
