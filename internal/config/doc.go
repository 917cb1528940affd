// Package config loads, normalizes, and validates mediasync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// MEDIASYNC_SFTP_PASSWORD. The Config type centralizes every knob the sync,
// prune, and bootstrap commands need, so remote connection details, library
// layout, categorization rules, and retention settings are discovered in one
// pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical extension lists, and clear validation errors.
package config
