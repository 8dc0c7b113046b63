// Package config loads, normalizes, and validates the TOML configuration
// used by the songforge server and CLI.
package config
