// Package config loads, defaults, and validates the TOML configuration that
// drives the scribe daemon and CLI.
package config
