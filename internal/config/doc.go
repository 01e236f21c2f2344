// Package config defines the settings used by the daemon and the CLI and
// provides helpers to load, validate and save them in YAML format.
//
// Validate fills in defaults, so a file holding only credentials is a
// complete configuration.
package config
