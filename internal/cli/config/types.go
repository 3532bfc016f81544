// Package config provides configuration management for the quarry CLI.
//
// Configuration is layered: defaults, then an optional quarry.yaml file,
// then QUARRY_-prefixed environment variables, then command-line flags.
package config

// Config holds all CLI configuration options.
type Config struct {
	// Project is the path to the project database file. Empty means a
	// scratch in-memory session.
	Project string `koanf:"project"`

	// Format selects how tabular output is rendered: table, json, csv
	// or markdown.
	Format string `koanf:"format"`

	// PreviewLimit is the default number of rows shown by preview and
	// by the shell's .preview command.
	PreviewLimit int `koanf:"preview_limit"`

	Verbose bool `koanf:"verbose"`
}

// Default configuration values.
const (
	DefaultFormat       = "table"
	DefaultPreviewLimit = 20
)
