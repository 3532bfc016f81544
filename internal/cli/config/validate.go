package config

import "fmt"

// Formats lists the supported output formats.
var Formats = []string{"table", "json", "csv", "markdown"}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	valid := c.Format == "md" // shorthand for markdown
	for _, f := range Formats {
		if c.Format == f {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid output format %q (expected one of table, json, csv, markdown)", c.Format)
	}
	if c.PreviewLimit < 0 {
		return fmt.Errorf("preview_limit must not be negative, got %d", c.PreviewLimit)
	}
	return nil
}
