// Package formatting provides unified output formatting for CLI commands.
//
// Commands render their results through a Formatter so the same report can be
// printed as a human-readable line, JSON, or YAML, selected by the --output
// flag.
package formatting

import (
	"fmt"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatConsole OutputFormat = "console" // Simple console output
	FormatJSON    OutputFormat = "json"    // JSON output
	FormatYAML    OutputFormat = "yaml"    // YAML output
)

// Summarizer is implemented by reports that carry a one-line human summary.
// The console formatter prefers it over generic rendering.
type Summarizer interface {
	Summary() string
}

// Formatter renders a command report in one output format.
type Formatter interface {
	Format(v interface{}) (string, error)
}

// ParseFormat validates a --output flag value. An empty value selects
// console output.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", FormatConsole:
		return FormatConsole, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML:
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (supported: console, json, yaml)", s)
	}
}

// NewFormatter creates a formatter for the given format.
func NewFormatter(format OutputFormat) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{}
	case FormatYAML:
		return &YAMLFormatter{}
	default:
		return &ConsoleFormatter{}
	}
}
