package formatting

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter provides YAML output formatting
type YAMLFormatter struct{}

// Format renders the report as YAML.
func (f *YAMLFormatter) Format(v interface{}) (string, error) {
	b, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to render YAML output: %w", err)
	}
	return strings.TrimRight(string(b), "\n"), nil
}
