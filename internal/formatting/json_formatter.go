package formatting

import (
	"encoding/json"
	"fmt"
)

// JSONFormatter provides structured JSON output formatting
type JSONFormatter struct{}

// Format renders the report as indented JSON.
func (f *JSONFormatter) Format(v interface{}) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render JSON output: %w", err)
	}
	return string(b), nil
}
