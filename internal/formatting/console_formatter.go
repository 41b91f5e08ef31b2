package formatting

import (
	pkgstrings "qbconnect/pkg/strings"
)

// consoleSummaryMaxLen bounds the one-line console summary. Probe failures
// can embed long upstream error text.
const consoleSummaryMaxLen = 160

// ConsoleFormatter renders reports as plain single-line console output.
type ConsoleFormatter struct{}

// Format renders the report's summary line when it provides one, falling
// back to indented JSON for arbitrary values.
func (f *ConsoleFormatter) Format(v interface{}) (string, error) {
	if s, ok := v.(Summarizer); ok {
		return pkgstrings.TruncateDescription(s.Summary(), consoleSummaryMaxLen), nil
	}
	return PrettyJSON(v), nil
}
