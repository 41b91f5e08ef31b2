package formatting

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleReport struct {
	State   string `json:"state" yaml:"state"`
	Message string `json:"message" yaml:"message"`
}

func (r sampleReport) Summary() string {
	return r.Message
}

func TestParseFormat(t *testing.T) {
	for input, want := range map[string]OutputFormat{
		"":        FormatConsole,
		"console": FormatConsole,
		"json":    FormatJSON,
		"yaml":    FormatYAML,
	} {
		got, err := ParseFormat(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestConsoleFormatterUsesSummary(t *testing.T) {
	f := NewFormatter(FormatConsole)
	out, err := f.Format(sampleReport{State: "connected", Message: "connected to company 9130350"})
	require.NoError(t, err)
	assert.Equal(t, "connected to company 9130350", out)
}

func TestConsoleFormatterTruncatesLongSummaries(t *testing.T) {
	f := NewFormatter(FormatConsole)
	out, err := f.Format(sampleReport{Message: strings.Repeat("x", 500)})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out), consoleSummaryMaxLen)
	assert.True(t, strings.HasSuffix(out, "..."))
}

func TestJSONFormatter(t *testing.T) {
	f := NewFormatter(FormatJSON)
	out, err := f.Format(sampleReport{State: "connected", Message: "ok"})
	require.NoError(t, err)
	assert.Contains(t, out, `"state": "connected"`)
}

func TestYAMLFormatter(t *testing.T) {
	f := NewFormatter(FormatYAML)
	out, err := f.Format(sampleReport{State: "connected", Message: "ok"})
	require.NoError(t, err)
	assert.Contains(t, out, "state: connected")
}

func TestPrettyJSONFallback(t *testing.T) {
	out := PrettyJSON(map[string]int{"a": 1})
	assert.Contains(t, out, `"a": 1`)

	// Unmarshalable values fall back to the default representation.
	out = PrettyJSON(func() {})
	assert.NotEmpty(t, out)
}
