package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lightctl/internal/pattern"
)

const timeline = `
name: two channels
channels:
  - channel: 2
    start: "2024-05-01 08:00:00"
    wait: {status: off}
    steps:
      - {status: on, ms: 500, period: 100, width: 10}
      - {status: 0, ms: 250}
  - channel: 1
    start-after: 90s
    steps:
      - times: 3
        steps:
          - {status: 1, ms: 1000}
          - {status: 0, ms: 1000}
      - {status: true, ms: 5}
`

func TestParse(t *testing.T) {
	inputs, err := Parse(strings.NewReader(timeline))
	require.NoError(t, err)
	require.Len(t, inputs, 2)

	ch2 := inputs[0]
	assert.Equal(t, 2, ch2.Channel)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 0, 0, 0, time.Local), ch2.StartAt)
	require.NotNil(t, ch2.Wait)
	assert.False(t, ch2.Wait.Status)
	assert.Equal(t, []pattern.Element{
		{Status: true, DurationMs: 500, PulsePeriodMs: 100, PulseWidthMs: 10},
		{Status: false, DurationMs: 250},
	}, ch2.Elements)

	ch1 := inputs[1]
	assert.Equal(t, 90*time.Second, ch1.StartAfter)
	assert.Nil(t, ch1.Wait)
	require.Len(t, ch1.Elements, 7)
	assert.Equal(t, pattern.Element{Status: true, DurationMs: 1000}, ch1.Elements[4])
	assert.Equal(t, pattern.Element{Status: true, DurationMs: 5}, ch1.Elements[6])
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "empty", doc: ""},
		{name: "bad level", doc: "channels:\n  - channel: 1\n    steps:\n      - {status: maybe, ms: 1}\n"},
		{name: "unknown field", doc: "channels:\n  - channel: 1\n    colour: red\n"},
		{name: "numeric start", doc: "channels:\n  - channel: 1\n    start: \"12\"\n"},
		{name: "negative times", doc: "channels:\n  - channel: 1\n    steps:\n      - {status: 1, ms: 1, times: -2}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(timeline), 0o600))

	inputs, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, inputs, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
