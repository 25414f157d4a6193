package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lightctl/internal/pattern"
)

func kinds(diags []Diagnostic) []DiagnosticKind {
	out := make([]DiagnosticKind, len(diags))
	for i, d := range diags {
		out[i] = d.Kind
	}
	return out
}

func TestStoreApply(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		kinds   []DiagnosticKind
		length  int
		repeats uint32
	}{
		{
			name:    "well formed",
			line:    "PATTERN:1;CH:1;STATUS:1,0;TIME_MS:100,200;REPEATS:3;PULSE:T0pw0,T0pw0",
			length:  2,
			repeats: 3,
		},
		{
			name:    "status and time disagree",
			line:    "PATTERN:1;CH:1;STATUS:1,0;TIME_MS:100,200,300;REPEATS:1;PULSE:T0pw0,T0pw0",
			kinds:   []DiagnosticKind{MalformedCommand},
			length:  2,
			repeats: 1,
		},
		{
			name:    "pulse list short",
			line:    "PATTERN:1;CH:1;STATUS:1,0,1;TIME_MS:100,200,300;REPEATS:1;PULSE:T10pw5",
			kinds:   []DiagnosticKind{MalformedCommand},
			length:  1,
			repeats: 1,
		},
		{
			name:    "pulse list long",
			line:    "PATTERN:1;CH:1;STATUS:1,0;TIME_MS:100,200;REPEATS:1;PULSE:T10pw5,T0pw0,T0pw0",
			kinds:   []DiagnosticKind{MalformedCommand},
			length:  2,
			repeats: 1,
		},
		{
			name:    "zero total duration",
			line:    "PATTERN:1;CH:1;STATUS:1,0;TIME_MS:0,0;REPEATS:4294967295;PULSE:T0pw0,T0pw0",
			kinds:   []DiagnosticKind{Coerced},
			length:  2,
			repeats: 1,
		},
		{
			name:    "legacy line without pulse",
			line:    "PATTERN:1;CH:1;STATUS:1,0;TIME_MS:100,200;REPEATS:2",
			length:  2,
			repeats: 2,
		},
		{
			name:    "over length",
			line:    "PATTERN:1;CH:1;STATUS:1,0,1,0,1;TIME_MS:1,2,3,4,5;REPEATS:1;PULSE:T0pw0,T0pw0,T0pw0,T0pw0,T0pw0",
			kinds:   []DiagnosticKind{OverLengthPattern},
			length:  4,
			repeats: 1,
		},
		{
			name:    "zero repeats",
			line:    "PATTERN:1;CH:1;STATUS:1;TIME_MS:100;REPEATS:0;PULSE:T0pw0",
			kinds:   []DiagnosticKind{Coerced},
			length:  1,
			repeats: 1,
		},
		{
			name:    "width over period",
			line:    "PATTERN:1;CH:1;STATUS:1;TIME_MS:100;REPEATS:1;PULSE:T10pw50",
			kinds:   []DiagnosticKind{Coerced},
			length:  1,
			repeats: 1,
		},
		{
			name:    "out of order id",
			line:    "PATTERN:3;CH:1;STATUS:1;TIME_MS:100;REPEATS:1;PULSE:T0pw0",
			kinds:   []DiagnosticKind{Coerced},
			length:  1,
			repeats: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore(testCapability)
			diags := store.Apply(mustParse(t, tt.line))
			if tt.kinds == nil {
				assert.Empty(t, diags)
			} else {
				assert.Equal(t, tt.kinds, kinds(diags))
			}

			require.True(t, store.Received(1))
			p, ok := store.Pattern(1, 0)
			require.True(t, ok)
			assert.Equal(t, tt.length, p.EffectiveLength)
			assert.Len(t, p.Elements, tt.length)
			assert.Equal(t, tt.repeats, p.Repeats)
		})
	}
}

func TestStoreDrops(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "channel zero", line: "PATTERN:1;CH:0;STATUS:1;TIME_MS:100;REPEATS:1;PULSE:T0pw0"},
		{name: "channel too high", line: "PATTERN:1;CH:9;STATUS:1;TIME_MS:100;REPEATS:1;PULSE:T0pw0"},
		{name: "no elements", line: "PATTERN:1;CH:1;STATUS:;TIME_MS:;REPEATS:1"},
		{name: "status without times", line: "PATTERN:1;CH:1;STATUS:1,0;REPEATS:1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore(testCapability)
			diags := store.Apply(mustParse(t, tt.line))
			require.NotEmpty(t, diags)
			assert.Equal(t, Dropped, diags[len(diags)-1].Kind)
			for ch := 1; ch <= testCapability.MaxChannels; ch++ {
				assert.False(t, store.Received(ch))
			}
		})
	}
}

func TestStoreChannelFull(t *testing.T) {
	store := NewStore(pattern.Capability{MaxElementsPerPattern: 2, MaxPatternsPerChannel: 2, MaxChannels: 1})
	assert.Empty(t, store.Apply(mustParse(t, "PATTERN:1;CH:1;STATUS:1;TIME_MS:10;REPEATS:1;PULSE:T0pw0")))
	assert.Empty(t, store.Apply(mustParse(t, "PATTERN:2;CH:1;STATUS:0;TIME_MS:10;REPEATS:1;PULSE:T0pw0")))

	diags := store.Apply(mustParse(t, "PATTERN:3;CH:1;STATUS:1;TIME_MS:10;REPEATS:1;PULSE:T0pw0"))
	assert.Equal(t, []DiagnosticKind{Dropped}, kinds(diags))
	assert.Equal(t, 2, store.Len(1))

	// the wait slot is separate from the pattern slots
	assert.Empty(t, store.Apply(mustParse(t, "PATTERN:0;CH:1;STATUS:0;TIME_MS:10;REPEATS:1;PULSE:T0pw0")))
	assert.Equal(t, 3, store.Len(1))
}

func TestStoreWaitSlot(t *testing.T) {
	store := NewStore(testCapability)
	assert.Empty(t, store.Apply(mustParse(t, "PATTERN:1;CH:1;STATUS:1;TIME_MS:10;REPEATS:5;PULSE:T0pw0")))
	assert.Equal(t, []DiagnosticKind{Coerced},
		kinds(store.Apply(mustParse(t, "PATTERN:0;CH:1;STATUS:0;TIME_MS:400;REPEATS:2;PULSE:T0pw0"))))
	assert.Equal(t, []DiagnosticKind{Coerced},
		kinds(store.Apply(mustParse(t, "PATTERN:0;CH:1;STATUS:1;TIME_MS:500;REPEATS:1;PULSE:T0pw0"))))

	prog := store.Program(1)
	require.Len(t, prog.Patterns, 2)
	wait := prog.Patterns[0]
	assert.True(t, wait.IsWait())
	assert.Equal(t, uint32(1), wait.Repeats)
	assert.Equal(t, uint32(500), wait.Elements[0].DurationMs)
	assert.Equal(t, 1, prog.Patterns[1].ID)
	assert.Equal(t, uint32(5), prog.Patterns[1].Repeats)
}

func TestStoreFootprint(t *testing.T) {
	store := NewStore(testCapability)
	used, total := store.Footprint()
	assert.Greater(t, total, used)
	emptyUsed := used

	store.Apply(mustParse(t, "PATTERN:1;CH:1;STATUS:1;TIME_MS:10;REPEATS:1;PULSE:T0pw0"))
	used, total2 := store.Footprint()
	assert.Equal(t, total, total2)
	assert.Greater(t, used, emptyUsed)
}
