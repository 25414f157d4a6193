package pattern

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func on(ms uint32) Element  { return Element{Status: true, DurationMs: ms} }
func off(ms uint32) Element { return Element{Status: false, DurationMs: ms} }

func repeat(n int, els ...Element) []Element {
	var out []Element
	for i := 0; i < n; i++ {
		out = append(out, els...)
	}
	return out
}

func TestCompressBlink(t *testing.T) {
	input := repeat(10, on(1000), off(1000))

	patterns, err := Compress(input, 2)
	require.NoError(t, err)
	require.Len(t, patterns, 1)

	p := patterns[0]
	assert.Equal(t, 1, p.ID)
	assert.Equal(t, 2, p.EffectiveLength)
	assert.Equal(t, uint32(10), p.Repeats)
	assert.Equal(t, []Element{on(1000), off(1000)}, p.Elements)
	assert.Equal(t, uint64(20000), TotalDurationMs(patterns))
}

func TestCompressTail(t *testing.T) {
	input := append(repeat(3, on(100), off(200)), on(50))

	patterns, err := Compress(input, 2)
	require.NoError(t, err)
	require.Len(t, patterns, 2)

	assert.Equal(t, uint32(3), patterns[0].Repeats)
	tail := patterns[1]
	assert.Equal(t, 2, tail.ID)
	assert.Equal(t, 1, tail.EffectiveLength)
	assert.Equal(t, uint32(1), tail.Repeats)
	assert.Equal(t, []Element{on(50)}, tail.Elements)
}

func TestCompressCases(t *testing.T) {
	tests := []struct {
		name     string
		input    []Element
		window   int
		patterns int
	}{
		{"empty", nil, 2, 0},
		{"single element", []Element{on(500)}, 2, 1},
		{"window of one", repeat(5, on(10)), 1, 1},
		{"alternating with window one", repeat(4, on(10), off(10)), 1, 8},
		{"irregular", []Element{on(1), off(2), on(3), off(4), on(5)}, 2, 3},
		{"two runs", append(repeat(4, on(10), off(10)), repeat(2, on(20), off(20))...), 2, 2},
		{"window larger than input", repeat(3, on(10)), 8, 1},
		{"pulsed", repeat(6, Element{Status: true, DurationMs: 5000, PulsePeriodMs: 1000, PulseWidthMs: 100}), 3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patterns, err := Compress(tt.input, tt.window)
			require.NoError(t, err)
			assert.Len(t, patterns, tt.patterns)
			assert.Equal(t, normalize(tt.input), normalize(Expand(patterns)))
		})
	}
}

func TestCompressInvalidWindow(t *testing.T) {
	_, err := Compress([]Element{on(1)}, 0)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestCompressLosslessRandom(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	durations := []uint32{0, 100, 250, 1000}

	for run := 0; run < 200; run++ {
		n := rnd.Intn(60)
		input := make([]Element, n)
		for i := range input {
			input[i] = Element{Status: rnd.Intn(2) == 1, DurationMs: durations[rnd.Intn(len(durations))]}
			if rnd.Intn(4) == 0 {
				input[i].PulsePeriodMs = 1000
				input[i].PulseWidthMs = 100
			}
		}

		for l := 1; l <= 6; l++ {
			patterns, err := Compress(input, l)
			require.NoError(t, err)
			require.Equal(t, normalize(input), normalize(Expand(patterns)), "run %d window %d", run, l)

			for _, p := range patterns {
				require.LessOrEqual(t, p.EffectiveLength, l)
				require.GreaterOrEqual(t, p.Repeats, uint32(1))
			}

			again, err := Compress(Expand(patterns), l)
			require.NoError(t, err)
			require.Equal(t, patterns, again, "run %d window %d not idempotent", run, l)
		}
	}
}

func TestEvaluate(t *testing.T) {
	channels := [][]Element{
		repeat(8, on(1), off(1), on(2), off(2)),
		repeat(10, on(5), off(5)),
	}

	r := Evaluate(channels, []int{2, 4, 8}, 2)
	assert.Equal(t, 2, r.Given)
	assert.Equal(t, []int{2, 4, 8}, r.Windows())
	assert.Equal(t, 16+1, r.Counts[2])
	assert.Equal(t, 1+1, r.Counts[4])
	assert.Equal(t, 4, r.Optimal)
	assert.InDelta(t, 750.0, r.Savings(), 0.01)
}

func TestEvaluateIncludesGiven(t *testing.T) {
	r := Evaluate([][]Element{repeat(3, on(1), off(1), on(1))}, nil, 3)
	assert.Contains(t, r.Counts, 3)
	assert.Equal(t, 3, r.Optimal)
	assert.Zero(t, r.Savings())
}

func TestRequire(t *testing.T) {
	programs := []Program{
		{Channel: 1, Patterns: []Pattern{NewWait(off(10)), {ID: 1, EffectiveLength: 4, Repeats: 1}, {ID: 2, EffectiveLength: 2, Repeats: 3}}},
		{Channel: 3, Patterns: []Pattern{NewWait(on(10)), {ID: 1, EffectiveLength: 1, Repeats: 1}}},
	}
	assert.Equal(t, Requirement{MaxEffectiveLength: 4, MaxPatternsPerChannel: 2, MaxChannel: 3}, Require(programs))
}

func TestElementValidate(t *testing.T) {
	assert.NoError(t, Element{PulsePeriodMs: 1000, PulseWidthMs: 1000}.Validate())
	assert.ErrorIs(t, Element{PulsePeriodMs: 1000}.Validate(), ErrInvalidPulse)
	assert.ErrorIs(t, Element{PulseWidthMs: 10}.Validate(), ErrInvalidPulse)
	assert.ErrorIs(t, Element{PulsePeriodMs: 10, PulseWidthMs: 20}.Validate(), ErrInvalidPulse)
}

func TestCalibrate(t *testing.T) {
	in := []Element{{Status: true, DurationMs: 1000, PulsePeriodMs: 200, PulseWidthMs: 50}}
	out := Calibrate(in, 1.5)
	assert.Equal(t, Element{Status: true, DurationMs: 1500, PulsePeriodMs: 300, PulseWidthMs: 75}, out[0])
	assert.Equal(t, in, Calibrate(in, 1))
}

func TestCalibrateLimits(t *testing.T) {
	assert.Equal(t, uint32(math.MaxUint32), CalibrateMs(math.MaxUint32-10, 2))
	assert.Equal(t, uint32(math.MaxUint32), CalibrateMs(3_000_000_000, 1.5))

	out := Calibrate([]Element{{Status: true, DurationMs: 1, PulsePeriodMs: 10, PulseWidthMs: 1}}, 0.5)
	assert.Equal(t, Element{Status: true, DurationMs: 0, PulsePeriodMs: 5, PulseWidthMs: 1}, out[0])
	assert.NoError(t, out[0].Validate())

	out = Calibrate([]Element{{Status: true, DurationMs: 100, PulsePeriodMs: 1, PulseWidthMs: 1}}, 0.1)
	assert.NoError(t, out[0].Validate())
}

// normalize keeps comparisons stable between nil and empty slices.
func normalize(els []Element) []Element {
	if len(els) == 0 {
		return []Element{}
	}
	return els
}
