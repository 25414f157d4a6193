package pattern

import (
	"math"
	"sort"
)

// Compress turns an element sequence into consecutive (window, repeats) patterns.
//
// The sequence is scanned in non-overlapping windows of width L. Each window is
// compared with the windows that follow it, and the maximal run of identical
// windows becomes one pattern. A tail shorter than L is emitted once as it is,
// never padded. Pattern ids start at 1; id 0 belongs to the wait pattern.
func Compress(elements []Element, l int) ([]Pattern, error) {
	if l < 1 {
		return nil, ErrInvalidWindow
	}

	var patterns []Pattern
	for i := 0; i < len(elements); {
		if len(elements)-i < l {
			patterns = append(patterns, newPattern(len(patterns)+1, elements[i:], 1))
			break
		}

		window := elements[i : i+l]
		k := 1
		j := i + l
		for j+l <= len(elements) && equalWindow(window, elements[j:j+l]) {
			k++
			j += l
		}
		patterns = append(patterns, newPattern(len(patterns)+1, window, uint32(k)))
		i = j
	}
	return patterns, nil
}

// Expand re-expands patterns into the element sequence they encode.
func Expand(patterns []Pattern) []Element {
	var out []Element
	for _, p := range patterns {
		for r := uint32(0); r < p.Repeats; r++ {
			out = append(out, p.Elements[:p.EffectiveLength]...)
		}
	}
	return out
}

// TotalDurationMs sums every element dwell of the expanded patterns.
func TotalDurationMs(patterns []Pattern) uint64 {
	var total uint64
	for _, p := range patterns {
		total += p.DurationMs() * uint64(p.Repeats)
	}
	return total
}

// Calibrate multiplies every duration, pulse period and width by factor,
// truncating to whole milliseconds. Factors of exactly 1 or not above 0 leave
// the input unchanged. A pulse value that was set never calibrates to 0.
func Calibrate(elements []Element, factor float64) []Element {
	if factor <= 0 || factor == 1 {
		return elements
	}
	out := make([]Element, len(elements))
	for i, e := range elements {
		out[i] = Element{
			Status:        e.Status,
			DurationMs:    CalibrateMs(e.DurationMs, factor),
			PulsePeriodMs: calibratePulse(e.PulsePeriodMs, factor),
			PulseWidthMs:  calibratePulse(e.PulseWidthMs, factor),
		}
	}
	return out
}

// CalibrateMs applies factor to a single millisecond value, saturating at
// math.MaxUint32.
func CalibrateMs(ms uint32, factor float64) uint32 {
	if factor <= 0 {
		return ms
	}
	v := float64(ms) * factor
	if v >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}

func calibratePulse(ms uint32, factor float64) uint32 {
	v := CalibrateMs(ms, factor)
	if ms > 0 && v == 0 {
		return 1
	}
	return v
}

// Report is the advisory outcome of evaluating several window sizes.
type Report struct {
	Counts  map[int]int // Counts - total patterns per window size.
	Optimal int         // Optimal - window size with the fewest patterns.
	Given   int         // Given - window size the caller chose.
}

// Windows returns the evaluated window sizes in ascending order.
func (r Report) Windows() []int {
	ws := make([]int, 0, len(r.Counts))
	for w := range r.Counts {
		ws = append(ws, w)
	}
	sort.Ints(ws)
	return ws
}

// Savings is the relative pattern reduction the optimal window would give over
// the given one, in percent. Zero when the given window is already optimal.
func (r Report) Savings() float64 {
	given, ok := r.Counts[r.Given]
	best := r.Counts[r.Optimal]
	if !ok || best == 0 || given <= best {
		return 0
	}
	return float64(given-best) / float64(best) * 100
}

// DefaultCandidates are the window sizes evaluated when none are configured.
var DefaultCandidates = []int{2, 4, 8}

// Evaluate compresses every channel with each candidate window and reports the
// total pattern count per window. Ties go to the smaller window. The given
// window is always evaluated. The report never changes what the caller uses.
func Evaluate(channels [][]Element, candidates []int, given int) Report {
	if len(candidates) == 0 {
		candidates = DefaultCandidates
	}
	r := Report{Counts: make(map[int]int), Given: given}

	ws := append([]int{}, candidates...)
	if given >= 1 {
		ws = append(ws, given)
	}
	for _, w := range ws {
		if _, done := r.Counts[w]; done || w < 1 {
			continue
		}
		total := 0
		for _, elements := range channels {
			patterns, _ := Compress(elements, w)
			total += len(patterns)
		}
		r.Counts[w] = total
	}

	r.Optimal = given
	for _, w := range r.Windows() {
		if best, ok := r.Counts[r.Optimal]; !ok || r.Counts[w] < best || (r.Counts[w] == best && w < r.Optimal) {
			r.Optimal = w
		}
	}
	return r
}

func newPattern(id int, window []Element, repeats uint32) Pattern {
	elements := make([]Element, len(window))
	copy(elements, window)
	return Pattern{
		ID:              id,
		Elements:        elements,
		EffectiveLength: len(elements),
		Repeats:         repeats,
	}
}

func equalWindow(a, b []Element) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
