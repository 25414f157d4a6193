package device

import (
	"sync"

	"lightctl/internal/logger"
)

// Edge is one level write seen by a Recorder.
type Edge struct {
	Channel int
	High    bool
	At      uint64
}

// Span is an interval during which a channel was HIGH.
type Span struct {
	From uint64
	To   uint64
}

// Recorder is an Output that keeps every write with its clock reading.
type Recorder struct {
	clock Clock
	mu    sync.Mutex
	edges []Edge
}

func NewRecorder(clock Clock) *Recorder {
	return &Recorder{clock: clock}
}

func (r *Recorder) Set(channel int, high bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edges = append(r.edges, Edge{Channel: channel, High: high, At: r.clock.Millis()})
}

// Edges returns all writes, in order.
func (r *Recorder) Edges() []Edge {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Edge, len(r.edges))
	copy(out, r.edges)
	return out
}

// Level returns the last level written to channel, LOW if none.
func (r *Recorder) Level(channel int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.edges) - 1; i >= 0; i-- {
		if r.edges[i].Channel == channel {
			return r.edges[i].High
		}
	}
	return false
}

// HighSpans folds the writes of channel into closed HIGH intervals. A span
// still open at the last write is not returned.
func (r *Recorder) HighSpans(channel int) []Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	var spans []Span
	high := false
	var from uint64
	for _, e := range r.edges {
		if e.Channel != channel {
			continue
		}
		switch {
		case e.High && !high:
			high, from = true, e.At
		case !e.High && high:
			high = false
			spans = append(spans, Span{From: from, To: e.At})
		}
	}
	return spans
}

// LogOutput writes level changes to the log at debug level.
type LogOutput struct {
	log *logger.Log
}

func NewLogOutput(log logger.Logger) *LogOutput {
	return &LogOutput{log: log.Module("output")}
}

func (o *LogOutput) Set(channel int, high bool) {
	o.log.With(logger.Fields{"channel": channel}).Debugf("level %v", high)
}

// MultiOutput fans one write out to several outputs.
type MultiOutput []Output

func (m MultiOutput) Set(channel int, high bool) {
	for _, o := range m {
		o.Set(channel, high)
	}
}
