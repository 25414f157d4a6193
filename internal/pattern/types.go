package pattern

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidWindow = errors.New("window size must be at least 1")
	ErrInvalidPulse  = errors.New("invalid pulse parameters")
)

// WaitID is the pattern id reserved for the one-shot wait pattern.
const WaitID = 0

// Element is one timeline unit: a level held for DurationMs, optionally pulsed.
type Element struct {
	Status        bool   // Status - coarse output level.
	DurationMs    uint32 // DurationMs - dwell time in milliseconds.
	PulsePeriodMs uint32 // PulsePeriodMs - pulse period, 0 means no pulsing.
	PulseWidthMs  uint32 // PulseWidthMs - HIGH time inside each period.
}

// Pulsed reports whether the element modulates its dwell.
func (e Element) Pulsed() bool {
	return e.PulsePeriodMs > 0
}

// Validate checks the pulse invariants: both period and width set or neither,
// and width never longer than the period.
func (e Element) Validate() error {
	switch {
	case e.PulsePeriodMs == 0 && e.PulseWidthMs == 0:
		return nil
	case e.PulsePeriodMs > 0 && e.PulseWidthMs == 0:
		return fmt.Errorf("%w: period %d ms without pulse width", ErrInvalidPulse, e.PulsePeriodMs)
	case e.PulsePeriodMs == 0 && e.PulseWidthMs > 0:
		return fmt.Errorf("%w: pulse width %d ms without period", ErrInvalidPulse, e.PulseWidthMs)
	case e.PulseWidthMs > e.PulsePeriodMs:
		return fmt.Errorf("%w: width %d ms exceeds period %d ms", ErrInvalidPulse, e.PulseWidthMs, e.PulsePeriodMs)
	}
	return nil
}

// Pattern is a run of up to L elements replayed Repeats times.
// EffectiveLength is kept explicitly and never derived from a backing capacity.
type Pattern struct {
	ID              int
	Elements        []Element
	EffectiveLength int
	Repeats         uint32
}

// IsWait reports whether p carries the reserved wait id.
func (p Pattern) IsWait() bool {
	return p.ID == WaitID
}

// DurationMs is the time one pass through the pattern takes.
func (p Pattern) DurationMs() uint64 {
	var total uint64
	for _, e := range p.Elements[:p.EffectiveLength] {
		total += uint64(e.DurationMs)
	}
	return total
}

// NewWait builds the id 0 pattern that holds a channel until its start instant.
func NewWait(el Element) Pattern {
	return Pattern{
		ID:              WaitID,
		Elements:        []Element{el},
		EffectiveLength: 1,
		Repeats:         1,
	}
}

// Program is the ordered pattern list for one channel.
type Program struct {
	Channel  int
	Patterns []Pattern
}

// Capability is the fixed array sizing a device build reports in its greeting.
type Capability struct {
	MaxElementsPerPattern int
	MaxPatternsPerChannel int
	MaxChannels           int
}

// Requirement is what a session needs from a device, compared against a Capability.
type Requirement struct {
	MaxEffectiveLength    int
	MaxPatternsPerChannel int
	MaxChannel            int
}

// Require computes the requirement of a set of programs. Wait patterns count
// toward the element length but live in their own device slot, so they do not
// count toward the per-channel pattern total.
func Require(programs []Program) Requirement {
	var req Requirement
	for _, prog := range programs {
		if prog.Channel > req.MaxChannel {
			req.MaxChannel = prog.Channel
		}
		n := 0
		for _, p := range prog.Patterns {
			if p.EffectiveLength > req.MaxEffectiveLength {
				req.MaxEffectiveLength = p.EffectiveLength
			}
			if !p.IsWait() {
				n++
			}
		}
		if n > req.MaxPatternsPerChannel {
			req.MaxPatternsPerChannel = n
		}
	}
	return req
}
