// Package host turns channel timelines into device commands and delivers
// them: it compresses, encodes, checks the device capacity and transmits one
// command at a time.
package host

import (
	"fmt"
	"math"
	"sort"
	"time"

	"lightctl/internal/pattern"
	"lightctl/internal/wire"
)

// WaitSpec is the level a channel holds until its start instant.
type WaitSpec struct {
	Status        bool
	PulsePeriodMs uint32
	PulseWidthMs  uint32
}

// ChannelInput is one channel as supplied by a timeline loader.
type ChannelInput struct {
	Channel  int
	Elements []pattern.Element

	// Start instant. StartAt wins when both are set; with neither the
	// channel starts as soon as the session ends.
	StartAt    time.Time
	StartAfter time.Duration

	// Wait is nil when the channel should not get a wait pattern.
	Wait *WaitSpec
}

// PlanOptions tune BuildPlan.
type PlanOptions struct {
	Window      int
	Candidates  []int
	CalibFactor float64
	Now         time.Time
}

// ChannelPlan is everything planned for one channel.
type ChannelPlan struct {
	Channel    int
	Wait       *pattern.Pattern
	Patterns   []pattern.Pattern
	Commands   []string // Commands - wire lines in send order, wait first.
	DurationMs uint64   // DurationMs - wait plus pattern time.
}

// Program returns the channel program in execution order.
func (c ChannelPlan) Program() pattern.Program {
	prog := pattern.Program{Channel: c.Channel}
	if c.Wait != nil {
		prog.Patterns = append(prog.Patterns, *c.Wait)
	}
	prog.Patterns = append(prog.Patterns, c.Patterns...)
	return prog
}

// Plan is a compiled session, ready for the capacity gate and transmission.
type Plan struct {
	Window      int
	CalibFactor float64
	CreatedAt   time.Time
	Channels    []ChannelPlan
	Requirement pattern.Requirement
	Report      pattern.Report
}

// Programs returns every channel program.
func (p *Plan) Programs() []pattern.Program {
	out := make([]pattern.Program, len(p.Channels))
	for i, c := range p.Channels {
		out[i] = c.Program()
	}
	return out
}

// Commands returns every wire line of the plan in send order.
func (p *Plan) Commands() []string {
	var out []string
	for _, c := range p.Channels {
		out = append(out, c.Commands...)
	}
	return out
}

// UsesPulse reports whether any element, wait included, is pulse modulated.
func (p *Plan) UsesPulse() bool {
	for _, prog := range p.Programs() {
		for _, pat := range prog.Patterns {
			for _, e := range pat.Elements[:pat.EffectiveLength] {
				if e.PulsePeriodMs > 0 {
					return true
				}
			}
		}
	}
	return false
}

// PatternCount is the number of regular patterns across all channels.
func (p *Plan) PatternCount() int {
	n := 0
	for _, c := range p.Channels {
		n += len(c.Patterns)
	}
	return n
}

// BuildPlan calibrates, compresses and encodes every channel. Channels are
// ordered by number. Nothing is sent.
func BuildPlan(inputs []ChannelInput, opts PlanOptions) (*Plan, error) {
	if len(inputs) == 0 {
		return nil, ErrNoChannels
	}
	if opts.Window < 1 {
		return nil, pattern.ErrInvalidWindow
	}
	if opts.CalibFactor <= 0 {
		opts.CalibFactor = 1
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	sorted := make([]ChannelInput, len(inputs))
	copy(sorted, inputs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Channel < sorted[j].Channel })

	plan := &Plan{
		Window:      opts.Window,
		CalibFactor: opts.CalibFactor,
		CreatedAt:   opts.Now,
	}
	calibrated := make([][]pattern.Element, 0, len(sorted))

	for i, in := range sorted {
		if in.Channel < 1 {
			return nil, fmt.Errorf("channel %d: %w", in.Channel, ErrInvalidChannel)
		}
		if i > 0 && sorted[i-1].Channel == in.Channel {
			return nil, fmt.Errorf("channel %d listed twice: %w", in.Channel, ErrInvalidChannel)
		}
		if len(in.Elements) == 0 {
			return nil, fmt.Errorf("channel %d: %w", in.Channel, ErrEmptyTimeline)
		}
		for j, e := range in.Elements {
			if err := e.Validate(); err != nil {
				return nil, fmt.Errorf("channel %d element %d: %w", in.Channel, j, err)
			}
		}

		elements := pattern.Calibrate(in.Elements, opts.CalibFactor)
		for j, e := range elements {
			if err := e.Validate(); err != nil {
				return nil, fmt.Errorf("channel %d element %d after calibration: %w", in.Channel, j, err)
			}
		}
		calibrated = append(calibrated, elements)

		cp, err := planChannel(in, elements, opts)
		if err != nil {
			return nil, err
		}
		plan.Channels = append(plan.Channels, cp)
	}

	plan.Requirement = pattern.Require(plan.Programs())
	plan.Report = pattern.Evaluate(calibrated, opts.Candidates, opts.Window)
	return plan, nil
}

func planChannel(in ChannelInput, elements []pattern.Element, opts PlanOptions) (ChannelPlan, error) {
	cp := ChannelPlan{Channel: in.Channel}

	if in.Wait != nil {
		countdown, err := countdownMs(in, opts.Now)
		if err != nil {
			return cp, err
		}
		el := pattern.Element{
			Status:        in.Wait.Status,
			DurationMs:    pattern.CalibrateMs(countdown, opts.CalibFactor),
			PulsePeriodMs: in.Wait.PulsePeriodMs,
			PulseWidthMs:  in.Wait.PulseWidthMs,
		}
		if err := el.Validate(); err != nil {
			return cp, fmt.Errorf("channel %d wait: %w", in.Channel, err)
		}
		wait := pattern.NewWait(el)
		line, err := wire.EncodeWait(in.Channel, wait)
		if err != nil {
			return cp, err
		}
		cp.Wait = &wait
		cp.Commands = append(cp.Commands, line)
		cp.DurationMs += wait.DurationMs()
	}

	patterns, err := pattern.Compress(elements, opts.Window)
	if err != nil {
		return cp, err
	}
	for _, p := range patterns {
		line, err := wire.EncodePattern(in.Channel, p)
		if err != nil {
			return cp, err
		}
		cp.Commands = append(cp.Commands, line)
	}
	cp.Patterns = patterns
	cp.DurationMs += pattern.TotalDurationMs(patterns)
	return cp, nil
}

// countdownMs is the time left until the channel start, never negative.
func countdownMs(in ChannelInput, now time.Time) (uint32, error) {
	d := in.StartAfter
	if !in.StartAt.IsZero() {
		d = in.StartAt.Sub(now)
	}
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	if ms > math.MaxUint32 {
		return 0, fmt.Errorf("channel %d starts in %v: %w", in.Channel, d, ErrStartOutOfRange)
	}
	return uint32(ms), nil
}
