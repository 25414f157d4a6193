package device

import (
	"fmt"

	"lightctl/internal/pattern"
	"lightctl/internal/wire"
)

// DiagnosticKind classifies a problem the store recovered from.
type DiagnosticKind int

const (
	MalformedCommand DiagnosticKind = iota + 1
	OverLengthPattern
	Coerced
	Dropped
)

func (k DiagnosticKind) String() string {
	switch k {
	case MalformedCommand:
		return "malformed-command"
	case OverLengthPattern:
		return "over-length-pattern"
	case Coerced:
		return "coerced"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Diagnostic is a recovered data error, reported best-effort and never fatal.
type Diagnostic struct {
	Kind    DiagnosticKind
	Channel int
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

// slot is one pattern in the arena. The element arrays are sized to the
// compiled capacity once; length says how many of them are meaningful.
type slot struct {
	id      int
	status  []bool
	timeMs  []uint32
	period  []uint32
	width   []uint32
	length  int
	repeats uint32
}

func newSlot(capacity int) slot {
	return slot{
		status: make([]bool, capacity),
		timeMs: make([]uint32, capacity),
		period: make([]uint32, capacity),
		width:  make([]uint32, capacity),
	}
}

func (s *slot) element(i int) pattern.Element {
	return pattern.Element{
		Status:        s.status[i],
		DurationMs:    s.timeMs[i],
		PulsePeriodMs: s.period[i],
		PulseWidthMs:  s.width[i],
	}
}

// channelProgram is the wait slot plus the ordered pattern slots of a channel.
type channelProgram struct {
	wait     slot
	hasWait  bool
	slots    []slot
	count    int
	received bool
}

// Store is the fixed-capacity pattern memory of the device. Every array is
// allocated by NewStore; Apply only writes into them and never grows them.
// It is written during reception and read-only during execution.
type Store struct {
	capability pattern.Capability
	channels   []channelProgram
}

// NewStore allocates the arena for the given capability.
func NewStore(c pattern.Capability) *Store {
	s := &Store{
		capability: c,
		channels:   make([]channelProgram, c.MaxChannels),
	}
	for i := range s.channels {
		ch := &s.channels[i]
		ch.wait = newSlot(c.MaxElementsPerPattern)
		ch.slots = make([]slot, c.MaxPatternsPerChannel)
		for j := range ch.slots {
			ch.slots[j] = newSlot(c.MaxElementsPerPattern)
		}
	}
	return s
}

// Capability returns the compiled sizing.
func (s *Store) Capability() pattern.Capability {
	return s.capability
}

// Apply stores a decoded command, reconciling list lengths and capacity.
// Problems are recovered locally and returned as diagnostics.
func (s *Store) Apply(cmd wire.Command) []Diagnostic {
	var diags []Diagnostic
	warn := func(kind DiagnosticKind, format string, args ...interface{}) {
		diags = append(diags, Diagnostic{Kind: kind, Channel: cmd.Channel, Message: fmt.Sprintf(format, args...)})
	}

	if cmd.Channel < 1 || cmd.Channel > len(s.channels) {
		warn(Dropped, "channel %d outside 1..%d, pattern %d ignored", cmd.Channel, len(s.channels), cmd.ID)
		return diags
	}

	length := len(cmd.Status)
	if len(cmd.TimeMs) != length {
		length = min(len(cmd.Status), len(cmd.TimeMs))
		warn(MalformedCommand, "pattern %d on channel %d: %d STATUS vs %d TIME_MS values, using %d",
			cmd.ID, cmd.Channel, len(cmd.Status), len(cmd.TimeMs), length)
	}
	if cmd.HasPulse && len(cmd.Pulse) != length {
		n := min(length, len(cmd.Pulse))
		warn(MalformedCommand, "pattern %d on channel %d: %d PULSE values for %d elements, using %d",
			cmd.ID, cmd.Channel, len(cmd.Pulse), length, n)
		length = n
	}
	if length > s.capability.MaxElementsPerPattern {
		warn(OverLengthPattern, "pattern %d on channel %d: length %d exceeds capacity %d, truncated",
			cmd.ID, cmd.Channel, length, s.capability.MaxElementsPerPattern)
		length = s.capability.MaxElementsPerPattern
	}
	if length == 0 {
		warn(Dropped, "pattern %d on channel %d has no elements, ignored", cmd.ID, cmd.Channel)
		return diags
	}

	repeats := cmd.Repeats
	if repeats == 0 {
		warn(Coerced, "pattern %d on channel %d: repeats 0 raised to 1", cmd.ID, cmd.Channel)
		repeats = 1
	}
	if repeats > 1 && zeroDwell(cmd.TimeMs[:length]) {
		warn(Coerced, "pattern %d on channel %d: zero total duration, repeats %d forced to 1", cmd.ID, cmd.Channel, repeats)
		repeats = 1
	}

	ch := &s.channels[cmd.Channel-1]
	var dst *slot
	if cmd.IsWait() {
		if repeats != 1 {
			warn(Coerced, "wait pattern on channel %d: repeats %d forced to 1", cmd.Channel, repeats)
			repeats = 1
		}
		if ch.hasWait {
			warn(Coerced, "wait pattern on channel %d replaced", cmd.Channel)
		}
		dst = &ch.wait
		ch.hasWait = true
	} else {
		if ch.count >= len(ch.slots) {
			warn(Dropped, "channel %d already holds %d patterns, pattern %d ignored", cmd.Channel, len(ch.slots), cmd.ID)
			return diags
		}
		if want := ch.count + 1; cmd.ID != want {
			warn(Coerced, "channel %d: pattern id %d received in position %d", cmd.Channel, cmd.ID, want)
		}
		dst = &ch.slots[ch.count]
		ch.count++
	}

	clamped := false
	for i := 0; i < length; i++ {
		dst.status[i] = cmd.Status[i]
		dst.timeMs[i] = cmd.TimeMs[i]
		dst.period[i], dst.width[i] = 0, 0
		if i < len(cmd.Pulse) {
			p := cmd.Pulse[i]
			if p.WidthMs > p.PeriodMs {
				p.WidthMs = p.PeriodMs
				clamped = true
			}
			dst.period[i], dst.width[i] = p.PeriodMs, p.WidthMs
		}
	}
	if clamped {
		warn(Coerced, "pattern %d on channel %d: pulse width clamped to period", cmd.ID, cmd.Channel)
	}
	dst.id = cmd.ID
	dst.length = length
	dst.repeats = repeats
	ch.received = true

	return diags
}

func zeroDwell(timeMs []uint32) bool {
	for _, ms := range timeMs {
		if ms > 0 {
			return false
		}
	}
	return true
}

// Received reports whether channel ch (1-based) holds at least one pattern.
func (s *Store) Received(ch int) bool {
	if ch < 1 || ch > len(s.channels) {
		return false
	}
	return s.channels[ch-1].received
}

// Len is the number of patterns channel ch will execute, wait included.
func (s *Store) Len(ch int) int {
	if !s.Received(ch) {
		return 0
	}
	c := &s.channels[ch-1]
	if c.hasWait {
		return c.count + 1
	}
	return c.count
}

// Pattern returns a copy of the seq-th pattern in execution order.
func (s *Store) Pattern(ch, seq int) (pattern.Pattern, bool) {
	sl := s.slot(ch, seq)
	if sl == nil {
		return pattern.Pattern{}, false
	}
	p := pattern.Pattern{
		ID:              sl.id,
		Elements:        make([]pattern.Element, sl.length),
		EffectiveLength: sl.length,
		Repeats:         sl.repeats,
	}
	for i := range p.Elements {
		p.Elements[i] = sl.element(i)
	}
	return p, true
}

// Program returns the stored program of channel ch in execution order.
func (s *Store) Program(ch int) pattern.Program {
	prog := pattern.Program{Channel: ch}
	for seq := 0; seq < s.Len(ch); seq++ {
		p, _ := s.Pattern(ch, seq)
		prog.Patterns = append(prog.Patterns, p)
	}
	return prog
}

// slot maps an execution position to its slot; the wait slot runs first.
func (s *Store) slot(ch, seq int) *slot {
	if seq < 0 || seq >= s.Len(ch) {
		return nil
	}
	c := &s.channels[ch-1]
	if c.hasWait {
		if seq == 0 {
			return &c.wait
		}
		seq--
	}
	return &c.slots[seq]
}

// Footprint estimates the bytes the arena and runtime state occupy and how
// many of them currently hold received patterns.
func (s *Store) Footprint() (used, total int) {
	const perElement = 1 + 4 + 4 + 4
	const perSlot = 4 + 4 + 4
	slotBytes := perSlot + s.capability.MaxElementsPerPattern*perElement
	for i := range s.channels {
		c := &s.channels[i]
		total += (len(c.slots) + 1) * slotBytes
		used += c.count * slotBytes
		if c.hasWait {
			used += slotBytes
		}
	}
	total += len(s.channels) * stateBytes
	used += len(s.channels) * stateBytes
	return used, total
}
