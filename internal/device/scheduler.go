package device

import "lightctl/internal/pattern"

// Phase is the lifecycle position of one channel.
type Phase int

const (
	WaitingForProgram Phase = iota
	Running
	Completed
)

func (p Phase) String() string {
	switch p {
	case WaitingForProgram:
		return "waiting"
	case Running:
		return "running"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// EventKind names a scheduler transition.
type EventKind int

const (
	EventStart EventKind = iota + 1
	EventAdvanceElement
	EventRestartPattern
	EventAdvancePattern
	EventComplete
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventAdvanceElement:
		return "advance-element"
	case EventRestartPattern:
		return "restart-pattern"
	case EventAdvancePattern:
		return "advance-pattern"
	case EventComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Event reports a transition of one channel.
type Event struct {
	Channel  int
	Kind     EventKind
	Sequence int
	Element  int
	Repeat   uint32
	At       uint64
}

// Output receives channel levels. Channels are 1-based.
type Output interface {
	Set(channel int, high bool)
}

// Observer is notified of every transition, in tick order.
type Observer func(Event)

// ChannelState is the runtime position of one channel.
type ChannelState struct {
	Phase         Phase
	SequenceIndex int
	ElementIndex  int
	RepeatCount   uint32
	NextDeadline  uint64
	Active        bool

	dwellStart uint64
	current    pattern.Element
	level      bool
}

// stateBytes approximates ChannelState on a 32-bit controller.
const stateBytes = 4 + 4 + 4 + 4 + 4 + 4 + 1 + 1

// Scheduler replays stored programs. It is single-threaded: Start and Tick
// must be called from one loop, each with one clock read shared by all
// channels. Nothing in it blocks.
type Scheduler struct {
	store    *Store
	out      Output
	observe  Observer
	channels []ChannelState
	started  bool
	halted   bool
	budget   int // budget - advances one channel may make per tick.
}

// NewScheduler creates a scheduler over store. out and observe may be nil.
func NewScheduler(store *Store, out Output, observe Observer) *Scheduler {
	c := store.Capability()
	return &Scheduler{
		store:    store,
		out:      out,
		observe:  observe,
		channels: make([]ChannelState, c.MaxChannels),
		budget:   max(1, c.MaxElementsPerPattern*(c.MaxPatternsPerChannel+1)),
	}
}

// Start activates every channel that received a program and applies its
// first element. Calling it again has no effect.
func (s *Scheduler) Start(now uint64) {
	if s.started {
		return
	}
	s.started = true

	for i := range s.channels {
		ch := i + 1
		st := &s.channels[i]
		if !s.store.Received(ch) {
			continue
		}
		st.Phase = Running
		st.Active = true
		s.emit(ch, EventStart, st, now)
		s.enter(ch, st, now)
	}
	s.halted = s.Done()
}

// Tick advances every active channel whose deadline has passed and refreshes
// pulse levels. It returns false once every channel has completed.
func (s *Scheduler) Tick(now uint64) bool {
	if !s.started || s.halted {
		return !s.halted
	}

	for i := range s.channels {
		st := &s.channels[i]
		if !st.Active {
			continue
		}
		ch := i + 1
		// remaining advances are carried to the next tick
		for n := 0; st.Active && now >= st.NextDeadline && n < s.budget; n++ {
			s.advance(ch, st, now)
		}
		if st.Active {
			s.write(ch, st, pulseLevel(st.current, st.dwellStart, now))
		}
	}

	if s.Done() {
		s.halted = true
		return false
	}
	return true
}

// Done reports whether no channel is active. A scheduler that was never
// started is not done.
func (s *Scheduler) Done() bool {
	if !s.started {
		return false
	}
	for i := range s.channels {
		if s.channels[i].Active {
			return false
		}
	}
	return true
}

// Started reports whether Start has been called.
func (s *Scheduler) Started() bool {
	return s.started
}

// State returns a copy of channel ch's runtime state.
func (s *Scheduler) State(ch int) ChannelState {
	if ch < 1 || ch > len(s.channels) {
		return ChannelState{}
	}
	return s.channels[ch-1]
}

// Level returns the level last written for channel ch.
func (s *Scheduler) Level(ch int) bool {
	return s.State(ch).level
}

func (s *Scheduler) advance(ch int, st *ChannelState, now uint64) {
	p := s.store.slot(ch, st.SequenceIndex)

	st.ElementIndex++
	kind := EventAdvanceElement
	if st.ElementIndex >= p.length {
		st.ElementIndex = 0
		st.RepeatCount++
		kind = EventRestartPattern

		if st.RepeatCount >= p.repeats {
			st.SequenceIndex++
			st.RepeatCount = 0
			kind = EventAdvancePattern

			if st.SequenceIndex >= s.store.Len(ch) {
				st.Active = false
				st.Phase = Completed
				s.write(ch, st, false)
				s.emit(ch, EventComplete, st, now)
				return
			}
		}
	}

	s.emit(ch, kind, st, now)
	s.enter(ch, st, now)
}

// enter applies the element at the channel's current position.
func (s *Scheduler) enter(ch int, st *ChannelState, now uint64) {
	p := s.store.slot(ch, st.SequenceIndex)
	st.current = p.element(st.ElementIndex)
	st.dwellStart = now
	st.NextDeadline = now + uint64(st.current.DurationMs)
	s.write(ch, st, pulseLevel(st.current, now, now))
}

func (s *Scheduler) write(ch int, st *ChannelState, level bool) {
	if level == st.level && st.Phase != Completed {
		return
	}
	st.level = level
	if s.out != nil {
		s.out.Set(ch, level)
	}
}

func (s *Scheduler) emit(ch int, kind EventKind, st *ChannelState, now uint64) {
	if s.observe == nil {
		return
	}
	s.observe(Event{
		Channel:  ch,
		Kind:     kind,
		Sequence: st.SequenceIndex,
		Element:  st.ElementIndex,
		Repeat:   st.RepeatCount,
		At:       now,
	})
}
