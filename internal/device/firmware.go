package device

import (
	"context"
	"errors"
	"strings"
	"time"

	"lightctl/internal/link"
	"lightctl/internal/logger"
	"lightctl/internal/pattern"
	"lightctl/internal/wire"
)

// Firmware is the device side of a session: it answers the greeting, stores
// pattern commands, and starts the scheduler when the host says Bye.
// Handle and Tick must be called from one goroutine.
type Firmware struct {
	log    *logger.Log
	store  *Store
	sched  *Scheduler
	opts   Options
	closed bool
}

// Options are the build-time features of the device.
type Options struct {
	Legacy  bool // Legacy - answer the greeting without capacities.
	NoPulse bool // NoPulse - built without pulse support, PULSE fields are ignored.
}

// NewFirmware creates a device with the given compiled capacity. out and
// observe may be nil.
func NewFirmware(log logger.Logger, c pattern.Capability, opts Options, out Output, observe Observer) *Firmware {
	store := NewStore(c)
	return &Firmware{
		log:   log.Module("device"),
		store: store,
		sched: NewScheduler(store, out, observe),
		opts:  opts,
	}
}

func (f *Firmware) Store() *Store {
	return f.store
}

func (f *Firmware) Scheduler() *Scheduler {
	return f.sched
}

// Accepting reports whether pattern commands are still taken.
func (f *Firmware) Accepting() bool {
	return !f.closed
}

// Handle processes one received line and returns the lines to send back, in
// order. now is the clock reading of the current loop iteration.
func (f *Firmware) Handle(line string, now uint64) []string {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	switch {
	case line == wire.Greeting:
		if f.opts.Legacy {
			return []string{wire.FormatSalve(nil)}
		}
		c := f.store.Capability()
		return []string{wire.FormatSalve(&c)}

	case line == wire.GetMemory:
		used, total := f.store.Footprint()
		mem := wire.MemoryReport{Free: total - used, Total: total, PulseMode: true, PulseCompile: wire.PulseCompileDynamic}
		if f.opts.NoPulse {
			mem.PulseMode, mem.PulseCompile = false, wire.PulseCompileNever
		}
		return []string{wire.FormatMemory(mem)}

	case line == wire.Bye:
		if f.closed {
			return []string{wire.Arrivederci}
		}
		f.closed = true
		f.sched.Start(now)
		f.log.Infof("reception closed, scheduler started at %d ms", now)
		return []string{wire.Arrivederci}

	case wire.IsPattern(line):
		if f.closed {
			f.log.Warnf("pattern after Bye ignored: %s", line)
			return []string{wire.Warn("not accepting patterns after Bye")}
		}
		cmd, err := wire.ParsePattern(line)
		if err != nil {
			f.log.Warnf("unreadable command: %v", err)
			return []string{wire.Warn("%v", err)}
		}
		var replies []string
		if f.opts.NoPulse && cmd.HasPulse {
			if pulsed(cmd.Pulse) {
				f.log.Warnf("pattern %d on channel %d: pulse parameters ignored", cmd.ID, cmd.Channel)
				replies = append(replies, wire.Warn("pattern %d on channel %d: pulse parameters ignored, built without pulse support",
					cmd.ID, cmd.Channel))
			}
			cmd.HasPulse, cmd.Pulse = false, nil
		}
		for _, d := range f.store.Apply(cmd) {
			f.log.With(logger.Fields{"channel": d.Channel, "kind": d.Kind.String()}).Warn(d.Message)
			replies = append(replies, wire.Warn("%s", d.Message))
		}
		f.log.Debugf("stored pattern %d on channel %d", cmd.ID, cmd.Channel)
		return append(replies, line)

	default:
		f.log.Warnf("unknown command: %q", line)
		return []string{wire.Warn("unknown command %q", line)}
	}
}

func pulsed(ps []wire.Pulse) bool {
	for _, p := range ps {
		if p.PeriodMs > 0 || p.WidthMs > 0 {
			return true
		}
	}
	return false
}

// Tick runs one scheduler step. It returns false once every channel completed.
func (f *Firmware) Tick(now uint64) bool {
	return f.sched.Tick(now)
}

// Done reports whether the program has finished on every channel.
func (f *Firmware) Done() bool {
	return f.sched.Done()
}

// Run is the device main loop. One goroutine reads the link; this loop alone
// touches the store and the scheduler, reading the clock once per iteration.
// It returns nil when every started channel completed, or the context error.
func (f *Firmware) Run(ctx context.Context, l link.Link, clock Clock, tick time.Duration) error {
	if tick <= 0 {
		tick = time.Millisecond
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := link.Lines(ctx, l)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case line, ok := <-lines:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}
				// The host may hang up after Bye; keep running the program.
				lines = nil
				if !f.sched.Started() {
					return link.ErrClosed
				}
				continue
			}
			for _, reply := range f.Handle(line, clock.Millis()) {
				if err := l.Send(reply); err != nil && !errors.Is(err, link.ErrClosed) {
					f.log.Errorf("send reply: %v", err)
				}
			}

		case <-ticker.C:
			if !f.sched.Started() {
				continue
			}
			if !f.Tick(clock.Millis()) {
				f.log.Info("all channels completed")
				return nil
			}
		}
	}
}
