package host

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lightctl/internal/link"
	"lightctl/internal/logger"
	"lightctl/internal/monitor"
	"lightctl/internal/record"
	"lightctl/internal/wire"
)

// Session states reported to the journal and the monitor.
const (
	StateHandshake    = "handshake"
	StateTransmitting = "transmitting"
	StateRunning      = "running"
	StateFailed       = "failed"
)

// SessionOptions configure one transmission.
type SessionOptions struct {
	HandshakeTimeout time.Duration
	AckTimeout       time.Duration
	QueryMemory      bool // QueryMemory - ask for GET_MEMORY before transmitting, always done for pulsed plans.
}

// Result summarises a finished session.
type Result struct {
	Handshake HandshakeResult
	Verified  bool
	Sent      int
	Warnings  []string
	Memory    *wire.MemoryReport
}

// Session delivers one plan over a link. Only one command is in flight at a
// time: each line waits for the device echo before the next is sent.
type Session struct {
	ID   string
	log  *logger.Log
	link link.Link
	opts SessionOptions
	rec  record.Recorder
	pub  monitor.Publisher
}

// NewSession creates a session. rec and pub may be nil.
func NewSession(log logger.Logger, l link.Link, opts SessionOptions, rec record.Recorder, pub monitor.Publisher) *Session {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = 5 * time.Second
	}
	if rec == nil {
		rec = record.Nop{}
	}
	if pub == nil {
		pub = monitor.Nop{}
	}
	id := uuid.NewString()
	s := &Session{
		ID:   id,
		opts: opts,
		rec:  rec,
		pub:  pub,
	}
	s.log = log.With(logger.Fields{"module": "session", "session": id[:8]})
	s.link = &recordedLink{Link: l, s: s}
	return s
}

// Run performs handshake, capacity gate, pulse mode check, transmission and
// Bye. If any of the checks fail no PATTERN line has been sent.
func (s *Session) Run(ctx context.Context, plan *Plan) (Result, error) {
	var res Result
	if plan == nil || len(plan.Channels) == 0 {
		return res, ErrNoChannels
	}

	s.state(StateHandshake)
	hs, err := Handshake(ctx, s.link, s.opts.HandshakeTimeout, s.log)
	res.Handshake = hs
	if err != nil {
		return res, s.fail(err)
	}

	res.Verified, err = CheckCapacity(plan.Requirement, hs)
	if err != nil {
		return res, s.fail(err)
	}
	if res.Verified {
		s.log.Infof("capacity verified: length %d, %d patterns per channel, channel %d",
			plan.Requirement.MaxEffectiveLength, plan.Requirement.MaxPatternsPerChannel, plan.Requirement.MaxChannel)
	}

	if !hs.Legacy && (s.opts.QueryMemory || plan.UsesPulse()) {
		mem, err := s.queryMemory(ctx)
		if err != nil {
			s.log.Warnf("memory report unavailable, pulse mode not checked: %v", err)
		} else {
			res.Memory = &mem
			s.log.Infof("device memory: %d of %d bytes used, pulse mode %v (%s)",
				mem.Used(), mem.Total, mem.PulseMode, mem.PulseCompile)
			if plan.UsesPulse() && !mem.PulseMode {
				return res, s.fail(ErrPulseUnsupported)
			}
		}
	}

	s.state(StateTransmitting)
	for _, ch := range plan.Channels {
		s.pub.PublishCommands(s.ID, ch.Channel, ch.Commands)
		for _, line := range ch.Commands {
			warnings, err := s.exchange(ctx, line, line)
			res.Warnings = append(res.Warnings, warnings...)
			if err != nil {
				return res, s.fail(err)
			}
			res.Sent++
		}
		s.log.Debugf("channel %d sent: %d commands", ch.Channel, len(ch.Commands))
	}

	warnings, err := s.exchange(ctx, wire.Bye, wire.Arrivederci)
	res.Warnings = append(res.Warnings, warnings...)
	if err != nil {
		return res, s.fail(err)
	}

	s.state(StateRunning)
	s.log.Infof("session complete: %d commands, %d device warnings", res.Sent, len(res.Warnings))
	return res, nil
}

// exchange sends line and waits for want, collecting diagnostics on the way.
func (s *Session) exchange(ctx context.Context, line, want string) ([]string, error) {
	if err := s.link.Send(line); err != nil {
		return nil, fmt.Errorf("send %q: %w", line, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.AckTimeout)
	defer cancel()

	var warnings []string
	for {
		reply, err := s.link.Recv(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return warnings, fmt.Errorf("%w: %q", ErrAckTimeout, line)
			}
			return warnings, err
		}
		if wire.IsDiagnostic(reply) {
			s.log.Warnf("device: %s", reply)
			warnings = append(warnings, reply)
			continue
		}
		if reply != want {
			return warnings, fmt.Errorf("%w: sent %q, got %q", ErrAckMismatch, line, reply)
		}
		return warnings, nil
	}
}

func (s *Session) queryMemory(ctx context.Context) (wire.MemoryReport, error) {
	if err := s.link.Send(wire.GetMemory); err != nil {
		return wire.MemoryReport{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.AckTimeout)
	defer cancel()
	for {
		reply, err := s.link.Recv(ctx)
		if err != nil {
			return wire.MemoryReport{}, err
		}
		if wire.IsDiagnostic(reply) {
			continue
		}
		return wire.ParseMemory(reply)
	}
}

func (s *Session) state(state string) {
	s.log.Debugf("state: %s", state)
	s.rec.Record(record.Entry{Timestamp: time.Now(), SessionID: s.ID, Kind: record.KindState, State: state})
	s.pub.PublishState(s.ID, state)
}

func (s *Session) fail(err error) error {
	s.log.Errorf("session aborted: %v", err)
	s.rec.Record(record.Entry{Timestamp: time.Now(), SessionID: s.ID, Kind: record.KindError, Error: err.Error()})
	s.state(StateFailed)
	return err
}

// recordedLink journals every line crossing the link.
type recordedLink struct {
	link.Link
	s *Session
}

func (r *recordedLink) Send(line string) error {
	r.s.rec.Record(record.Entry{Timestamp: time.Now(), SessionID: r.s.ID, Kind: record.KindLine, Direction: record.DirectionOut, Line: line})
	return r.Link.Send(line)
}

func (r *recordedLink) Recv(ctx context.Context) (string, error) {
	line, err := r.Link.Recv(ctx)
	if err == nil {
		r.s.rec.Record(record.Entry{Timestamp: time.Now(), SessionID: r.s.ID, Kind: record.KindLine, Direction: record.DirectionIn, Line: line})
	}
	return line, err
}
