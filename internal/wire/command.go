// Package wire implements the line grammar spoken between the host and the
// device: pattern commands, the capability greeting, session end, memory
// reports and device diagnostics. Every message is one newline-terminated
// ASCII line.
package wire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"lightctl/internal/pattern"
)

var (
	ErrMalformed    = errors.New("malformed command")
	ErrReservedID   = errors.New("pattern id 0 is reserved for the wait pattern")
	ErrEmptyPattern = errors.New("pattern has no elements")
)

// Field keys of a pattern command.
const (
	KeyPattern = "PATTERN"
	KeyChannel = "CH"
	KeyStatus  = "STATUS"
	KeyTime    = "TIME_MS"
	KeyRepeats = "REPEATS"
	KeyPulse   = "PULSE"
)

// NoPulse is the pulse spec sent for elements that do not pulse.
const NoPulse = "T0pw0"

// Pulse is one decoded pulse spec.
type Pulse struct {
	PeriodMs uint32
	WidthMs  uint32
}

// Command is a pattern command as written on the wire. The lists are kept as
// received; reconciling their lengths is the receiver's job.
type Command struct {
	ID       int
	Channel  int
	Status   []bool
	TimeMs   []uint32
	Repeats  uint32
	Pulse    []Pulse
	HasPulse bool // HasPulse - false for legacy lines without a PULSE field.
}

// IsWait reports whether the command targets the wait slot.
func (c Command) IsWait() bool {
	return c.ID == pattern.WaitID
}

// EncodePattern serialises a regular pattern for channel ch.
func EncodePattern(ch int, p pattern.Pattern) (string, error) {
	if p.IsWait() {
		return "", fmt.Errorf("pattern for channel %d: %w", ch, ErrReservedID)
	}
	return encode(ch, p)
}

// EncodeWait serialises the wait pattern for channel ch. The wait pattern
// always has id 0 and one repeat.
func EncodeWait(ch int, p pattern.Pattern) (string, error) {
	if !p.IsWait() || p.Repeats != 1 {
		return "", fmt.Errorf("wait for channel %d must have id 0 and 1 repeat: %w", ch, ErrReservedID)
	}
	return encode(ch, p)
}

func encode(ch int, p pattern.Pattern) (string, error) {
	k := p.EffectiveLength
	if k < 1 || k > len(p.Elements) {
		return "", fmt.Errorf("pattern %d on channel %d (length %d): %w", p.ID, ch, k, ErrEmptyPattern)
	}

	status := make([]string, k)
	times := make([]string, k)
	pulses := make([]string, k)
	for i, e := range p.Elements[:k] {
		status[i] = formatStatus(e.Status)
		times[i] = strconv.FormatUint(uint64(e.DurationMs), 10)
		pulses[i] = FormatPulse(Pulse{PeriodMs: e.PulsePeriodMs, WidthMs: e.PulseWidthMs})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d;%s:%d;", KeyPattern, p.ID, KeyChannel, ch)
	fmt.Fprintf(&b, "%s:%s;", KeyStatus, strings.Join(status, ","))
	fmt.Fprintf(&b, "%s:%s;", KeyTime, strings.Join(times, ","))
	fmt.Fprintf(&b, "%s:%d;", KeyRepeats, p.Repeats)
	fmt.Fprintf(&b, "%s:%s", KeyPulse, strings.Join(pulses, ","))
	return b.String(), nil
}

// FormatPulse renders a pulse spec, T<period>pw<width>.
func FormatPulse(p Pulse) string {
	if p.PeriodMs == 0 && p.WidthMs == 0 {
		return NoPulse
	}
	return fmt.Sprintf("T%dpw%d", p.PeriodMs, p.WidthMs)
}

// ParsePulse decodes a T<period>pw<width> spec.
func ParsePulse(s string) (Pulse, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "T") {
		return Pulse{}, fmt.Errorf("%w: pulse %q", ErrMalformed, s)
	}
	idx := strings.Index(s, "pw")
	if idx < 0 {
		return Pulse{}, fmt.Errorf("%w: pulse %q", ErrMalformed, s)
	}
	period, err := parseUint32(s[1:idx])
	if err != nil {
		return Pulse{}, fmt.Errorf("%w: pulse period %q", ErrMalformed, s)
	}
	width, err := parseUint32(s[idx+2:])
	if err != nil {
		return Pulse{}, fmt.Errorf("%w: pulse width %q", ErrMalformed, s)
	}
	return Pulse{PeriodMs: period, WidthMs: width}, nil
}

// IsPattern reports whether line looks like a pattern command.
func IsPattern(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), KeyPattern+":")
}

// ParsePattern decodes a pattern command line. Unknown keys, spaces, trailing
// commas and a missing PULSE field are tolerated. An error is returned only
// when a value cannot be read at all, or the id, channel or status list is
// missing.
func ParsePattern(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if !IsPattern(line) {
		return Command{}, fmt.Errorf("%w: not a pattern command", ErrMalformed)
	}

	var (
		cmd                    Command
		err                    error
		seenID, seenCh, seenSt bool
	)
	cmd.Repeats = 1

	for _, field := range strings.Split(line, ";") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		key, value, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case KeyPattern:
			if cmd.ID, err = strconv.Atoi(value); err != nil || cmd.ID < 0 {
				return Command{}, fmt.Errorf("%w: pattern id %q", ErrMalformed, value)
			}
			seenID = true
		case KeyChannel:
			if cmd.Channel, err = strconv.Atoi(value); err != nil {
				return Command{}, fmt.Errorf("%w: channel %q", ErrMalformed, value)
			}
			seenCh = true
		case KeyStatus:
			for _, v := range splitList(value) {
				switch v {
				case "1":
					cmd.Status = append(cmd.Status, true)
				case "0":
					cmd.Status = append(cmd.Status, false)
				default:
					return Command{}, fmt.Errorf("%w: status %q", ErrMalformed, v)
				}
			}
			seenSt = true
		case KeyTime:
			for _, v := range splitList(value) {
				ms, err := parseUint32(v)
				if err != nil {
					return Command{}, fmt.Errorf("%w: time %q", ErrMalformed, v)
				}
				cmd.TimeMs = append(cmd.TimeMs, ms)
			}
		case KeyRepeats:
			if cmd.Repeats, err = parseUint32(value); err != nil {
				return Command{}, fmt.Errorf("%w: repeats %q", ErrMalformed, value)
			}
		case KeyPulse:
			cmd.HasPulse = true
			for _, v := range splitList(value) {
				p, err := ParsePulse(v)
				if err != nil {
					return Command{}, err
				}
				cmd.Pulse = append(cmd.Pulse, p)
			}
		}
	}

	if !seenID || !seenCh || !seenSt {
		return Command{}, fmt.Errorf("%w: missing PATTERN, CH or STATUS", ErrMalformed)
	}
	return cmd, nil
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	return uint32(v), err
}

func formatStatus(on bool) string {
	if on {
		return "1"
	}
	return "0"
}
