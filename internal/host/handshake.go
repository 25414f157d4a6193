package host

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lightctl/internal/link"
	"lightctl/internal/logger"
	"lightctl/internal/pattern"
	"lightctl/internal/wire"
)

// HandshakeResult is what the device said about itself.
type HandshakeResult struct {
	Capability *pattern.Capability // Capability - nil for legacy firmware.
	Legacy     bool
	Reply      string
	Greetings  int // Greetings - how many times Hello was sent.
}

// Handshake greets the device and waits up to timeout for its Salve. Every
// unexpected reply is answered with another greeting. Device diagnostics are
// logged and skipped.
func Handshake(ctx context.Context, l link.Link, timeout time.Duration, log logger.Logger) (HandshakeResult, error) {
	lg := log.Module("handshake")
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var res HandshakeResult
	greet := func() error {
		res.Greetings++
		return l.Send(wire.Greeting)
	}
	if err := greet(); err != nil {
		return res, fmt.Errorf("send greeting: %w", err)
	}

	for {
		line, err := l.Recv(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return res, fmt.Errorf("%w after %v", ErrLinkTimeout, timeout)
			}
			return res, fmt.Errorf("handshake: %w", err)
		}

		switch {
		case wire.IsDiagnostic(line):
			lg.Warnf("device: %s", line)
		case wire.IsSalve(line):
			c, err := wire.ParseSalve(line)
			if err != nil {
				return res, err
			}
			res.Reply = line
			res.Capability = c
			res.Legacy = c == nil
			if res.Legacy {
				lg.Warn("device did not report its capacity, verification skipped")
			} else {
				lg.Infof("device capacity: %d elements per pattern, %d patterns per channel, %d channels",
					c.MaxElementsPerPattern, c.MaxPatternsPerChannel, c.MaxChannels)
			}
			return res, nil
		default:
			lg.Warnf("unexpected reply %q, greeting again", line)
			if err := greet(); err != nil {
				return res, fmt.Errorf("send greeting: %w", err)
			}
		}
	}
}

// CheckCapacity is the pre-flight gate. It reports whether the requirement
// was verified; a legacy device is never verified and never fails.
func CheckCapacity(req pattern.Requirement, hs HandshakeResult) (bool, error) {
	if hs.Legacy || hs.Capability == nil {
		return false, nil
	}
	c := hs.Capability
	if c.MaxElementsPerPattern > 0 && req.MaxEffectiveLength > c.MaxElementsPerPattern {
		return false, &CapacityError{What: "pattern length", Required: req.MaxEffectiveLength, Available: c.MaxElementsPerPattern}
	}
	if c.MaxPatternsPerChannel > 0 && req.MaxPatternsPerChannel > c.MaxPatternsPerChannel {
		return false, &CapacityError{What: "patterns per channel", Required: req.MaxPatternsPerChannel, Available: c.MaxPatternsPerChannel}
	}
	if c.MaxChannels > 0 && req.MaxChannel > c.MaxChannels {
		return false, &CapacityError{What: "channel number", Required: req.MaxChannel, Available: c.MaxChannels}
	}
	return true, nil
}
