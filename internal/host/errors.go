package host

import (
	"errors"
	"fmt"
)

var (
	ErrLinkTimeout      = errors.New("no response from device")
	ErrCapacityExceeded = errors.New("device capacity exceeded")
	ErrAckTimeout       = errors.New("command not acknowledged")
	ErrAckMismatch      = errors.New("device acknowledged a different line")
	ErrNoChannels       = errors.New("no channels to send")
	ErrEmptyTimeline    = errors.New("channel timeline is empty")
	ErrInvalidChannel   = errors.New("invalid channel number")
	ErrStartOutOfRange  = errors.New("start instant too far ahead")
	ErrPulseUnsupported = errors.New("plan uses pulses but the device was built without pulse mode")
)

// CapacityError reports what a session needs against what the device offers.
type CapacityError struct {
	What      string
	Required  int
	Available int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%v: %s required %d, available %d", ErrCapacityExceeded, e.What, e.Required, e.Available)
}

func (e *CapacityError) Unwrap() error {
	return ErrCapacityExceeded
}
