// Package link carries newline-terminated command lines between the host and
// the device: over a serial port in production, over an in-memory pipe in
// simulations and tests.
package link

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrClosed = errors.New("link closed")
)

// Link is a bidirectional line channel. Lines are passed without their
// terminator.
type Link interface {
	Send(line string) error
	Recv(ctx context.Context) (string, error)
	Close() error
}

// Lines pumps received lines into a channel until ctx ends or the link fails.
// The channel is closed when the pump stops.
func Lines(ctx context.Context, l Link) <-chan string {
	out := make(chan string, 16)
	go func() {
		defer close(out)
		for {
			line, err := l.Recv(ctx)
			if err != nil {
				return
			}
			select {
			case out <- line:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func clean(line string) string {
	return strings.TrimRight(line, "\r\n")
}
