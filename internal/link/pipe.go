package link

import (
	"context"
	"sync"
)

const pipeDepth = 64

// PipeEnd is one side of an in-memory link.
type PipeEnd struct {
	in   <-chan string
	out  chan<- string
	done chan struct{}
	once *sync.Once
	mu   sync.Mutex
	sent []string
}

// Pipe returns two connected ends: what one sends the other receives.
// Closing either end closes both.
func Pipe() (*PipeEnd, *PipeEnd) {
	ab := make(chan string, pipeDepth)
	ba := make(chan string, pipeDepth)
	done := make(chan struct{})
	once := &sync.Once{}
	a := &PipeEnd{in: ba, out: ab, done: done, once: once}
	b := &PipeEnd{in: ab, out: ba, done: done, once: once}
	return a, b
}

func (p *PipeEnd) Send(line string) error {
	line = clean(line)
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case p.out <- line:
		p.mu.Lock()
		p.sent = append(p.sent, line)
		p.mu.Unlock()
		return nil
	case <-p.done:
		return ErrClosed
	}
}

func (p *PipeEnd) Recv(ctx context.Context) (string, error) {
	select {
	case line := <-p.in:
		return line, nil
	case <-p.done:
		return "", ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *PipeEnd) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}

// Sent returns every line this end has sent so far.
func (p *PipeEnd) Sent() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.sent))
	copy(out, p.sent)
	return out
}
