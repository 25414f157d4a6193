package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/chzyer/readline"

	"lightctl/internal/link"
)

// consoleLink lets a person play the host: typed lines go to the firmware,
// replies are printed above the prompt.
type consoleLink struct {
	rl    *readline.Instance
	lines chan string
	done  chan struct{}
	once  sync.Once
}

func newConsoleLink() (*consoleLink, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "device> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	c := &consoleLink{
		rl:    rl,
		lines: make(chan string),
		done:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Stdout coordinates log output with the prompt.
func (c *consoleLink) Stdout() io.Writer {
	return c.rl.Stdout()
}

func (c *consoleLink) readLoop() {
	defer c.Close()
	for {
		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			return
		}
		select {
		case c.lines <- line:
		case <-c.done:
			return
		}
	}
}

func (c *consoleLink) Send(line string) error {
	select {
	case <-c.done:
		return link.ErrClosed
	default:
	}
	_, err := fmt.Fprintln(c.rl.Stdout(), line)
	return err
}

func (c *consoleLink) Recv(ctx context.Context) (string, error) {
	select {
	case line := <-c.lines:
		return line, nil
	case <-c.done:
		return "", link.ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *consoleLink) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.rl.Close()
	})
	return err
}
