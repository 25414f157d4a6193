package link

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"

	"lightctl/internal/config"
)

// SerialConfig holds serial port configuration.
type SerialConfig struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// ConvertConfig преобразует структуры.
func ConvertConfig(cfg config.SerialConf) SerialConfig {
	return SerialConfig{
		Device:      cfg.Port,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeoutMs,
	}
}

// Serial is a Link over a serial port. A background reader splits the byte
// stream into lines.
type Serial struct {
	port  io.ReadWriteCloser
	lines chan string
	errc  chan error
	done  chan struct{}
	once  sync.Once
	wmu   sync.Mutex
}

// OpenSerial opens the port described by cfg.
func OpenSerial(cfg SerialConfig) (*Serial, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Device, err)
	}
	return NewSerial(port), nil
}

// NewSerial wraps an already open port.
func NewSerial(port io.ReadWriteCloser) *Serial {
	s := &Serial{
		port:  port,
		lines: make(chan string, 64),
		errc:  make(chan error, 1),
		done:  make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *Serial) Send(line string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	_, err := s.port.Write([]byte(clean(line) + "\n"))
	return err
}

func (s *Serial) Recv(ctx context.Context) (string, error) {
	select {
	case line := <-s.lines:
		return line, nil
	case err := <-s.errc:
		return "", err
	case <-s.done:
		return "", ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Serial) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.port.Close()
	})
	return err
}

func (s *Serial) readLoop() {
	buf := make([]byte, 256)
	var pending []byte
	for {
		n, err := s.port.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			for {
				idx := bytes.IndexByte(pending, '\n')
				if idx < 0 {
					break
				}
				line := clean(string(pending[:idx]))
				pending = pending[idx+1:]
				if line == "" {
					continue
				}
				select {
				case s.lines <- line:
				case <-s.done:
					return
				}
			}
		}
		if err != nil && !errors.Is(err, io.EOF) {
			select {
			case <-s.done:
			case s.errc <- fmt.Errorf("serial read: %w", err):
			}
			return
		}
		select {
		case <-s.done:
			return
		default:
		}
	}
}
