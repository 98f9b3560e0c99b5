// internal/link/serial.go
package link

import (
	"errors"
	"fmt"
	"time"

	"github.com/goburrow/serial"
)

// DefaultPoll is the read granularity of Available on a serial link.
const DefaultPoll = time.Millisecond

// SerialConfig is minimal UART config. Framing is always 8N1.
type SerialConfig struct {
	Port     string
	BaudRate int
	Poll     time.Duration
}

// Serial is a Link over a UART.
// Bytes read ahead by Available are kept in a small pending buffer.
type Serial struct {
	port    serial.Port
	buf     [64]byte
	pending []byte
	lastErr error
}

// OpenSerial opens the port with a short read timeout so that
// Available never blocks longer than the poll granularity.
func OpenSerial(cfg SerialConfig) (*Serial, error) {
	if cfg.Port == "" {
		return nil, errors.New("link: serial port required")
	}
	if cfg.BaudRate <= 0 {
		return nil, fmt.Errorf("link: invalid baud rate %d", cfg.BaudRate)
	}
	if cfg.Poll <= 0 {
		cfg.Poll = DefaultPoll
	}

	p, err := serial.Open(&serial.Config{
		Address:  cfg.Port,
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  cfg.Poll,
	})
	if err != nil {
		return nil, fmt.Errorf("link: open %s: %w", cfg.Port, err)
	}

	return newSerial(p), nil
}

func newSerial(p serial.Port) *Serial {
	return &Serial{port: p}
}

func (s *Serial) Write(p []byte) (int, error) {
	if s.port == nil {
		return 0, ErrClosed
	}
	return s.port.Write(p)
}

// Available performs at most one bounded read when nothing is pending.
// Read timeouts are the normal "nothing yet" outcome and are not errors.
// Any other port error is held and reported as available, so the next
// ReadByte returns it.
func (s *Serial) Available() bool {
	if len(s.pending) > 0 || s.lastErr != nil {
		return true
	}
	if s.port == nil {
		return false
	}

	n, err := s.port.Read(s.buf[:])
	if n > 0 {
		s.pending = s.buf[:n]
	}
	if err != nil && !errors.Is(err, serial.ErrTimeout) {
		s.lastErr = fmt.Errorf("link: read: %w", err)
	}
	return len(s.pending) > 0 || s.lastErr != nil
}

// ReadByte drains bytes read ahead before reporting a held port error.
func (s *Serial) ReadByte() (byte, error) {
	if len(s.pending) == 0 && !s.Available() {
		return 0, ErrNoData
	}
	if len(s.pending) == 0 {
		err := s.lastErr
		s.lastErr = nil
		return 0, err
	}
	b := s.pending[0]
	s.pending = s.pending[1:]
	return b, nil
}

func (s *Serial) Close() error {
	if s == nil || s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	s.pending = nil
	return err
}
