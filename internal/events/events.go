// internal/events/events.go
package events

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Kind names what happened at the terminal.
type Kind string

const (
	KindEnrolled Kind = "enrolled"
	KindAccess   Kind = "access"
)

// Event is one terminal occurrence worth reporting off-device.
type Event struct {
	Terminal   string    `json:"terminal"`
	Kind       Kind      `json:"kind"`
	Slot       uint16    `json:"slot,omitempty"`
	Confidence uint16    `json:"confidence,omitempty"`
	Decision   string    `json:"decision,omitempty"`
	ObjectC    *float64  `json:"object_c,omitempty"`
	AmbientC   *float64  `json:"ambient_c,omitempty"`
	At         time.Time `json:"at"`
}

// Publisher delivers events. Delivery is best effort.
type Publisher interface {
	Publish(Event) error
	Close() error
}

// Log publishes events to a zerolog logger.
type Log struct {
	log zerolog.Logger
}

func NewLog(log zerolog.Logger) *Log { return &Log{log: log} }

func (l *Log) Publish(e Event) error {
	ev := l.log.Info().
		Str("terminal", e.Terminal).
		Str("kind", string(e.Kind)).
		Uint16("slot", e.Slot)
	if e.Kind == KindAccess {
		ev = ev.Uint16("confidence", e.Confidence).Str("decision", e.Decision)
	}
	if e.ObjectC != nil {
		ev = ev.Float64("object_c", *e.ObjectC)
	}
	if e.AmbientC != nil {
		ev = ev.Float64("ambient_c", *e.AmbientC)
	}
	ev.Msg("event")
	return nil
}

func (l *Log) Close() error { return nil }

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Float returns a pointer to v, for optional readings.
func Float(v float64) *float64 { return &v }
