// internal/verify/verify.go
package verify

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/tamzrod/fingerprint-terminal/internal/events"
	"github.com/tamzrod/fingerprint-terminal/internal/sensor"
	"github.com/tamzrod/fingerprint-terminal/internal/thermo"
)

// DefaultThreshold is the object temperature, in Celsius, at or above
// which a matched identity is turned away.
const DefaultThreshold = 37.5

// Decision is the verdict of one verification.
type Decision uint8

const (
	Failed Decision = iota
	Accepted
	RejectedNoMatch
	RejectedHighTemperature
)

func (d Decision) String() string {
	switch d {
	case Accepted:
		return "accepted"
	case RejectedNoMatch:
		return "rejected_no_match"
	case RejectedHighTemperature:
		return "rejected_high_temperature"
	default:
		return "failed"
	}
}

// Outcome is the result of one Verify call.
// Err is set only when Decision is Failed. Status is the module status
// of the failed step, or Ok when the thermometer failed.
type Outcome struct {
	Decision Decision
	Status   sensor.StatusCode
	Match    sensor.MatchResult
	ObjectC  *float64
	AmbientC *float64
	Err      error
}

// Config is the minimal runtime config the workflow needs.
type Config struct {
	Terminal string

	// TemperatureGate enables the temperature interlock after a match.
	TemperatureGate bool
	Threshold       float64
}

// Workflow performs single-attempt verifications. Not safe for
// concurrent use.
type Workflow struct {
	cfg    Config
	proto  *sensor.Protocol
	thermo thermo.Thermometer
	events events.Publisher
	clock  clockwork.Clock
	log    zerolog.Logger
}

// New creates a verification workflow. th may be nil only when the
// temperature gate is disabled. pub may be nil.
func New(cfg Config, proto *sensor.Protocol, th thermo.Thermometer, pub events.Publisher, clock clockwork.Clock, log zerolog.Logger) (*Workflow, error) {
	if proto == nil {
		return nil, errors.New("verify: protocol required")
	}
	if cfg.TemperatureGate && th == nil {
		return nil, errors.New("verify: temperature gate requires a thermometer")
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Workflow{
		cfg:    cfg,
		proto:  proto,
		thermo: th,
		events: pub,
		clock:  clock,
		log:    log.With().Str("component", "verify").Logger(),
	}, nil
}

// Verify takes one image, searches the store and, on a match, applies
// the temperature interlock. It never waits for a finger; the caller
// re-invokes it periodically.
func (w *Workflow) Verify(ctx context.Context) Outcome {
	defer w.proto.Reset()

	if err := ctx.Err(); err != nil {
		return Outcome{Decision: Failed, Status: sensor.Unknown, Err: err}
	}

	if err := w.proto.CaptureImage(); err != nil {
		return failed(err)
	}
	if err := w.proto.ExtractFeatures(sensor.Buffer1); err != nil {
		return failed(err)
	}

	match, err := w.proto.Search()
	switch {
	case sensor.StatusOf(err) == sensor.NoMatch:
		out := Outcome{Decision: RejectedNoMatch}
		w.log.Info().Stringer("decision", out.Decision).Msg("did not find a match")
		w.publish(out)
		return out
	case err != nil:
		return failed(err)
	}

	out := Outcome{Decision: Accepted, Match: match}
	log := w.log.With().Uint16("id", uint16(match.ID)).Uint16("confidence", match.Confidence).Logger()
	log.Info().Msg("found a print match")

	if w.thermo != nil {
		if err := w.readTemperatures(&out); err != nil {
			if w.cfg.TemperatureGate {
				log.Error().Err(err).Msg("temperature read failed")
				return Outcome{Decision: Failed, Status: sensor.Ok, Match: match, Err: err}
			}
			log.Warn().Err(err).Msg("temperature read failed")
		}
	}

	if w.cfg.TemperatureGate && *out.ObjectC >= w.cfg.Threshold {
		out.Decision = RejectedHighTemperature
	}

	ev := log.Info().Stringer("decision", out.Decision)
	if out.ObjectC != nil {
		ev = ev.Float64("object_c", *out.ObjectC)
	}
	if out.AmbientC != nil {
		ev = ev.Float64("ambient_c", *out.AmbientC)
	}
	ev.Msg("verification decided")

	w.publish(out)
	return out
}

func (w *Workflow) readTemperatures(out *Outcome) error {
	ambient, err := w.thermo.AmbientCelsius()
	if err != nil {
		return fmt.Errorf("ambient temperature: %w", err)
	}
	out.AmbientC = events.Float(ambient)

	object, err := w.thermo.ObjectCelsius()
	if err != nil {
		return fmt.Errorf("object temperature: %w", err)
	}
	out.ObjectC = events.Float(object)
	return nil
}

func (w *Workflow) publish(out Outcome) {
	if w.events == nil {
		return
	}
	e := events.Event{
		Terminal:   w.cfg.Terminal,
		Kind:       events.KindAccess,
		Slot:       uint16(out.Match.ID),
		Confidence: out.Match.Confidence,
		Decision:   out.Decision.String(),
		ObjectC:    out.ObjectC,
		AmbientC:   out.AmbientC,
		At:         w.clock.Now(),
	}
	if err := w.events.Publish(e); err != nil {
		w.log.Warn().Err(err).Msg("event publish failed")
	}
}

// failed carries a protocol failure. The protocol has already logged it.
func failed(err error) Outcome {
	return Outcome{Decision: Failed, Status: sensor.StatusOf(err), Err: err}
}
