// internal/terminal/runner.go
package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/tamzrod/fingerprint-terminal/internal/enroll"
	"github.com/tamzrod/fingerprint-terminal/internal/sensor"
	"github.com/tamzrod/fingerprint-terminal/internal/status"
	"github.com/tamzrod/fingerprint-terminal/internal/verify"
	"github.com/tamzrod/fingerprint-terminal/internal/writer"
)

// SlotReader supplies enrollment slot ids from the operator.
type SlotReader interface {
	ReadSlot(ctx context.Context) (sensor.SlotID, error)
}

// Fetcher is the backend read leg, logged at verify start.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// DefaultEnrollAttempts bounds retries of one slot when unset.
const DefaultEnrollAttempts = 3

// Config is the minimal runtime config the runner needs.
type Config struct {
	// Capacity overrides the module-reported capacity. 0 reads it.
	Capacity       uint16
	VerifyInterval time.Duration

	// EnrollAttempts caps enrollment attempts per slot. RetryPause is
	// waited between attempts; 0 restarts at once.
	EnrollAttempts int
	RetryPause     time.Duration
}

// Deps are the runner's collaborators. Enroll/Slots are needed only by
// RunEnroll, Verify only by RunVerify. Backend and Status may be nil.
type Deps struct {
	Protocol *sensor.Protocol
	Enroll   *enroll.Workflow
	Slots    SlotReader
	Verify   *verify.Workflow
	Backend  Fetcher
	Status   writer.StatusWriter
	Clock    clockwork.Clock
	Log      zerolog.Logger
}

// Runner owns the sensor for the lifetime of one mode and keeps the
// terminal status block current.
type Runner struct {
	cfg Config
	d   Deps
	log zerolog.Logger
}

// New creates a runner.
func New(cfg Config, d Deps) (*Runner, error) {
	if d.Protocol == nil {
		return nil, errors.New("terminal: protocol required")
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if cfg.VerifyInterval <= 0 {
		cfg.VerifyInterval = 2 * time.Second
	}
	if cfg.EnrollAttempts <= 0 {
		cfg.EnrollAttempts = DefaultEnrollAttempts
	}
	return &Runner{cfg: cfg, d: d, log: d.Log.With().Str("component", "terminal").Logger()}, nil
}

// BringUp proves the module is present and learns its capacity.
// A failed password handshake is fatal.
func (r *Runner) BringUp() error {
	p := r.d.Protocol

	if err := p.VerifyPassword(); err != nil {
		return fmt.Errorf("terminal: did not find fingerprint sensor: %w", err)
	}
	r.log.Info().Msg("found fingerprint sensor")

	params, err := p.ReadParameters()
	if err != nil {
		return fmt.Errorf("terminal: read sensor parameters: %w", err)
	}
	r.log.Info().
		Uint16("status", params.StatusRegister).
		Uint16("system_id", params.SystemID).
		Uint16("capacity", params.Capacity).
		Uint16("security_level", params.SecurityLevel).
		Str("device_address", fmt.Sprintf("%08X", params.DeviceAddress)).
		Int("packet_len", params.PacketLength).
		Int("baud_rate", params.BaudRate).
		Msg("sensor parameters")

	switch {
	case r.cfg.Capacity > 0:
		p.SetCapacity(r.cfg.Capacity)
	case params.Capacity > 0:
		p.SetCapacity(params.Capacity)
	}

	n, err := p.TemplateCount()
	if err != nil {
		return fmt.Errorf("terminal: read template count: %w", err)
	}
	if n == 0 {
		r.log.Warn().Msg("sensor doesn't contain any fingerprint data")
	} else {
		r.log.Info().Uint16("templates", n).Uint16("capacity", p.Capacity()).Msg("sensor contains templates")
	}
	return nil
}

// RunEnroll prompts for a slot and enrolls it, until ctx ends or the
// operator input closes. Retryable sensor faults restart the enrollment
// from the first capture, up to EnrollAttempts times; any other failure
// returns to the prompt.
func (r *Runner) RunEnroll(ctx context.Context) error {
	if r.d.Enroll == nil || r.d.Slots == nil {
		return errors.New("terminal: enroll mode needs a workflow and a slot reader")
	}

	return r.run(ctx, func(ctx context.Context, emit func(result)) error {
		for {
			slot, err := r.readSlot(ctx)
			switch {
			case errors.Is(err, io.EOF):
				r.log.Info().Msg("operator input closed")
				return nil
			case ctx.Err() != nil:
				return nil
			case err != nil:
				return err
			}

			r.enrollSlot(ctx, slot, emit)
			if ctx.Err() != nil {
				return nil
			}
		}
	})
}

func (r *Runner) enrollSlot(ctx context.Context, slot sensor.SlotID, emit func(result)) {
	for attempt := 1; ; attempt++ {
		rep, err := r.d.Enroll.Enroll(ctx, slot)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			emit(result{
				Err:      rep.Transfer.Err,
				Decision: status.DecisionEnrolled,
				Identity: uint16(slot),
			})
			return
		}

		emit(result{Err: err})
		if !sensor.Retryable(err) {
			r.log.Error().Err(err).Uint16("slot", uint16(slot)).Msg("enrollment aborted")
			return
		}
		if attempt >= r.cfg.EnrollAttempts {
			r.log.Error().Err(err).Uint16("slot", uint16(slot)).Int("attempts", attempt).Msg("enrollment given up")
			return
		}
		r.log.Warn().Err(err).Uint16("slot", uint16(slot)).Int("attempt", attempt).Msg("enrollment failed, starting over")

		if !r.pause(ctx, r.cfg.RetryPause) {
			return
		}
	}
}

// pause waits d on the runner clock. It reports false when ctx ended.
func (r *Runner) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-r.d.Clock.After(d):
		return true
	}
}

// readSlot makes the blocking operator read abandonable on shutdown.
func (r *Runner) readSlot(ctx context.Context) (sensor.SlotID, error) {
	type read struct {
		slot sensor.SlotID
		err  error
	}
	ch := make(chan read, 1)
	go func() {
		slot, err := r.d.Slots.ReadSlot(ctx)
		ch <- read{slot, err}
	}()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case rd := <-ch:
		return rd.slot, rd.err
	}
}

// RunVerify runs one verification per interval until ctx ends.
// One verification at a time. No overlap.
func (r *Runner) RunVerify(ctx context.Context) error {
	if r.d.Verify == nil {
		return errors.New("terminal: verify mode needs a workflow")
	}

	r.fetch(ctx)

	return r.run(ctx, func(ctx context.Context, emit func(result)) error {
		ticker := r.d.Clock.NewTicker(r.cfg.VerifyInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.Chan():
				emit(verifyResult(r.d.Verify.Verify(ctx)))
			}
		}
	})
}

func (r *Runner) fetch(ctx context.Context) {
	if r.d.Backend == nil {
		return
	}
	payload, err := r.d.Backend.Fetch(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("backend fetch failed")
		return
	}
	r.log.Info().Str("payload", payload).Msg("backend fetch")
}

func verifyResult(out verify.Outcome) result {
	switch out.Decision {
	case verify.Accepted:
		return result{Decision: status.DecisionAccepted, Identity: uint16(out.Match.ID), Confidence: out.Match.Confidence, ObjectC: out.ObjectC}
	case verify.RejectedNoMatch:
		return result{Decision: status.DecisionRejectedNoMatch}
	case verify.RejectedHighTemperature:
		return result{Decision: status.DecisionRejectedHighTemperature, Identity: uint16(out.Match.ID), Confidence: out.Match.Confidence, ObjectC: out.ObjectC}
	}

	// an empty glass is the idle state, not a fault
	if out.Status == sensor.NoFingerPresent {
		return result{}
	}
	return result{Err: out.Err, Decision: status.DecisionFailed}
}

// run starts the status orchestrator, runs produce on the calling
// goroutine and waits for the orchestrator to drain before returning.
func (r *Runner) run(ctx context.Context, produce func(context.Context, func(result)) error) error {
	results := make(chan result)
	done := make(chan struct{})

	go func() {
		defer close(done)
		r.statusLoop(ctx, results)
	}()

	emit := func(res result) {
		select {
		case results <- res:
		case <-done:
		}
	}

	err := produce(ctx, emit)
	close(results)
	<-done
	return err
}
