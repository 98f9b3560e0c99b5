// internal/enroll/enroll.go
package enroll

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/tamzrod/fingerprint-terminal/internal/codec"
	"github.com/tamzrod/fingerprint-terminal/internal/events"
	"github.com/tamzrod/fingerprint-terminal/internal/harvest"
	"github.com/tamzrod/fingerprint-terminal/internal/sensor"
)

var (
	// ErrInvalidSlot is returned before any capture for slot 0 or a slot
	// beyond the module capacity.
	ErrInvalidSlot = errors.New("enroll: invalid slot id")

	// ErrShortTemplate marks a harvest that ended before the full
	// template arrived.
	ErrShortTemplate = errors.New("enroll: short template read")
)

// DefaultSettle is the pause after the first capture before waiting
// for the finger to lift.
const DefaultSettle = 2 * time.Second

// Uploader is the backend leg of the transfer pipeline.
type Uploader interface {
	Upload(ctx context.Context, slotID, encoded string) (int, error)
}

// Guide receives operator instructions between placements.
type Guide interface {
	Say(format string, args ...any)
}

// Config is the minimal runtime config the workflow needs.
type Config struct {
	Terminal        string
	Settle          time.Duration // 0 skips the pause
	TemplateSize    int
	HarvestDeadline time.Duration
	UploadPartial   bool
}

// Transfer reports the off-module leg. It never affects the stored
// template.
type Transfer struct {
	Received   int
	Expected   int
	Uploaded   bool
	HTTPStatus int
	Err        error
}

// Report is the outcome of one successful in-module enrollment.
type Report struct {
	Slot     sensor.SlotID
	Transfer Transfer
}

// Workflow enrolls one finger per call. Not safe for concurrent use;
// it owns the protocol for the duration of Enroll.
type Workflow struct {
	cfg       Config
	proto     *sensor.Protocol
	harvester *harvest.Harvester
	uploader  Uploader
	events    events.Publisher
	guide     Guide
	clock     clockwork.Clock
	log       zerolog.Logger
}

// New creates an enrollment workflow. uploader, pub and guide may be nil.
func New(cfg Config, proto *sensor.Protocol, h *harvest.Harvester, uploader Uploader, pub events.Publisher, guide Guide, clock clockwork.Clock, log zerolog.Logger) (*Workflow, error) {
	if proto == nil || h == nil {
		return nil, errors.New("enroll: protocol and harvester required")
	}
	if cfg.TemplateSize <= 0 {
		return nil, fmt.Errorf("enroll: template size must be > 0 (got %d)", cfg.TemplateSize)
	}
	if cfg.HarvestDeadline <= 0 {
		cfg.HarvestDeadline = harvest.DefaultDeadline
	}
	if cfg.Settle < 0 {
		return nil, errors.New("enroll: settle must be >= 0")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Workflow{
		cfg:       cfg,
		proto:     proto,
		harvester: h,
		uploader:  uploader,
		events:    pub,
		guide:     guide,
		clock:     clock,
		log:       log.With().Str("component", "enroll").Logger(),
	}, nil
}

// Enroll captures the same finger twice, stores the combined template at
// slot, then transfers it off the module.
//
// The returned error covers the in-module part only. Once StoreModel has
// succeeded the error is nil and any transfer failure is carried in
// Report.Transfer.
func (w *Workflow) Enroll(ctx context.Context, slot sensor.SlotID) (Report, error) {
	if slot == 0 || uint16(slot) > w.proto.Capacity() {
		w.log.Warn().Uint16("slot", uint16(slot)).Uint16("capacity", w.proto.Capacity()).Msg("invalid slot id")
		return Report{}, fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	defer w.proto.Reset()

	log := w.log.With().Uint16("slot", uint16(slot)).Logger()
	log.Info().Msg("enrolling")

	// ---- first placement ----
	w.say("Waiting for valid finger to enroll as #%d", slot)
	if err := w.capture(ctx, sensor.Buffer1); err != nil {
		return Report{}, err
	}

	w.say("Remove finger")
	if err := w.settle(ctx); err != nil {
		return Report{}, err
	}
	if err := w.proto.AwaitLift(ctx); err != nil {
		return Report{}, err
	}

	// ---- second placement ----
	w.say("Place same finger again")
	if err := w.capture(ctx, sensor.Buffer2); err != nil {
		return Report{}, err
	}

	// ---- combine + persist ----
	if err := w.proto.CreateModel(); err != nil {
		return Report{}, err
	}
	if err := w.proto.StoreModel(slot); err != nil {
		return Report{}, err
	}
	log.Info().Msg("template stored")
	w.say("Stored!")
	w.publish(slot)

	// ---- transfer ----
	rep := Report{Slot: slot, Transfer: w.transfer(ctx, slot)}
	if err := rep.Transfer.Err; err != nil {
		log.Warn().Err(err).
			Int("received", rep.Transfer.Received).
			Int("expected", rep.Transfer.Expected).
			Msg("template transfer failed")
	}
	return rep, nil
}

func (w *Workflow) capture(ctx context.Context, b sensor.CharBuffer) error {
	if err := w.proto.AwaitFinger(ctx); err != nil {
		return err
	}
	w.log.Debug().Uint8("buffer", uint8(b)).Msg("image taken")
	return w.proto.ExtractFeatures(b)
}

func (w *Workflow) settle(ctx context.Context) error {
	if w.cfg.Settle == 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-w.clock.After(w.cfg.Settle):
		return nil
	}
}

// transfer loads the stored template back, harvests the raw stream and
// uploads it hex encoded.
func (w *Workflow) transfer(ctx context.Context, slot sensor.SlotID) Transfer {
	tr := Transfer{Expected: w.cfg.TemplateSize}

	if err := w.proto.LoadModel(slot); err != nil {
		tr.Err = err
		return tr
	}
	if err := w.proto.FetchModel(); err != nil {
		tr.Err = err
		return tr
	}

	res := w.harvester.Harvest(w.cfg.TemplateSize, w.cfg.HarvestDeadline)
	tr.Received = res.Received
	w.log.Debug().
		Int("received", res.Received).
		Int("expected", w.cfg.TemplateSize).
		Dur("elapsed", res.Elapsed).
		Msg("template harvested")

	switch {
	case res.Err != nil:
		tr.Err = fmt.Errorf("harvest: %w", res.Err)
		return tr
	case res.Short() && !w.cfg.UploadPartial:
		tr.Err = fmt.Errorf("%w: %d of %d bytes", ErrShortTemplate, res.Received, w.cfg.TemplateSize)
		return tr
	}

	if w.uploader == nil {
		return tr
	}
	code, err := w.uploader.Upload(ctx, strconv.Itoa(int(slot)), codec.EncodeHex(res.Data))
	tr.HTTPStatus = code
	if err != nil {
		tr.Err = err
		return tr
	}
	tr.Uploaded = true
	return tr
}

func (w *Workflow) publish(slot sensor.SlotID) {
	if w.events == nil {
		return
	}
	e := events.Event{
		Terminal: w.cfg.Terminal,
		Kind:     events.KindEnrolled,
		Slot:     uint16(slot),
		At:       w.clock.Now(),
	}
	if err := w.events.Publish(e); err != nil {
		w.log.Warn().Err(err).Msg("event publish failed")
	}
}

func (w *Workflow) say(format string, args ...any) {
	if w.guide != nil {
		w.guide.Say(format, args...)
	}
}
