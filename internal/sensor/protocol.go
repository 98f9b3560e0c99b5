// internal/sensor/protocol.go
package sensor

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/tamzrod/fingerprint-terminal/internal/link"
)

// DefaultResponseTimeout bounds the wait for one ack packet.
const DefaultResponseTimeout = time.Second

// DefaultCapacity is used for search until the module reports its own.
const DefaultCapacity uint16 = 127

// SlotID addresses one template in the module store. 0 is never assigned.
type SlotID uint16

// CharBuffer selects one of the two module characteristic buffers.
type CharBuffer uint8

const (
	Buffer1 CharBuffer = 1
	Buffer2 CharBuffer = 2
)

// MatchResult is valid only when Search returns nil.
type MatchResult struct {
	ID         SlotID
	Confidence uint16
}

// Parameters is the module's system parameter block.
type Parameters struct {
	StatusRegister uint16
	SystemID       uint16
	Capacity       uint16
	SecurityLevel  uint16
	DeviceAddress  uint32
	PacketLength   int // bytes per data packet
	BaudRate       int
}

// Config is the minimal runtime config the protocol needs.
type Config struct {
	Address         uint32
	Password        uint32
	ResponseTimeout time.Duration

	// PollInterval is slept between finger polls. 0 busy-polls.
	PollInterval time.Duration

	// Capacity bounds search and slot validation. 0 uses DefaultCapacity.
	Capacity uint16
}

// Protocol drives the module command sequence.
// It is the only component that issues commands or interprets
// confirmation codes. Not safe for concurrent use.
type Protocol struct {
	cfg   Config
	link  link.Link
	clock clockwork.Clock
	log   zerolog.Logger
	state State
}

// New creates a protocol driver over an exclusively owned link.
func New(cfg Config, l link.Link, clock clockwork.Clock, log zerolog.Logger) (*Protocol, error) {
	if l == nil {
		return nil, errors.New("sensor: link required")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = DefaultResponseTimeout
	}
	if cfg.PollInterval < 0 {
		return nil, errors.New("sensor: poll interval must be >= 0")
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultCapacity
	}
	return &Protocol{
		cfg:   cfg,
		link:  l,
		clock: clock,
		log:   log.With().Str("component", "sensor").Logger(),
		state: StateIdle,
	}, nil
}

// Link returns the underlying link. The harvester reads the template
// stream from it right after FetchModel.
func (p *Protocol) Link() link.Link { return p.link }

// Capacity returns the number of addressable slots.
func (p *Protocol) Capacity() uint16 { return p.cfg.Capacity }

// SetCapacity overrides the slot capacity, usually from ReadParameters.
func (p *Protocol) SetCapacity(n uint16) {
	if n > 0 {
		p.cfg.Capacity = n
	}
}

// State returns the current protocol state.
func (p *Protocol) State() State { return p.state }

// Reset returns the state machine to Idle.
func (p *Protocol) Reset() { p.state = StateIdle }

// ---- capture cycle ----

// CaptureImage asks the module for one image.
// A nil error means a finger image is in the module image buffer.
// NoFingerPresent leaves the state in ImageCapturing.
func (p *Protocol) CaptureImage() error {
	p.state = StateImageCapturing
	if _, err := p.exec(opCaptureImage, []byte{CmdGenImg}); err != nil {
		if StatusOf(err) != NoFingerPresent {
			p.state = StateFailed
		}
		return err
	}
	p.state = StateImageCaptured
	return nil
}

// ExtractFeatures converts the captured image into buffer b. No retry.
func (p *Protocol) ExtractFeatures(b CharBuffer) error {
	if b != Buffer1 && b != Buffer2 {
		return fmt.Errorf("sensor: invalid characteristic buffer %d", b)
	}
	p.state = StateFeatureExtracting
	if _, err := p.exec(opExtractFeatures, []byte{CmdImg2Tz, byte(b)}); err != nil {
		p.state = StateFailed
		return err
	}
	p.state = StateFeatureReady
	return nil
}

// CreateModel combines both characteristic buffers into one template.
func (p *Protocol) CreateModel() error {
	p.state = StateModelCreating
	if _, err := p.exec(opCreateModel, []byte{CmdRegModel}); err != nil {
		p.state = StateFailed
		return err
	}
	p.state = StateModelReady
	return nil
}

// StoreModel persists the template in buffer 1 at slot.
// Slot 0 is rejected locally and never sent.
func (p *Protocol) StoreModel(slot SlotID) error {
	if slot == 0 {
		p.state = StateFailed
		return p.fail(opStoreModel, InvalidSlot, ConfirmBadLocation, errors.New("slot 0 is reserved"))
	}
	p.state = StateModelStoring
	hi, lo := byte(slot>>8), byte(slot)
	if _, err := p.exec(opStoreModel, []byte{CmdStore, byte(Buffer1), hi, lo}); err != nil {
		p.state = StateFailed
		return err
	}
	p.state = StateDone
	return nil
}

// LoadModel reads the template at slot into buffer 1.
func (p *Protocol) LoadModel(slot SlotID) error {
	p.state = StateModelLoading
	hi, lo := byte(slot>>8), byte(slot)
	if _, err := p.exec(opLoadModel, []byte{CmdLoadChar, byte(Buffer1), hi, lo}); err != nil {
		p.state = StateFailed
		return err
	}
	p.state = StateModelReady
	return nil
}

// FetchModel starts the upload of buffer 1 to the host.
// On success the template bytes follow on the link with no length
// header; they must be harvested before the next command.
func (p *Protocol) FetchModel() error {
	p.state = StateModelFetching
	if _, err := p.exec(opFetchModel, []byte{CmdUpChar, byte(Buffer1)}); err != nil {
		p.state = StateFailed
		return err
	}
	p.state = StateDone
	return nil
}

// Search looks up buffer 1 across the whole store.
func (p *Protocol) Search() (MatchResult, error) {
	n := p.cfg.Capacity
	ack, err := p.exec(opSearch, []byte{CmdSearch, byte(Buffer1), 0x00, 0x00, byte(n >> 8), byte(n)})
	if err != nil {
		p.state = StateFailed
		return MatchResult{}, err
	}
	if len(ack.Payload) < 5 {
		p.state = StateFailed
		return MatchResult{}, p.fail(opSearch, CommError, ConfirmBadPacket, errShortPacket)
	}
	p.state = StateDone
	return MatchResult{
		ID:         SlotID(u16(ack.Payload[1], ack.Payload[2])),
		Confidence: u16(ack.Payload[3], ack.Payload[4]),
	}, nil
}

// ---- bring-up ----

// VerifyPassword performs the handshake that proves the module is present.
func (p *Protocol) VerifyPassword() error {
	var pw [4]byte
	binary.BigEndian.PutUint32(pw[:], p.cfg.Password)
	_, err := p.exec(opVerifyPassword, append([]byte{CmdVfyPwd}, pw[:]...))
	return err
}

// ReadParameters reads the module system parameters.
func (p *Protocol) ReadParameters() (Parameters, error) {
	ack, err := p.exec(opReadParameters, []byte{CmdReadSysPara})
	if err != nil {
		return Parameters{}, err
	}
	b := ack.Payload
	if len(b) < 17 {
		return Parameters{}, p.fail(opReadParameters, CommError, ConfirmBadPacket, errShortPacket)
	}
	return Parameters{
		StatusRegister: u16(b[1], b[2]),
		SystemID:       u16(b[3], b[4]),
		Capacity:       u16(b[5], b[6]),
		SecurityLevel:  u16(b[7], b[8]),
		DeviceAddress:  binary.BigEndian.Uint32(b[9:13]),
		PacketLength:   32 << u16(b[13], b[14]),
		BaudRate:       int(u16(b[15], b[16])) * 9600,
	}, nil
}

// TemplateCount returns the number of stored templates.
func (p *Protocol) TemplateCount() (uint16, error) {
	ack, err := p.exec(opTemplateCount, []byte{CmdTemplateNum})
	if err != nil {
		return 0, err
	}
	if len(ack.Payload) < 3 {
		return 0, p.fail(opTemplateCount, CommError, ConfirmBadPacket, errShortPacket)
	}
	return u16(ack.Payload[1], ack.Payload[2]), nil
}

// ---- request / response ----

// exec sends one command and interprets its ack through op.
func (p *Protocol) exec(op operation, payload []byte) (Packet, error) {
	frame := Packet{Address: p.cfg.Address, PID: PIDCommand, Payload: payload}.Marshal()
	if _, err := p.link.Write(frame); err != nil {
		return Packet{}, p.fail(op, CommError, ConfirmBadPacket, fmt.Errorf("write: %w", err))
	}

	ack, err := p.receiveAck()
	if err != nil {
		raw := ConfirmBadPacket
		if errors.Is(err, errResponseTimeout) {
			raw = ConfirmTimeout
		}
		return Packet{}, p.fail(op, CommError, raw, err)
	}

	raw := ack.Payload[0]
	if status := op.discriminate(raw); status != Ok {
		return ack, p.fail(op, status, raw, nil)
	}
	return ack, nil
}

var errResponseTimeout = errors.New("sensor: response timeout")

// receiveAck reads packets until an ack arrives or the response timeout
// elapses. Stray data packets and line noise are skipped, but never past
// the deadline.
func (p *Protocol) receiveAck() (Packet, error) {
	deadline := p.clock.Now().Add(p.cfg.ResponseTimeout)
	buf := make([]byte, 0, headerLen+16)

	for {
		if !p.clock.Now().Before(deadline) {
			return Packet{}, errResponseTimeout
		}
		if !p.link.Available() {
			continue
		}
		b, err := p.link.ReadByte()
		switch {
		case errors.Is(err, link.ErrNoData):
			continue
		case err != nil:
			return Packet{}, err
		}
		buf = append(buf, b)

		// resync on the start code
		for len(buf) > 0 && buf[0] != startHi {
			buf = buf[1:]
		}
		if len(buf) >= 2 && buf[1] != startLo {
			buf = buf[1:]
			continue
		}

		pkt, _, err := ParsePacket(buf)
		switch {
		case errors.Is(err, errShortPacket):
			continue
		case err != nil:
			return Packet{}, err
		}

		if pkt.PID != PIDAck {
			buf = buf[:0]
			continue
		}
		if len(pkt.Payload) == 0 {
			return Packet{}, errShortPacket
		}
		return pkt, nil
	}
}

// fail builds the operation error and reports it where it happened.
func (p *Protocol) fail(op operation, status StatusCode, raw byte, cause error) error {
	e := &Error{Op: op.name, Status: status, Raw: raw, Err: cause}

	ev := p.log.Warn()
	switch status.Class() {
	case ClassExpected:
		ev = p.log.Trace()
	case ClassCommunication, ClassUnrecognized:
		ev = p.log.Error()
	}
	ev.Str("op", op.name).
		Stringer("status", status).
		Str("raw", fmt.Sprintf("0x%02X", raw)).
		Err(cause).
		Msg("sensor operation failed")

	return e
}

// ---- operator-paced waits ----

// AwaitFinger polls CaptureImage until a finger image is taken.
// Operator paced: there is no timeout. It returns early only on a
// failure other than NoFingerPresent, or when ctx is done (shutdown).
func (p *Protocol) AwaitFinger(ctx context.Context) error {
	for {
		err := p.CaptureImage()
		if err == nil {
			return nil
		}
		if StatusOf(err) != NoFingerPresent {
			return err
		}
		if err := p.pause(ctx); err != nil {
			return err
		}
	}
}

// AwaitLift polls CaptureImage until the module reports no finger.
// Operator paced, same contract as AwaitFinger.
func (p *Protocol) AwaitLift(ctx context.Context) error {
	for {
		err := p.CaptureImage()
		switch StatusOf(err) {
		case NoFingerPresent:
			p.state = StateIdle
			return nil
		case Ok:
		default:
			return err
		}
		if err := p.pause(ctx); err != nil {
			return err
		}
	}
}

func (p *Protocol) pause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.cfg.PollInterval <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.clock.After(p.cfg.PollInterval):
		return nil
	}
}
