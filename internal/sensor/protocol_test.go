// internal/sensor/protocol_test.go
package sensor

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/tamzrod/fingerprint-terminal/internal/link"
)

const testTemplateSize = 534

func newSimProtocol(t *testing.T) (*Protocol, *Simulator) {
	t.Helper()
	sim := NewSimulator(127, testTemplateSize)
	p, err := New(Config{Address: DefaultAddress}, sim, clockwork.NewFakeClock(), zerolog.Nop())
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	return p, sim
}

func TestNew_RequiresLink(t *testing.T) {
	if _, err := New(Config{}, nil, nil, zerolog.Nop()); err == nil {
		t.Fatalf("expected error without link")
	}
}

func TestCaptureImage_NoFingerKeepsCapturing(t *testing.T) {
	p, _ := newSimProtocol(t)

	err := p.CaptureImage()
	if StatusOf(err) != NoFingerPresent {
		t.Fatalf("expected no_finger, got %v", err)
	}
	if p.State() != StateImageCapturing {
		t.Fatalf("state=%s want image_capturing", p.State())
	}
}

func TestCaptureImage_OkAdvances(t *testing.T) {
	p, sim := newSimProtocol(t)
	sim.Present(7)

	if err := p.CaptureImage(); err != nil {
		t.Fatalf("CaptureImage err=%v", err)
	}
	if p.State() != StateImageCaptured {
		t.Fatalf("state=%s want image_captured", p.State())
	}
}

func TestCaptureImage_StatusMapping(t *testing.T) {
	tests := []struct {
		raw  byte
		want StatusCode
	}{
		{ConfirmPacketRecvErr, CommError},
		{ConfirmImageFail, ImagingError},
		{0x42, Unknown},
	}
	for _, tt := range tests {
		p, sim := newSimProtocol(t)
		sim.Inject(CmdGenImg, tt.raw)

		err := p.CaptureImage()
		if StatusOf(err) != tt.want {
			t.Fatalf("raw 0x%02X: got %v want %s", tt.raw, err, tt.want)
		}
		var se *Error
		if !errors.As(err, &se) || se.Raw != tt.raw {
			t.Fatalf("raw 0x%02X not preserved: %v", tt.raw, err)
		}
		if p.State() != StateFailed {
			t.Fatalf("state=%s want failed", p.State())
		}
	}
}

func TestExtractFeatures_Failures(t *testing.T) {
	tests := []struct {
		raw  byte
		want StatusCode
	}{
		{ConfirmImageMess, ImageTooMessy},
		{ConfirmPacketRecvErr, CommError},
		{ConfirmFeatureFail, FeatureExtractionFailed},
		{ConfirmInvalidImage, InvalidImage},
		{ConfirmEnrollMismatch, Unknown},
	}
	for _, tt := range tests {
		p, sim := newSimProtocol(t)
		sim.Inject(CmdImg2Tz, tt.raw)
		if err := p.ExtractFeatures(Buffer1); StatusOf(err) != tt.want {
			t.Fatalf("raw 0x%02X: got %v want %s", tt.raw, err, tt.want)
		}
	}
}

func TestExtractFeatures_InvalidBuffer(t *testing.T) {
	p, sim := newSimProtocol(t)
	if err := p.ExtractFeatures(CharBuffer(3)); err == nil {
		t.Fatalf("expected error for buffer 3")
	}
	if len(sim.Commands()) != 0 {
		t.Fatalf("no command must be sent for an invalid buffer")
	}
}

func TestEnrollSequence_StoresTemplate(t *testing.T) {
	p, sim := newSimProtocol(t)
	sim.Present(9, 9)

	steps := []func() error{
		p.CaptureImage,
		func() error { return p.ExtractFeatures(Buffer1) },
		p.CaptureImage,
		func() error { return p.ExtractFeatures(Buffer2) },
		p.CreateModel,
		func() error { return p.StoreModel(12) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d err=%v", i, err)
		}
	}

	if f, ok := sim.Stored(12); !ok || f != 9 {
		t.Fatalf("slot 12 = %d,%v want 9,true", f, ok)
	}
	if p.State() != StateDone {
		t.Fatalf("state=%s want done", p.State())
	}
}

func TestCreateModel_Mismatch(t *testing.T) {
	p, sim := newSimProtocol(t)
	sim.Present(1, 2)

	_ = p.CaptureImage()
	_ = p.ExtractFeatures(Buffer1)
	_ = p.CaptureImage()
	_ = p.ExtractFeatures(Buffer2)

	if err := p.CreateModel(); StatusOf(err) != CapturesMismatched {
		t.Fatalf("expected captures_mismatched, got %v", err)
	}
}

func TestStoreModel_Failures(t *testing.T) {
	p, sim := newSimProtocol(t)

	if err := p.StoreModel(0); StatusOf(err) != InvalidSlot {
		t.Fatalf("slot 0: got %v want invalid_slot", err)
	}
	if len(sim.Commands()) != 0 {
		t.Fatalf("slot 0 must not reach the module")
	}

	if err := p.StoreModel(500); StatusOf(err) != InvalidSlot {
		t.Fatalf("slot 500: got %v want invalid_slot", err)
	}

	sim.Inject(CmdStore, ConfirmFlashErr)
	if err := p.StoreModel(3); StatusOf(err) != PersistFailure {
		t.Fatalf("flash error: got %v want persist_failure", err)
	}
}

func TestLoadAndFetchModel_StreamsTemplate(t *testing.T) {
	p, sim := newSimProtocol(t)
	sim.Enroll(4, 77)

	if err := p.LoadModel(4); err != nil {
		t.Fatalf("LoadModel err=%v", err)
	}
	if err := p.FetchModel(); err != nil {
		t.Fatalf("FetchModel err=%v", err)
	}

	got := make([]byte, 0, testTemplateSize)
	for p.Link().Available() {
		b, err := p.Link().ReadByte()
		if err != nil {
			t.Fatalf("ReadByte err=%v", err)
		}
		got = append(got, b)
	}
	if !bytes.Equal(got, sim.Template(77)) {
		t.Fatalf("template stream mismatch (%d bytes)", len(got))
	}
}

func TestLoadModel_EmptySlotIsUnknown(t *testing.T) {
	p, _ := newSimProtocol(t)
	// 0x0C is not part of the loadModel table
	if err := p.LoadModel(50); StatusOf(err) != Unknown {
		t.Fatalf("got %v want unknown", err)
	}
}

func TestSearch_MatchAndNoMatch(t *testing.T) {
	p, sim := newSimProtocol(t)
	sim.Enroll(5, 42)
	sim.SetScore(187)
	sim.Present(42, 13)

	_ = p.CaptureImage()
	_ = p.ExtractFeatures(Buffer1)
	m, err := p.Search()
	if err != nil {
		t.Fatalf("Search err=%v", err)
	}
	if m.ID != 5 || m.Confidence != 187 {
		t.Fatalf("match=%+v want {5 187}", m)
	}

	_ = p.CaptureImage()
	_ = p.ExtractFeatures(Buffer1)
	if _, err := p.Search(); StatusOf(err) != NoMatch {
		t.Fatalf("expected no_match, got %v", err)
	}
}

func TestBringUp(t *testing.T) {
	p, sim := newSimProtocol(t)
	sim.Enroll(1, 1)
	sim.Enroll(2, 2)

	if err := p.VerifyPassword(); err != nil {
		t.Fatalf("VerifyPassword err=%v", err)
	}

	params, err := p.ReadParameters()
	if err != nil {
		t.Fatalf("ReadParameters err=%v", err)
	}
	if params.Capacity != 127 || params.PacketLength != 128 || params.BaudRate != 57600 {
		t.Fatalf("params=%+v", params)
	}

	n, err := p.TemplateCount()
	if err != nil || n != 2 {
		t.Fatalf("TemplateCount=%d err=%v want 2", n, err)
	}

	sim.SetPassword(0x1234)
	if err := p.VerifyPassword(); StatusOf(err) != PasswordRejected {
		t.Fatalf("expected password_rejected, got %v", err)
	}
}

func TestExec_TimeoutIsCommError(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fake := link.NewFake()
	fake.OnIdle = func() { clock.Advance(10 * time.Millisecond) }

	p, err := New(Config{ResponseTimeout: 200 * time.Millisecond}, fake, clock, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	err = p.CaptureImage()
	var se *Error
	if !errors.As(err, &se) || se.Status != CommError || se.Raw != ConfirmTimeout {
		t.Fatalf("expected comm_error timeout, got %v", err)
	}
}

// noisyLink always has a byte pending and never forms a packet.
type noisyLink struct {
	clock *clockwork.FakeClock
	reads int
}

func (l *noisyLink) Write(p []byte) (int, error) { return len(p), nil }
func (l *noisyLink) Available() bool             { return true }
func (l *noisyLink) Close() error                { return nil }

func (l *noisyLink) ReadByte() (byte, error) {
	l.reads++
	l.clock.Advance(time.Millisecond)
	return 0x00, nil
}

func TestExec_NoiseStillTimesOut(t *testing.T) {
	clock := clockwork.NewFakeClock()
	noise := &noisyLink{clock: clock}

	p, err := New(Config{ResponseTimeout: 20 * time.Millisecond}, noise, clock, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	err = p.CaptureImage()
	var se *Error
	if !errors.As(err, &se) || se.Status != CommError || se.Raw != ConfirmTimeout {
		t.Fatalf("expected comm_error timeout, got %v", err)
	}
	if noise.reads > 20 {
		t.Fatalf("read %d bytes past a 20ms deadline", noise.reads)
	}
}

// A failing link reports its cause instead of waiting for the deadline.
func TestExec_LinkFailureIsCommError(t *testing.T) {
	unplugged := errors.New("input/output error")
	fake := link.NewFake()
	fake.ReadErr = unplugged

	p, _ := New(Config{}, fake, clockwork.NewFakeClock(), zerolog.Nop())
	err := p.CaptureImage()
	if StatusOf(err) != CommError || !errors.Is(err, unplugged) {
		t.Fatalf("expected comm_error wrapping the link failure, got %v", err)
	}
}

func TestExec_SkipsGarbageAndDataPackets(t *testing.T) {
	fake := link.NewFake()
	fake.Respond = func([]byte) []byte {
		out := []byte{0x00, 0x13, 0xEF} // noise
		out = append(out, Packet{Address: DefaultAddress, PID: PIDData, Payload: []byte{1, 2, 3}}.Marshal()...)
		out = append(out, Packet{Address: DefaultAddress, PID: PIDAck, Payload: []byte{ConfirmOK}}.Marshal()...)
		return out
	}

	p, err := New(Config{Address: DefaultAddress}, fake, clockwork.NewFakeClock(), zerolog.Nop())
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	if err := p.CaptureImage(); err != nil {
		t.Fatalf("CaptureImage err=%v", err)
	}
}

func TestExec_ChecksumErrorIsCommError(t *testing.T) {
	fake := link.NewFake()
	fake.Respond = func([]byte) []byte {
		frame := Packet{Address: DefaultAddress, PID: PIDAck, Payload: []byte{ConfirmOK}}.Marshal()
		frame[len(frame)-1] ^= 0x01
		return frame
	}

	p, _ := New(Config{}, fake, clockwork.NewFakeClock(), zerolog.Nop())
	if err := p.CaptureImage(); StatusOf(err) != CommError {
		t.Fatalf("expected comm_error, got %v", err)
	}
}

func TestAwaitFingerAndLift(t *testing.T) {
	p, sim := newSimProtocol(t)
	sim.Present(0, 0, 0, 8, 8, 8, 0)

	if err := p.AwaitFinger(context.Background()); err != nil {
		t.Fatalf("AwaitFinger err=%v", err)
	}
	if n := countCmd(sim.Commands(), CmdGenImg); n != 4 {
		t.Fatalf("expected 4 polls, got %d", n)
	}

	if err := p.AwaitLift(context.Background()); err != nil {
		t.Fatalf("AwaitLift err=%v", err)
	}
	if n := countCmd(sim.Commands(), CmdGenImg); n != 7 {
		t.Fatalf("expected 7 polls, got %d", n)
	}
}

func TestAwaitFinger_AbortsOnCommError(t *testing.T) {
	p, sim := newSimProtocol(t)
	sim.Present(0)
	sim.Inject(CmdGenImg, ConfirmNoFinger, ConfirmPacketRecvErr)

	if err := p.AwaitFinger(context.Background()); StatusOf(err) != CommError {
		t.Fatalf("expected comm_error, got %v", err)
	}
}

func TestAwaitFinger_StopsOnCancel(t *testing.T) {
	p, _ := newSimProtocol(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.AwaitFinger(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func countCmd(cmds []byte, c byte) int {
	n := 0
	for _, x := range cmds {
		if x == c {
			n++
		}
	}
	return n
}
