// internal/harvest/harvest_test.go
package harvest

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tamzrod/fingerprint-terminal/internal/link"
)

const templateSize = 534

func pattern(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i)
	}
	return out
}

func TestHarvest_FullRead(t *testing.T) {
	in := pattern(templateSize)
	h := New(link.NewFake(in...), clockwork.NewFakeClock())

	res := h.Harvest(templateSize, DefaultDeadline)
	if res.Err != nil {
		t.Fatalf("unexpected err=%v", res.Err)
	}
	if res.Received != templateSize || res.Short() {
		t.Fatalf("received %d want %d", res.Received, templateSize)
	}
	if !bytes.Equal(res.Data, in) {
		t.Fatalf("data mismatch")
	}
}

// Extra bytes stay on the link for the next reader.
func TestHarvest_StopsAtExpected(t *testing.T) {
	fake := link.NewFake(pattern(templateSize + 10)...)
	h := New(fake, clockwork.NewFakeClock())

	res := h.Harvest(templateSize, DefaultDeadline)
	if res.Received != templateSize {
		t.Fatalf("received %d want %d", res.Received, templateSize)
	}
	if fake.Pending() != 10 {
		t.Fatalf("pending %d want 10", fake.Pending())
	}
}

func TestHarvest_ShortReadKeepsSentinel(t *testing.T) {
	const got = 300
	clock := clockwork.NewFakeClock()
	fake := link.NewFake(pattern(got)...)
	fake.OnIdle = func() { clock.Advance(time.Millisecond) }

	h := New(fake, clock)
	res := h.Harvest(templateSize, DefaultDeadline)

	if !res.Short() || res.Received != got {
		t.Fatalf("received %d want %d (short)", res.Received, got)
	}
	if res.Err != nil {
		t.Fatalf("short read must not be an error: %v", res.Err)
	}
	if res.Elapsed < DefaultDeadline || res.Elapsed > DefaultDeadline+time.Millisecond {
		t.Fatalf("elapsed %v want ~%v", res.Elapsed, DefaultDeadline)
	}
	for i := got; i < templateSize; i++ {
		if res.Data[i] != Sentinel {
			t.Fatalf("byte %d = 0x%02X want sentinel", i, res.Data[i])
		}
	}
	if !bytes.Equal(res.Data[:got], pattern(got)) {
		t.Fatalf("received prefix mismatch")
	}
}

func TestHarvest_NothingArrives(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fake := link.NewFake()
	fake.OnIdle = func() { clock.Advance(50 * time.Millisecond) }

	res := New(fake, clock).Harvest(templateSize, time.Second)
	if res.Received != 0 {
		t.Fatalf("received %d want 0", res.Received)
	}
	for i, b := range res.Data {
		if b != Sentinel {
			t.Fatalf("byte %d = 0x%02X want sentinel", i, b)
		}
	}
}

// Wall-clock bound: the loop returns shortly after the deadline.
func TestHarvest_RealClockDeadline(t *testing.T) {
	const deadline = 50 * time.Millisecond
	h := New(link.NewFake(1, 2, 3), clockwork.NewRealClock())

	start := time.Now()
	res := h.Harvest(templateSize, deadline)
	took := time.Since(start)

	if res.Received != 3 {
		t.Fatalf("received %d want 3", res.Received)
	}
	if took > deadline+250*time.Millisecond {
		t.Fatalf("harvest took %v, deadline %v", took, deadline)
	}
}

func TestHarvest_LinkFailureReturnsPartial(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fake := link.NewFake(9, 9)
	fake.ReadErr = link.ErrClosed
	fake.OnIdle = func() { clock.Advance(time.Millisecond) }

	res := New(fake, clock).Harvest(10, time.Second)
	if res.Received != 2 {
		t.Fatalf("received %d want 2", res.Received)
	}
	if !errors.Is(res.Err, link.ErrClosed) {
		t.Fatalf("err=%v want ErrClosed", res.Err)
	}
	if res.Elapsed != 0 {
		t.Fatalf("failure waited out the deadline: %v", res.Elapsed)
	}
}
