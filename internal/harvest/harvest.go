// internal/harvest/harvest.go
package harvest

import (
	"errors"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tamzrod/fingerprint-terminal/internal/link"
)

// Sentinel fills every buffer position that was not received.
const Sentinel byte = 0xFF

// DefaultDeadline bounds one template harvest.
const DefaultDeadline = 20 * time.Second

// Result is the outcome of one harvest.
// A short read is a valid result; Err is set only when the link failed.
type Result struct {
	Data     []byte // always len == expected; unread tail holds Sentinel
	Received int
	Elapsed  time.Duration
	Err      error
}

// Short reports whether fewer bytes than expected were received.
func (r Result) Short() bool { return r.Received < len(r.Data) }

// Harvester pulls a fixed-size, unframed byte stream off a link.
type Harvester struct {
	link  link.Link
	clock clockwork.Clock
}

// New creates a harvester. A nil clock uses the wall clock.
func New(l link.Link, clock clockwork.Clock) *Harvester {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Harvester{link: l, clock: clock}
}

// Harvest collects up to expected bytes or stops when deadline elapses.
// The stream carries no length or terminator, so expected must be known
// up front. One byte is consumed per iteration; the loop never sleeps
// beyond the link's own poll granularity.
func (h *Harvester) Harvest(expected int, deadline time.Duration) Result {
	if expected < 0 {
		expected = 0
	}
	res := Result{Data: make([]byte, expected)}
	for i := range res.Data {
		res.Data[i] = Sentinel
	}

	start := h.clock.Now()
	for res.Received < expected && h.clock.Since(start) < deadline {
		if !h.link.Available() {
			continue
		}
		b, err := h.link.ReadByte()
		if errors.Is(err, link.ErrNoData) {
			continue
		}
		if err != nil {
			res.Err = err
			break
		}
		res.Data[res.Received] = b
		res.Received++
	}

	res.Elapsed = h.clock.Since(start)
	return res
}
