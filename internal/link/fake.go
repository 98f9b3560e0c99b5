// internal/link/fake.go
package link

import "sync"

// Fake is an in-memory Link.
// Tests feed inbound bytes and inspect what was written.
type Fake struct {
	mu      sync.Mutex
	in      []byte
	written []byte
	closed  bool

	// OnIdle is called each time Available finds nothing pending.
	// Tests use it to advance a fake clock.
	OnIdle func()

	// Respond, when set, is called with every written frame and its
	// return value is queued as inbound bytes.
	Respond func(frame []byte) []byte

	// ReadErr, when set, is returned by ReadByte once the inbound queue
	// is empty, and Available keeps reporting true.
	ReadErr error
}

// NewFake returns a Fake preloaded with inbound bytes.
func NewFake(in ...byte) *Fake {
	return &Fake{in: append([]byte(nil), in...)}
}

// Feed queues inbound bytes.
func (f *Fake) Feed(b ...byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.in = append(f.in, b...)
}

// Written returns a copy of everything written so far.
func (f *Fake) Written() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.written...)
}

// Pending returns the number of inbound bytes not yet consumed.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.in)
}

func (f *Fake) Write(p []byte) (int, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return 0, ErrClosed
	}
	f.written = append(f.written, p...)
	respond := f.Respond
	f.mu.Unlock()

	if respond != nil {
		if out := respond(append([]byte(nil), p...)); len(out) > 0 {
			f.Feed(out...)
		}
	}
	return len(p), nil
}

func (f *Fake) Available() bool {
	f.mu.Lock()
	n := len(f.in)
	failing := f.ReadErr != nil
	idle := f.OnIdle
	f.mu.Unlock()

	if n == 0 && !failing && idle != nil {
		idle()
	}
	return n > 0 || failing
}

func (f *Fake) ReadByte() (byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.in) == 0 {
		if f.ReadErr != nil {
			return 0, f.ReadErr
		}
		if f.closed {
			return 0, ErrClosed
		}
		return 0, ErrNoData
	}
	b := f.in[0]
	f.in = f.in[1:]
	return b, nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
