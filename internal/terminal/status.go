// internal/terminal/status.go
package terminal

import (
	"context"
	"errors"
	"time"

	"github.com/tamzrod/fingerprint-terminal/internal/status"
)

// result is what one workflow run reports to the status orchestrator.
type result struct {
	Err error // nil = healthy

	// Decision 0 leaves the decision slots untouched.
	Decision   uint16
	Identity   uint16
	Confidence uint16
	ObjectC    *float64
}

// statusLoop owns the snapshot: it applies results as they arrive and
// ticks seconds_in_error at 1 Hz. It returns when results is closed or
// ctx ends.
func (r *Runner) statusLoop(ctx context.Context, results <-chan result) {
	w := r.d.Status
	var snap status.Snapshot // HealthUnknown on start

	write := func(what string) {
		if w == nil {
			return
		}
		if err := w.WriteStatus(snap); err != nil {
			r.log.Warn().Err(err).Str("on", what).Msg("status write failed")
		}
	}

	// full block write on start (identity re-assert)
	write("start")

	secTicker := r.d.Clock.NewTicker(time.Second)
	defer secTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case res, ok := <-results:
			if !ok {
				return
			}
			if res.Err != nil {
				r.log.Debug().Err(res.Err).Uint16("code", errorCode(res.Err)).Msg("terminal in error")
			}
			if apply(&snap, res) {
				write("result")
			}

		case <-secTicker.Chan():
			if tick(&snap) {
				write("tick")
			}
		}
	}
}

// apply folds one result into the snapshot and reports whether it changed.
func apply(snap *status.Snapshot, res result) bool {
	before := *snap

	if res.Err == nil {
		// recovery / ok
		snap.Health = status.HealthOK
		snap.LastErrorCode = 0
		snap.SecondsInError = 0
	} else {
		snap.Health = status.HealthError
		snap.LastErrorCode = errorCode(res.Err)
		// seconds_in_error increments on the 1 Hz ticker only
	}

	if res.Decision != status.DecisionNone {
		snap.LastDecision = res.Decision
		snap.LastIdentity = res.Identity
		snap.LastConfidence = res.Confidence
		if res.ObjectC != nil {
			snap.ObjectTemp = status.CentiCelsius(*res.ObjectC)
		}
	}

	return *snap != before
}

// tick advances seconds_in_error while not OK. It saturates, never wraps.
func tick(snap *status.Snapshot) bool {
	if snap.Health == status.HealthOK || snap.SecondsInError >= status.MaxSecondsInError {
		return false
	}
	snap.SecondsInError++
	return true
}

// errorCode extracts a best-effort uint16 code from an error without
// assuming concrete types. If the error does not expose a code, returns
// 1 (generic error).
func errorCode(err error) uint16 {
	if err == nil {
		return 0
	}

	type coder interface{ Code() uint16 }

	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return 1
}
