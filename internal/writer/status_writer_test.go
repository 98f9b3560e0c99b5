// internal/writer/status_writer_test.go
package writer

import (
	"errors"
	"testing"

	"github.com/tamzrod/fingerprint-terminal/internal/status"
)

// ---- fake register client ----

type writeCall struct {
	unitID uint8
	addr   uint16
	regs   []uint16
}

type fakeRegisterWriter struct {
	writes []writeCall
	fail   bool
}

func (f *fakeRegisterWriter) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	if f.fail {
		return errors.New("connection reset")
	}
	f.writes = append(f.writes, writeCall{unitID, addr, append([]uint16(nil), regs...)})
	return nil
}

func (f *fakeRegisterWriter) last() writeCall { return f.writes[len(f.writes)-1] }

// ---- tests ----

func TestDeviceNameWrittenOnFullAssertOnly(t *testing.T) {
	cli := &fakeRegisterWriter{}
	plan := StatusPlan{UnitID: 1, Slot: 2, DeviceName: "GATE-01"}

	sw, err := NewDeviceStatusWriter(plan, cli)
	if err != nil {
		t.Fatalf("NewDeviceStatusWriter: %v", err)
	}

	// ---- first write: FULL ASSERT ----
	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthOK}); err != nil {
		t.Fatalf("initial full assert failed: %v", err)
	}
	full := cli.last()
	if len(full.regs) != status.SlotsPerDevice || full.addr != 2*status.SlotsPerDevice || full.unitID != 1 {
		t.Fatalf("expected full block at %d, got %d regs at %d", 2*status.SlotsPerDevice, len(full.regs), full.addr)
	}
	name := status.EncodeDeviceName(plan.DeviceName)
	for i := 0; i < status.SlotDeviceNameSlots; i++ {
		if full.regs[status.SlotDeviceNameStart+i] != name[i] {
			t.Fatalf("device name slot %d mismatch", status.SlotDeviceNameStart+i)
		}
	}

	// ---- second write: INCREMENTAL ONLY ----
	n := len(cli.writes)
	next := status.Snapshot{
		Health:       status.HealthOK,
		LastDecision: status.DecisionAccepted,
		LastIdentity: 9,
	}
	if err := sw.WriteStatus(next); err != nil {
		t.Fatalf("incremental write failed: %v", err)
	}
	got := cli.writes[n:]
	if len(got) != 2 {
		t.Fatalf("expected 2 single-register writes, got %d", len(got))
	}
	if got[0].addr != full.addr+status.SlotLastDecision || got[1].addr != full.addr+status.SlotLastIdentity {
		t.Fatalf("unexpected addrs %d %d", got[0].addr, got[1].addr)
	}
	for _, w := range got {
		if len(w.regs) != 1 {
			t.Fatalf("device name should not be rewritten on incremental update")
		}
	}

	// ---- unchanged: nothing written ----
	n = len(cli.writes)
	if err := sw.WriteStatus(next); err != nil || len(cli.writes) != n {
		t.Fatalf("unchanged snapshot wrote %d registers (err=%v)", len(cli.writes)-n, err)
	}
}

func TestSecondsInErrorResetOnRecovery(t *testing.T) {
	cli := &fakeRegisterWriter{}
	sw, _ := NewDeviceStatusWriter(StatusPlan{UnitID: 1, DeviceName: "GATE-01"}, cli)

	errSnap := status.Snapshot{Health: status.HealthError, LastErrorCode: 42, SecondsInError: 3}
	if err := sw.WriteStatus(errSnap); err != nil {
		t.Fatalf("error snapshot write failed: %v", err)
	}

	okSnap := status.Snapshot{Health: status.HealthOK, LastErrorCode: 42, SecondsInError: 0}
	if err := sw.WriteStatus(okSnap); err != nil {
		t.Fatalf("recovery snapshot write failed: %v", err)
	}

	w := cli.last()
	if w.addr != status.SlotSecondsInError || len(w.regs) != 1 || w.regs[0] != 0 {
		t.Fatalf("seconds_in_error not reset: %+v", w)
	}
}

func TestFailureForcesFullReassert(t *testing.T) {
	cli := &fakeRegisterWriter{}
	sw, _ := NewDeviceStatusWriter(StatusPlan{UnitID: 1}, cli)

	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthOK}); err != nil {
		t.Fatalf("full assert failed: %v", err)
	}

	cli.fail = true
	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthError}); err == nil {
		t.Fatalf("expected write failure")
	}

	cli.fail = false
	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthError}); err != nil {
		t.Fatalf("recovery write failed: %v", err)
	}
	if len(cli.last().regs) != status.SlotsPerDevice {
		t.Fatalf("expected full re-assert after failure, got %d regs", len(cli.last().regs))
	}
}

func TestNewDeviceStatusWriter_Validation(t *testing.T) {
	if _, err := NewDeviceStatusWriter(StatusPlan{}, nil); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := NewDeviceStatusWriter(StatusPlan{Slot: 4000}, &fakeRegisterWriter{}); err == nil {
		t.Fatalf("expected error for slot beyond address space")
	}
}
