// internal/writer/status_writer.go
package writer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/fingerprint-terminal/internal/status"
)

// StatusWriter is the delivery-only contract for terminal status.
// It receives a snapshot and writes it verbatim.
// No logic, no state, no interpretation.
type StatusWriter interface {
	WriteStatus(s status.Snapshot) error
}

// RegisterWriter writes holding registers on one status endpoint.
type RegisterWriter interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}

// StatusPlan locates one terminal's block in status memory.
type StatusPlan struct {
	UnitID     uint8
	Slot       uint16
	DeviceName string
}

// DeviceStatusWriter writes one terminal status block.
type DeviceStatusWriter struct {
	plan StatusPlan
	cli  RegisterWriter

	needFull bool
	last     []uint16 // live slots as last delivered
}

// NewDeviceStatusWriter builds a status writer over cli.
func NewDeviceStatusWriter(plan StatusPlan, cli RegisterWriter) (*DeviceStatusWriter, error) {
	if cli == nil {
		return nil, errors.New("status writer: client required")
	}
	if (int(plan.Slot)+1)*status.SlotsPerDevice > 0x10000 {
		return nil, fmt.Errorf("status writer: slot %d out of address range", plan.Slot)
	}
	return &DeviceStatusWriter{
		plan:     plan,
		cli:      cli,
		needFull: true, // full re-assert on first successful write
	}, nil
}

// WriteStatus delivers a terminal status snapshot into status memory.
// On any write failure, the next call re-asserts the full block.
func (sw *DeviceStatusWriter) WriteStatus(s status.Snapshot) error {
	base := sw.baseAddr()

	// ---- full block write (identity re-assert) ----
	if sw.needFull {
		if err := sw.cli.WriteRegisters(sw.plan.UnitID, base, status.Encode(s, sw.plan.DeviceName)); err != nil {
			return fmt.Errorf("status writer: full block write failed: %w", err)
		}
		sw.needFull = false
		sw.last = status.Live(s)
		return nil
	}

	// ---- incremental: changed live slots only ----
	var errs []string
	live := status.Live(s)
	for slot, v := range live {
		if sw.last[slot] == v {
			continue
		}
		if err := sw.cli.WriteRegisters(sw.plan.UnitID, base+uint16(slot), []uint16{v}); err != nil {
			errs = append(errs, fmt.Sprintf("slot%d write failed: %v", slot, err))
			continue
		}
		sw.last[slot] = v
	}

	if len(errs) > 0 {
		// any partial failure introduces doubt: re-assert on next write
		sw.needFull = true
		return errors.New("status writer: " + strings.Join(errs, " | "))
	}
	return nil
}

func (sw *DeviceStatusWriter) baseAddr() uint16 {
	// each terminal owns a fixed SlotsPerDevice block
	return sw.plan.Slot * status.SlotsPerDevice
}
