// internal/status/encode_test.go
package status

import "testing"

func TestEncode_Layout(t *testing.T) {
	s := Snapshot{
		Health:         HealthError,
		LastErrorCode:  0x0A,
		SecondsInError: 12,
		LastDecision:   DecisionRejectedHighTemperature,
		LastIdentity:   9,
		LastConfidence: 88,
		ObjectTemp:     CentiCelsius(38.04),
	}
	regs := Encode(s, "GATE-01")

	if len(regs) != SlotsPerDevice {
		t.Fatalf("block length=%d", len(regs))
	}
	want := map[int]uint16{
		SlotHealthCode:     HealthError,
		SlotLastErrorCode:  0x0A,
		SlotSecondsInError: 12,
		SlotLastDecision:   DecisionRejectedHighTemperature,
		SlotLastIdentity:   9,
		SlotLastConfidence: 88,
		SlotObjectTemp:     3804,
	}
	for slot, v := range want {
		if regs[slot] != v {
			t.Fatalf("slot %d = %d, want %d", slot, regs[slot], v)
		}
	}
	for slot := SlotReservedStart; slot <= SlotReservedEnd; slot++ {
		if regs[slot] != 0 {
			t.Fatalf("reserved slot %d = %d", slot, regs[slot])
		}
	}
	// "GA" "TE" "-0" "1\0"
	if regs[SlotDeviceNameStart] != 0x4741 || regs[SlotDeviceNameStart+3] != 0x3100 || regs[SlotDeviceNameEnd] != 0 {
		t.Fatalf("device name regs % X", regs[SlotDeviceNameStart:])
	}
}

func TestEncodeDeviceName_TruncatesAndSanitizes(t *testing.T) {
	regs := EncodeDeviceName("ABCDEFGHIJKLMNOPQRST")
	if regs[SlotDeviceNameSlots-1] != 0x4F50 { // "OP"
		t.Fatalf("last name reg=%04X", regs[SlotDeviceNameSlots-1])
	}

	regs = EncodeDeviceName("a\tb")
	if regs[0] != 0x613F || regs[1] != 0x6200 {
		t.Fatalf("sanitized regs % X", regs[:2])
	}
}

func TestCentiCelsius(t *testing.T) {
	cases := map[float64]int16{
		36.5:   3650,
		-12.34: -1234,
		0:      0,
		999.0:  32767,
	}
	for in, want := range cases {
		if got := CentiCelsius(in); got != want {
			t.Fatalf("CentiCelsius(%v)=%d want %d", in, got, want)
		}
	}
	if uint16(CentiCelsius(-1)) != 0xFF9C {
		t.Fatalf("negative temperatures must be two's complement")
	}
}
