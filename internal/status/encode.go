// internal/status/encode.go
package status

import "math"

// Encode converts a Snapshot into a full terminal status block with the
// device name at the end. Layout is protocol-locked.
// No IO. No side effects.
func Encode(s Snapshot, deviceName string) []uint16 {
	regs := make([]uint16, SlotsPerDevice)
	copy(regs, Live(s))
	copy(regs[SlotDeviceNameStart:SlotDeviceNameEnd+1], EncodeDeviceName(deviceName))
	return regs
}

// Live returns the slots 0..SlotLiveEnd of the block.
func Live(s Snapshot) []uint16 {
	regs := make([]uint16, SlotLiveEnd+1)
	regs[SlotHealthCode] = s.Health
	regs[SlotLastErrorCode] = s.LastErrorCode
	regs[SlotSecondsInError] = s.SecondsInError
	regs[SlotLastDecision] = s.LastDecision
	regs[SlotLastIdentity] = s.LastIdentity
	regs[SlotLastConfidence] = s.LastConfidence
	regs[SlotObjectTemp] = uint16(s.ObjectTemp)
	return regs
}

// EncodeDeviceName packs up to 16 ASCII characters into 8 registers.
// Each register stores two ASCII bytes in big-endian order; bytes
// outside printable ASCII become '?'.
func EncodeDeviceName(name string) []uint16 {
	out := make([]uint16, SlotDeviceNameSlots)

	b := []byte(name)
	if len(b) > DeviceNameMaxChars {
		b = b[:DeviceNameMaxChars]
	}
	for i := range b {
		if b[i] < 0x20 || b[i] > 0x7E {
			b[i] = '?'
		}
	}

	for i := 0; i < DeviceNameMaxChars; i += 2 {
		var hi, lo byte
		if i < len(b) {
			hi = b[i]
		}
		if i+1 < len(b) {
			lo = b[i+1]
		}
		out[i/2] = uint16(hi)<<8 | uint16(lo)
	}
	return out
}

// CentiCelsius converts a reading for SlotObjectTemp, clamped to int16.
func CentiCelsius(c float64) int16 {
	v := math.Round(c * 100)
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}
