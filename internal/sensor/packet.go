// internal/sensor/packet.go
package sensor

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Packet layout on the wire:
//
//	EF 01 | address(4) | pid(1) | length(2) | payload | checksum(2)
//
// length counts payload + checksum. checksum is the 16-bit sum of
// pid, both length bytes and every payload byte.

const (
	startHi byte = 0xEF
	startLo byte = 0x01

	headerLen   = 9 // start(2) + address(4) + pid(1) + length(2)
	checksumLen = 2

	// maxBody bounds payload + checksum for the largest data packet (256).
	maxBody = 256 + checksumLen
)

// DefaultAddress is the factory module address.
const DefaultAddress uint32 = 0xFFFFFFFF

// Packet identifiers.
const (
	PIDCommand byte = 0x01
	PIDData    byte = 0x02
	PIDAck     byte = 0x07
	PIDEnd     byte = 0x08
)

// Instruction codes.
const (
	CmdGenImg      byte = 0x01
	CmdImg2Tz      byte = 0x02
	CmdSearch      byte = 0x04
	CmdRegModel    byte = 0x05
	CmdStore       byte = 0x06
	CmdLoadChar    byte = 0x07
	CmdUpChar      byte = 0x08
	CmdReadSysPara byte = 0x0F
	CmdVfyPwd      byte = 0x13
	CmdTemplateNum byte = 0x1D
)

var (
	errShortPacket = errors.New("sensor: short packet")
	errBadStart    = errors.New("sensor: bad start code")
	errBadLength   = errors.New("sensor: bad packet length")
	errChecksum    = errors.New("sensor: checksum mismatch")
)

// Packet is one framed unit exchanged with the module.
type Packet struct {
	Address uint32
	PID     byte
	Payload []byte
}

// Marshal frames the packet.
func (p Packet) Marshal() []byte {
	n := len(p.Payload) + checksumLen

	out := make([]byte, headerLen, headerLen+n)
	out[0] = startHi
	out[1] = startLo
	binary.BigEndian.PutUint32(out[2:6], p.Address)
	out[6] = p.PID
	binary.BigEndian.PutUint16(out[7:9], uint16(n))
	out = append(out, p.Payload...)

	sum := checksum(p.PID, uint16(n), p.Payload)
	return append(out, byte(sum>>8), byte(sum))
}

// ParsePacket decodes one packet from the front of b.
// It returns the packet and the number of bytes consumed.
// errShortPacket means b does not yet hold a full frame.
func ParsePacket(b []byte) (Packet, int, error) {
	if len(b) < headerLen {
		return Packet{}, 0, errShortPacket
	}
	if b[0] != startHi || b[1] != startLo {
		return Packet{}, 0, errBadStart
	}

	n := int(binary.BigEndian.Uint16(b[7:9]))
	if n < checksumLen || n > maxBody {
		return Packet{}, 0, fmt.Errorf("%w: %d", errBadLength, n)
	}
	if len(b) < headerLen+n {
		return Packet{}, 0, errShortPacket
	}

	p := Packet{
		Address: binary.BigEndian.Uint32(b[2:6]),
		PID:     b[6],
		Payload: append([]byte(nil), b[headerLen:headerLen+n-checksumLen]...),
	}

	got := binary.BigEndian.Uint16(b[headerLen+n-checksumLen : headerLen+n])
	if want := checksum(p.PID, uint16(n), p.Payload); got != want {
		return Packet{}, 0, fmt.Errorf("%w: got=0x%04X want=0x%04X", errChecksum, got, want)
	}

	return p, headerLen + n, nil
}

func checksum(pid byte, length uint16, payload []byte) uint16 {
	sum := uint16(pid) + uint16(length>>8) + uint16(length&0xFF)
	for _, b := range payload {
		sum += uint16(b)
	}
	return sum
}

func u16(hi, lo byte) uint16 {
	return uint16(hi)<<8 | uint16(lo)
}
