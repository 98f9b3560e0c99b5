// internal/sensor/simulator.go
package sensor

import (
	"encoding/binary"
	"sync"

	"github.com/tamzrod/fingerprint-terminal/internal/link"
)

// Simulator emulates a fingerprint module behind a link.Link.
// Fingers are identified by a non-zero number; a finger id of 0 means
// nothing is on the glass.
type Simulator struct {
	mu sync.Mutex

	address      uint32
	password     uint32
	capacity     uint16
	templateSize int
	score        uint16

	in  []byte // host -> module, not yet framed
	out []byte // module -> host

	script      []uint16
	auto        uint16
	autoPresent bool

	image   uint16
	buffers [3]uint16
	store   map[uint16]uint16
	inject  map[byte][]byte

	truncate int
	commands []byte

	// OnIdle is called each time Available finds nothing pending.
	OnIdle func()
}

var _ link.Link = (*Simulator)(nil)

// NewSimulator returns an empty module with the given capacity and
// template size, answering on the factory address with password 0.
func NewSimulator(capacity uint16, templateSize int) *Simulator {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	return &Simulator{
		address:      DefaultAddress,
		capacity:     capacity,
		templateSize: templateSize,
		score:        100,
		store:        make(map[uint16]uint16),
		inject:       make(map[byte][]byte),
	}
}

// ---- scripting ----

// Present queues the outcome of future GenImg commands, one per call.
func (s *Simulator) Present(fingers ...uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, fingers...)
}

// Auto makes finger alternate between placed and lifted on every GenImg
// once the script is exhausted. 0 disables it.
func (s *Simulator) Auto(finger uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auto = finger
	s.autoPresent = false
}

// Inject queues raw confirmation codes returned, one each, by the next
// commands with instruction cmd, instead of the simulated outcome.
func (s *Simulator) Inject(cmd byte, codes ...byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inject[cmd] = append(s.inject[cmd], codes...)
}

// Enroll stores finger at slot directly.
func (s *Simulator) Enroll(slot, finger uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[slot] = finger
}

// Stored returns the finger held at slot.
func (s *Simulator) Stored(slot uint16) (uint16, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.store[slot]
	return f, ok
}

// Truncate drops the last n bytes of every template upload.
func (s *Simulator) Truncate(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.truncate = n
}

// SetScore sets the confidence reported on a match.
func (s *Simulator) SetScore(score uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.score = score
}

// SetPassword sets the password VfyPwd must present.
func (s *Simulator) SetPassword(pw uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.password = pw
}

// Commands returns the instruction codes received so far, in order.
func (s *Simulator) Commands() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.commands...)
}

// Template returns the bytes the simulator uploads for finger.
func (s *Simulator) Template(finger uint16) []byte {
	out := make([]byte, s.templateSize)
	for i := range out {
		out[i] = byte(int(finger)*31 + i*7)
	}
	return out
}

// ---- link.Link ----

func (s *Simulator) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.in = append(s.in, p...)
	for len(s.in) > 0 {
		pkt, n, err := ParsePacket(s.in)
		if err == errShortPacket {
			break
		}
		if err != nil {
			// garbage: drop one byte and resync
			s.in = s.in[1:]
			continue
		}
		s.in = s.in[n:]
		if pkt.PID == PIDCommand && len(pkt.Payload) > 0 && pkt.Address == s.address {
			s.handle(pkt.Payload)
		}
	}
	return len(p), nil
}

func (s *Simulator) Available() bool {
	s.mu.Lock()
	n := len(s.out)
	idle := s.OnIdle
	s.mu.Unlock()

	if n == 0 && idle != nil {
		idle()
	}
	return n > 0
}

func (s *Simulator) ReadByte() (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.out) == 0 {
		return 0, link.ErrNoData
	}
	b := s.out[0]
	s.out = s.out[1:]
	return b, nil
}

func (s *Simulator) Close() error { return nil }

// ---- module behaviour ----

func (s *Simulator) handle(cmd []byte) {
	s.commands = append(s.commands, cmd[0])

	if q := s.inject[cmd[0]]; len(q) > 0 {
		s.inject[cmd[0]] = q[1:]
		s.ack(q[0])
		return
	}

	switch cmd[0] {
	case CmdGenImg:
		s.image = s.nextFinger()
		if s.image == 0 {
			s.ack(ConfirmNoFinger)
			return
		}
		s.ack(ConfirmOK)

	case CmdImg2Tz:
		if len(cmd) < 2 || (cmd[1] != 1 && cmd[1] != 2) {
			s.ack(ConfirmPacketRecvErr)
			return
		}
		if s.image == 0 {
			s.ack(ConfirmInvalidImage)
			return
		}
		s.buffers[cmd[1]] = s.image
		s.ack(ConfirmOK)

	case CmdRegModel:
		if s.buffers[1] == 0 || s.buffers[1] != s.buffers[2] {
			s.ack(ConfirmEnrollMismatch)
			return
		}
		s.buffers[2] = s.buffers[1]
		s.ack(ConfirmOK)

	case CmdStore:
		if len(cmd) < 4 {
			s.ack(ConfirmPacketRecvErr)
			return
		}
		page := u16(cmd[2], cmd[3])
		if page >= s.capacity || cmd[1] < 1 || cmd[1] > 2 {
			s.ack(ConfirmBadLocation)
			return
		}
		s.store[page] = s.buffers[cmd[1]]
		s.ack(ConfirmOK)

	case CmdLoadChar:
		if len(cmd) < 4 {
			s.ack(ConfirmPacketRecvErr)
			return
		}
		page := u16(cmd[2], cmd[3])
		f, ok := s.store[page]
		if !ok || cmd[1] < 1 || cmd[1] > 2 {
			s.ack(ConfirmDBReadFail)
			return
		}
		s.buffers[cmd[1]] = f
		s.ack(ConfirmOK)

	case CmdUpChar:
		if len(cmd) < 2 || cmd[1] < 1 || cmd[1] > 2 || s.buffers[cmd[1]] == 0 {
			s.ack(ConfirmUploadFail)
			return
		}
		s.ack(ConfirmOK)
		tpl := s.Template(s.buffers[cmd[1]])
		if s.truncate > 0 {
			if s.truncate >= len(tpl) {
				tpl = nil
			} else {
				tpl = tpl[:len(tpl)-s.truncate]
			}
		}
		s.out = append(s.out, tpl...)

	case CmdSearch:
		if len(cmd) < 6 || cmd[1] < 1 || cmd[1] > 2 {
			s.ack(ConfirmPacketRecvErr)
			return
		}
		want := s.buffers[cmd[1]]
		start, count := u16(cmd[2], cmd[3]), u16(cmd[4], cmd[5])
		for page := uint32(start); page < uint32(start)+uint32(count); page++ {
			if f, ok := s.store[uint16(page)]; ok && want != 0 && f == want {
				s.ack(ConfirmOK, byte(page>>8), byte(page), byte(s.score>>8), byte(s.score))
				return
			}
		}
		s.ack(ConfirmNotFound, 0, 0, 0, 0)

	case CmdVfyPwd:
		if len(cmd) < 5 || binary.BigEndian.Uint32(cmd[1:5]) != s.password {
			s.ack(ConfirmPassFail)
			return
		}
		s.ack(ConfirmOK)

	case CmdReadSysPara:
		p := make([]byte, 16)
		binary.BigEndian.PutUint16(p[2:4], 0x0000) // system id
		binary.BigEndian.PutUint16(p[4:6], s.capacity)
		binary.BigEndian.PutUint16(p[6:8], 3) // security level
		binary.BigEndian.PutUint32(p[8:12], s.address)
		binary.BigEndian.PutUint16(p[12:14], 2) // 128-byte packets
		binary.BigEndian.PutUint16(p[14:16], 6) // 57600 baud
		s.ack(ConfirmOK, p...)

	case CmdTemplateNum:
		n := uint16(len(s.store))
		s.ack(ConfirmOK, byte(n>>8), byte(n))

	default:
		s.ack(ConfirmPacketRecvErr)
	}
}

func (s *Simulator) nextFinger() uint16 {
	if len(s.script) > 0 {
		f := s.script[0]
		s.script = s.script[1:]
		return f
	}
	if s.auto == 0 {
		return 0
	}
	s.autoPresent = !s.autoPresent
	if s.autoPresent {
		return s.auto
	}
	return 0
}

func (s *Simulator) ack(code byte, extra ...byte) {
	payload := append([]byte{code}, extra...)
	s.out = append(s.out, Packet{Address: s.address, PID: PIDAck, Payload: payload}.Marshal()...)
}
