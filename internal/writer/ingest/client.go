// internal/writer/ingest/client.go
package ingest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

const (
	magicHi byte = 0x52 // 'R'
	magicLo byte = 0x49 // 'I'

	versionV1 byte = 0x01

	// AreaHoldingRegisters is the only area the status block uses.
	AreaHoldingRegisters byte = 3

	headerLen = 10

	respOK       byte = 0x00
	respRejected byte = 0x01
)

// ErrRejected is returned when the endpoint refuses a packet.
var ErrRejected = errors.New("writer ingest: rejected")

// EndpointClient speaks Raw Ingest v1: one packet per connection,
// answered by a single status byte. Stateless.
type EndpointClient struct {
	endpoint string
	timeout  time.Duration
}

type Config struct {
	Endpoint string
	Timeout  time.Duration
}

func NewEndpointClient(cfg Config) (*EndpointClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("writer ingest: endpoint required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &EndpointClient{endpoint: cfg.Endpoint, timeout: cfg.Timeout}, nil
}

func (c *EndpointClient) Close() error { return nil }

// WriteRegisters delivers holding registers for unitID starting at addr.
func (c *EndpointClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	if len(regs) == 0 {
		return nil
	}
	return c.send(buildPacketV1(AreaHoldingRegisters, unitID, addr, regs))
}

func (c *EndpointClient) send(pkt []byte) error {
	conn, err := net.DialTimeout("tcp", c.endpoint, c.timeout)
	if err != nil {
		return fmt.Errorf("writer ingest: dial: %w", err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(c.timeout))
	if _, err := conn.Write(pkt); err != nil {
		return fmt.Errorf("writer ingest: write: %w", err)
	}

	var resp [1]byte
	if _, err := io.ReadFull(conn, resp[:]); err != nil {
		return fmt.Errorf("writer ingest: read status: %w", err)
	}

	switch resp[0] {
	case respOK:
		return nil
	case respRejected:
		return ErrRejected
	default:
		return fmt.Errorf("writer ingest: unknown status 0x%02x", resp[0])
	}
}

// buildPacketV1 lays out one Raw Ingest v1 packet.
//
//	0-1  magic "RI"
//	2    version
//	3    area
//	4-5  unit id
//	6-7  address
//	8-9  count
//	10+  registers, big-endian
func buildPacketV1(area byte, unitID uint8, addr uint16, regs []uint16) []byte {
	pkt := make([]byte, headerLen+2*len(regs))
	pkt[0], pkt[1], pkt[2], pkt[3] = magicHi, magicLo, versionV1, area
	binary.BigEndian.PutUint16(pkt[4:6], uint16(unitID))
	binary.BigEndian.PutUint16(pkt[6:8], addr)
	binary.BigEndian.PutUint16(pkt[8:10], uint16(len(regs)))
	for i, r := range regs {
		binary.BigEndian.PutUint16(pkt[headerLen+2*i:], r)
	}
	return pkt
}
