// internal/writer/modbus/client.go
package modbus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// EndpointClient writes the status block over Modbus TCP (FC16).
// Writes are serialized because SlaveId is set per call on the shared
// handler.
type EndpointClient struct {
	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

type Config struct {
	Endpoint string
	Timeout  time.Duration

	// IdleTimeout closes the connection after inactivity; the next
	// write reconnects. 0 keeps the goburrow default.
	IdleTimeout time.Duration
}

// NewEndpointClient dials eagerly so a bad endpoint shows up at startup.
func NewEndpointClient(cfg Config) (*EndpointClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("writer modbus: endpoint required")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	}
	if cfg.IdleTimeout > 0 {
		h.IdleTimeout = cfg.IdleTimeout
	}
	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("writer modbus: connect: %w", err)
	}

	return &EndpointClient{handler: h, client: modbus.NewClient(h)}, nil
}

func (c *EndpointClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}

// WriteRegisters writes holding registers on unitID. A failed write
// drops the connection; goburrow redials on the next request.
func (c *EndpointClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	if len(regs) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.handler.SlaveId = unitID
	if _, err := c.client.WriteMultipleRegisters(addr, uint16(len(regs)), packRegisters(regs)); err != nil {
		_ = c.handler.Close()
		return fmt.Errorf("writer modbus: unit %d addr %d: %w", unitID, addr, err)
	}
	return nil
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, 2*len(regs))
	for i, r := range regs {
		binary.BigEndian.PutUint16(out[2*i:], r)
	}
	return out
}
