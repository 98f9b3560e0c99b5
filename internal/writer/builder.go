// internal/writer/builder.go
package writer

import (
	"errors"
	"fmt"

	cfg "github.com/tamzrod/fingerprint-terminal/internal/config"
	"github.com/tamzrod/fingerprint-terminal/internal/writer/ingest"
	wmodbus "github.com/tamzrod/fingerprint-terminal/internal/writer/modbus"
)

// Endpoint is a status memory connection.
type Endpoint interface {
	RegisterWriter
	Close() error
}

// BuildStatusWriter connects the status endpoint named by s and wraps it
// in a DeviceStatusWriter. Assumes config has already passed validation.
// The returned close func releases the endpoint.
func BuildStatusWriter(s cfg.StatusConfig) (*DeviceStatusWriter, func() error, error) {
	if s.Endpoint == "" {
		return nil, nil, errors.New("writer: status endpoint required")
	}

	ep, err := dial(s)
	if err != nil {
		return nil, nil, fmt.Errorf("writer: status endpoint %s: %w", s.Endpoint, err)
	}

	sw, err := NewDeviceStatusWriter(StatusPlan{
		UnitID:     s.UnitID,
		Slot:       s.Slot,
		DeviceName: s.DeviceName,
	}, ep)
	if err != nil {
		_ = ep.Close()
		return nil, nil, err
	}
	return sw, ep.Close, nil
}

func dial(s cfg.StatusConfig) (Endpoint, error) {
	switch s.Transport {
	case cfg.StatusTransportIngest:
		return ingest.NewEndpointClient(ingest.Config{Endpoint: s.Endpoint, Timeout: s.Timeout()})
	case cfg.StatusTransportModbus, "":
		return wmodbus.NewEndpointClient(wmodbus.Config{Endpoint: s.Endpoint, Timeout: s.Timeout()})
	default:
		return nil, fmt.Errorf("unknown transport %q", s.Transport)
	}
}
