// internal/config/load.go
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Default returns the reference configuration. Load decodes on top of it,
// so omitted keys keep these values.
func Default() Config {
	return Config{
		Terminal: TerminalConfig{
			ID: "terminal",
			Sensor: SensorConfig{
				BaudRate:          57600,
				Address:           0xFFFFFFFF,
				ResponseTimeoutMs: 1000,
			},
			Template: TemplateConfig{
				Size:             534,
				HarvestTimeoutMs: 20000,
			},
			Enroll: EnrollConfig{
				SettleMs:     2000,
				MaxAttempts:  3,
				RetryPauseMs: 1000,
			},
			Verify: VerifyConfig{
				IntervalMs:           2000,
				TemperatureGate:      true,
				TemperatureThreshold: 37.5,
			},
			Thermometer: ThermometerConfig{
				Type:              ThermometerMLX90614,
				I2CAddress:        0x5A,
				SimulatedObjectC:  36.5,
				SimulatedAmbientC: 24.0,
			},
			Backend: BackendConfig{TimeoutMs: 5000},
			Events: EventsConfig{
				MQTT: MQTTConfig{
					ClientID: "fingerprint-terminal",
					Topic:    "terminal/%s/access",
				},
			},
			Status: StatusConfig{
				Transport: StatusTransportModbus,
				UnitID:    1,
				TimeoutMs: 1000,
			},
			Log: LogConfig{Level: "info", Format: "console"},
		},
	}
}

// Load reads a YAML file over Default. Unknown keys are rejected.
// The result is neither validated nor normalized.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes YAML bytes over Default.
func Parse(raw []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}
