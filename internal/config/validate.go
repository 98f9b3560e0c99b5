// internal/config/validate.go
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tamzrod/fingerprint-terminal/internal/logger"
	"github.com/tamzrod/fingerprint-terminal/internal/status"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	t := cfg.Terminal

	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("terminal.id is required")
	}

	// ------------------------------------------------------------
	// SENSOR
	// ------------------------------------------------------------

	s := t.Sensor
	if !s.Simulate && s.Port == "" {
		return fmt.Errorf("terminal.sensor.port is required unless simulate is set")
	}
	if s.BaudRate <= 0 || s.BaudRate%9600 != 0 {
		return fmt.Errorf("terminal.sensor.baud_rate must be a positive multiple of 9600 (got %d)", s.BaudRate)
	}
	if s.ResponseTimeoutMs <= 0 {
		return fmt.Errorf("terminal.sensor.response_timeout_ms must be > 0")
	}
	if s.PollIntervalMs < 0 {
		return fmt.Errorf("terminal.sensor.poll_interval_ms must be >= 0")
	}

	// ------------------------------------------------------------
	// TEMPLATE TRANSFER
	// ------------------------------------------------------------

	if t.Template.Size <= 0 {
		return fmt.Errorf("terminal.template.size must be > 0")
	}
	if t.Template.HarvestTimeoutMs <= 0 {
		return fmt.Errorf("terminal.template.harvest_timeout_ms must be > 0")
	}

	// ------------------------------------------------------------
	// WORKFLOWS
	// ------------------------------------------------------------

	if t.Enroll.SettleMs < 0 {
		return fmt.Errorf("terminal.enroll.settle_ms must be >= 0")
	}
	if t.Enroll.MaxAttempts < 1 {
		return fmt.Errorf("terminal.enroll.max_attempts must be >= 1")
	}
	if t.Enroll.RetryPauseMs < 0 {
		return fmt.Errorf("terminal.enroll.retry_pause_ms must be >= 0")
	}
	if t.Verify.IntervalMs <= 0 {
		return fmt.Errorf("terminal.verify.interval_ms must be > 0")
	}
	if t.Verify.TemperatureGate {
		if t.Thermometer.Type == ThermometerNone {
			return fmt.Errorf("terminal.verify.temperature_gate requires a thermometer")
		}
		if t.Verify.TemperatureThreshold <= 0 {
			return fmt.Errorf("terminal.verify.temperature_threshold_c must be > 0")
		}
	}

	// ------------------------------------------------------------
	// THERMOMETER
	// ------------------------------------------------------------

	switch t.Thermometer.Type {
	case ThermometerMLX90614:
		if t.Thermometer.I2CAddress == 0 || t.Thermometer.I2CAddress > 0x7F {
			return fmt.Errorf("terminal.thermometer.i2c_address must be a 7-bit address (got 0x%X)", t.Thermometer.I2CAddress)
		}
	case ThermometerSimulation, ThermometerNone:
	default:
		return fmt.Errorf("terminal.thermometer.type %q is not one of mlx90614|simulation|none", t.Thermometer.Type)
	}

	// ------------------------------------------------------------
	// BACKEND
	// ------------------------------------------------------------

	if err := validURL("terminal.backend.upload_url", t.Backend.UploadURL, true); err != nil {
		return err
	}
	if err := validURL("terminal.backend.fetch_url", t.Backend.FetchURL, false); err != nil {
		return err
	}

	// ------------------------------------------------------------
	// EVENTS (OPT-IN)
	// ------------------------------------------------------------

	if m := t.Events.MQTT; m.Server != "" {
		if m.Topic == "" {
			return fmt.Errorf("terminal.events.mqtt.topic is required when server is set")
		}
		if strings.Count(m.Topic, "%s") > 1 {
			return fmt.Errorf("terminal.events.mqtt.topic may hold at most one %%s")
		}
	}

	// ------------------------------------------------------------
	// TERMINAL STATUS BLOCK (OPT-IN)
	// ------------------------------------------------------------

	st := t.Status
	if st.Endpoint != "" {
		switch st.Transport {
		case StatusTransportModbus, StatusTransportIngest:
		default:
			return fmt.Errorf("terminal.status.transport %q is not one of modbus|ingest", st.Transport)
		}
		if (int(st.Slot)+1)*status.SlotsPerDevice > 0x10000 {
			return fmt.Errorf("terminal.status.slot %d is beyond the register address space", st.Slot)
		}
	}

	// device_name sanity (ASCII only)
	for i := 0; i < len(st.DeviceName); i++ {
		if st.DeviceName[i] > 0x7F {
			return fmt.Errorf("terminal.status.device_name must contain ASCII characters only")
		}
	}

	// ------------------------------------------------------------
	// LOGGING
	// ------------------------------------------------------------

	if !logger.ValidLevel(t.Log.Level) {
		return fmt.Errorf("terminal.log.level %q is not a known level", t.Log.Level)
	}
	switch t.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("terminal.log.format %q is not one of console|json", t.Log.Format)
	}

	return nil
}

func validURL(key, raw string, required bool) error {
	if raw == "" {
		if required {
			return fmt.Errorf("%s is required", key)
		}
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) url (got %q)", key, raw)
	}
	return nil
}
