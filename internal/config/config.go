// internal/config/config.go
package config

import "time"

type Config struct {
	Terminal TerminalConfig `yaml:"terminal"`
}

type TerminalConfig struct {
	ID          string            `yaml:"id"`
	Sensor      SensorConfig      `yaml:"sensor"`
	Template    TemplateConfig    `yaml:"template"`
	Enroll      EnrollConfig      `yaml:"enroll"`
	Verify      VerifyConfig      `yaml:"verify"`
	Thermometer ThermometerConfig `yaml:"thermometer"`
	Backend     BackendConfig     `yaml:"backend"`
	Events      EventsConfig      `yaml:"events"`
	Status      StatusConfig      `yaml:"status"`
	Log         LogConfig         `yaml:"log"`
}

// ---- SENSOR ----

type SensorConfig struct {
	Port              string `yaml:"port"`
	BaudRate          int    `yaml:"baud_rate"`
	Address           uint32 `yaml:"address"`
	Password          uint32 `yaml:"password"`
	ResponseTimeoutMs int    `yaml:"response_timeout_ms"`
	PollIntervalMs    int    `yaml:"poll_interval_ms"` // 0 = busy poll
	Capacity          uint16 `yaml:"capacity"`         // 0 = read from module
	Simulate          bool   `yaml:"simulate"`
}

// ---- TEMPLATE TRANSFER ----

type TemplateConfig struct {
	Size             int  `yaml:"size"`
	HarvestTimeoutMs int  `yaml:"harvest_timeout_ms"`
	UploadPartial    bool `yaml:"upload_partial"`
}

// ---- WORKFLOWS ----

type EnrollConfig struct {
	SettleMs int `yaml:"settle_ms"`

	// Retryable sensor faults restart the enrollment up to MaxAttempts
	// times, RetryPauseMs apart, before returning to the prompt.
	MaxAttempts  int `yaml:"max_attempts"`
	RetryPauseMs int `yaml:"retry_pause_ms"`
}

type VerifyConfig struct {
	IntervalMs           int     `yaml:"interval_ms"`
	TemperatureGate      bool    `yaml:"temperature_gate"`
	TemperatureThreshold float64 `yaml:"temperature_threshold_c"`
}

// ---- THERMOMETER ----

const (
	ThermometerMLX90614   = "mlx90614"
	ThermometerSimulation = "simulation"
	ThermometerNone       = "none"
)

type ThermometerConfig struct {
	Type              string  `yaml:"type"`
	I2CBus            string  `yaml:"i2c_bus"`
	I2CAddress        uint16  `yaml:"i2c_address"`
	SimulatedObjectC  float64 `yaml:"simulated_object_c"`
	SimulatedAmbientC float64 `yaml:"simulated_ambient_c"`
}

// ---- BACKEND ----

type BackendConfig struct {
	UploadURL string `yaml:"upload_url"`
	FetchURL  string `yaml:"fetch_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// ---- EVENTS ----

type EventsConfig struct {
	MQTT MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig is opt-in: an empty server disables the publisher.
type MQTTConfig struct {
	Server   string `yaml:"server"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
}

// ---- TERMINAL STATUS BLOCK ----

const (
	StatusTransportModbus = "modbus"
	StatusTransportIngest = "ingest"
)

// StatusConfig is opt-in: an empty endpoint disables the status block.
type StatusConfig struct {
	Endpoint   string `yaml:"endpoint"`
	Transport  string `yaml:"transport"`
	UnitID     uint8  `yaml:"unit_id"`
	Slot       uint16 `yaml:"slot"`
	DeviceName string `yaml:"device_name"`
	TimeoutMs  int    `yaml:"timeout_ms"`
}

// ---- LOGGING ----

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---- DURATIONS ----

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func (s SensorConfig) ResponseTimeout() time.Duration  { return ms(s.ResponseTimeoutMs) }
func (s SensorConfig) PollInterval() time.Duration     { return ms(s.PollIntervalMs) }
func (t TemplateConfig) HarvestTimeout() time.Duration { return ms(t.HarvestTimeoutMs) }
func (e EnrollConfig) Settle() time.Duration           { return ms(e.SettleMs) }
func (e EnrollConfig) RetryPause() time.Duration       { return ms(e.RetryPauseMs) }
func (v VerifyConfig) Interval() time.Duration         { return ms(v.IntervalMs) }
func (b BackendConfig) Timeout() time.Duration         { return ms(b.TimeoutMs) }
func (s StatusConfig) Timeout() time.Duration          { return ms(s.TimeoutMs) }
