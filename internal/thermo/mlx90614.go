// internal/thermo/mlx90614.go
package thermo

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// DefaultAddress is the factory SMBus address of the MLX90614.
const DefaultAddress = 0x5A

const (
	regAmbient = 0x06
	regObject1 = 0x07
)

var errSensorFlag = errors.New("thermo: sensor error flag set")

// Config selects the bus and device address.
type Config struct {
	Bus     string // e.g. "1" -> /dev/i2c-1
	Address uint16
}

// MLX90614 reads an MLX90614 infrared thermometer over I2C (SMBus words with PEC).
type MLX90614 struct {
	dev *i2c.Dev
	bus i2c.BusCloser
}

// NewMLX90614 opens the bus and performs one ambient read so that a
// missing or miswired module fails at startup, not at the first match.
func NewMLX90614(cfg Config) (*MLX90614, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("open i2c: %w", err)
	}
	addr := cfg.Address
	if addr == 0 {
		addr = DefaultAddress
	}

	m := &MLX90614{dev: &i2c.Dev{Addr: addr, Bus: bus}, bus: bus}
	if _, err := m.AmbientCelsius(); err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("mlx90614 at 0x%02X not reachable: %w", addr, err)
	}
	return m, nil
}

func (m *MLX90614) ObjectCelsius() (float64, error)  { return m.read(regObject1) }
func (m *MLX90614) AmbientCelsius() (float64, error) { return m.read(regAmbient) }

func (m *MLX90614) Close() error {
	if m.bus != nil {
		return m.bus.Close()
	}
	return nil
}

func (m *MLX90614) read(reg byte) (float64, error) {
	buf := make([]byte, 3) // lsb, msb, pec
	if err := m.dev.Tx([]byte{reg}, buf); err != nil {
		return 0, fmt.Errorf("read reg 0x%02X: %w", reg, err)
	}
	return decodeWord(byte(m.dev.Addr), reg, buf)
}

// decodeWord validates the PEC and converts a RAM temperature word.
func decodeWord(addr, reg byte, buf []byte) (float64, error) {
	if len(buf) < 3 {
		return 0, errors.New("thermo: short read")
	}
	want := pec([]byte{addr << 1, reg, addr<<1 | 1, buf[0], buf[1]})
	if buf[2] != want {
		return 0, fmt.Errorf("thermo: pec mismatch: got=0x%02X want=0x%02X", buf[2], want)
	}
	raw := uint16(buf[0]) | uint16(buf[1])<<8
	if raw&0x8000 != 0 {
		return 0, errSensorFlag
	}
	return celsius(raw), nil
}

// celsius converts a RAM word (0.02 K per LSB).
func celsius(raw uint16) float64 {
	return float64(raw)*0.02 - 273.15
}

// pec is the SMBus packet error code: CRC-8, polynomial x^8+x^2+x+1.
func pec(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x07
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
