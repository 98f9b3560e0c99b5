// internal/thermo/mlx90614_test.go
package thermo

import (
	"errors"
	"math"
	"testing"
)

func TestCelsius(t *testing.T) {
	tests := []struct {
		raw  uint16
		want float64
	}{
		{0x3AF7, 28.75}, // datasheet example word 15095 -> 301.90 K
		{13658, 0.01},
		{15533, 37.51},
	}
	for _, tt := range tests {
		if got := celsius(tt.raw); math.Abs(got-tt.want) > 0.01 {
			t.Fatalf("celsius(0x%04X)=%.3f want %.2f", tt.raw, got, tt.want)
		}
	}
}

func TestPEC_KnownVector(t *testing.T) {
	// SMBus read word from the MLX90614 datasheet: SA=0x5A, cmd=0x07,
	// data 0xD2 0x3A, PEC 0x30.
	got := pec([]byte{0xB4, 0x07, 0xB5, 0xD2, 0x3A})
	if got != 0x30 {
		t.Fatalf("pec=0x%02X want 0x30", got)
	}
}

func TestDecodeWord(t *testing.T) {
	buf := []byte{0xD2, 0x3A, 0x30}
	v, err := decodeWord(0x5A, regObject1, buf)
	if err != nil {
		t.Fatalf("decodeWord err=%v", err)
	}
	if math.Abs(v-(float64(0x3AD2)*0.02-273.15)) > 1e-9 {
		t.Fatalf("value=%f", v)
	}

	bad := []byte{0xD2, 0x3A, 0x31}
	if _, err := decodeWord(0x5A, regObject1, bad); err == nil {
		t.Fatalf("expected pec error")
	}

	flagged := []byte{0x00, 0x80, 0}
	flagged[2] = pec([]byte{0xB4, regObject1, 0xB5, flagged[0], flagged[1]})
	if _, err := decodeWord(0x5A, regObject1, flagged); !errors.Is(err, errSensorFlag) {
		t.Fatalf("expected error flag, got %v", err)
	}
}

func TestFixed(t *testing.T) {
	f := &Fixed{Object: 36.4, Ambient: 22}
	o, _ := f.ObjectCelsius()
	a, _ := f.AmbientCelsius()
	if o != 36.4 || a != 22 {
		t.Fatalf("got %v %v", o, a)
	}
}
