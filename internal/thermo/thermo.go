// internal/thermo/thermo.go
package thermo

// Thermometer reads contactless temperatures in degrees Celsius.
type Thermometer interface {
	ObjectCelsius() (float64, error)
	AmbientCelsius() (float64, error)
	Close() error
}

// Fixed is a simulated thermometer returning constant readings.
type Fixed struct {
	Object  float64
	Ambient float64
	Err     error
}

func (f *Fixed) ObjectCelsius() (float64, error)  { return f.Object, f.Err }
func (f *Fixed) AmbientCelsius() (float64, error) { return f.Ambient, f.Err }
func (f *Fixed) Close() error                     { return nil }
