package ec

import (
	"math"
	"strconv"
)

// Temperature is a temperature in degrees Celsius.
//
// The EC reports whole degrees as an unsigned byte; the float representation
// exists so smoothing filters can average samples.
type Temperature float64

// MaxTemperature stands in for an unknown temperature. Callers treat it as
// the worst case.
const MaxTemperature = Temperature(math.MaxFloat64)

// TemperatureFromByte widens a raw EC register value.
func TemperatureFromByte(raw byte) Temperature {
	return Temperature(raw)
}

// Degrees truncates to whole degrees, saturating into [0, 255] the same way
// the EC register would.
func (t Temperature) Degrees() uint8 {
	v := float64(t)
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}

// Value formats the temperature without a unit, e.g. "45.0".
func (t Temperature) Value() string {
	return strconv.FormatFloat(float64(t), 'f', 1, 64)
}

func (t Temperature) String() string {
	return t.Value() + "°C"
}
