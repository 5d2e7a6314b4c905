package ec

import "strconv"

// rpmTicks converts the EC tachometer period into RPM. Calibrated for the
// Clevo controller family; do not change.
const rpmTicks = 2156220

// Speed is a fan speed in revolutions per minute.
type Speed uint32

// SpeedFromRaw decodes the two tachometer period bytes. A zero period means
// the fan is stopped.
func SpeedFromRaw(lo, hi byte) Speed {
	period := uint32(hi)<<8 | uint32(lo)
	if period == 0 {
		return 0
	}
	return Speed(rpmTicks / period)
}

func (s Speed) RPM() uint32 { return uint32(s) }

// Value formats the speed without a unit.
func (s Speed) Value() string {
	return strconv.FormatUint(uint64(s), 10)
}

func (s Speed) String() string {
	return s.Value() + " RPM"
}
