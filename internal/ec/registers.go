// Package ec decodes the Clevo embedded controller register file.
//
// Offsets (one byte each unless noted):
//
//	0x07      CPU temperature, degrees C
//	0xCD      GPU temperature, degrees C (often unreliable on real hardware)
//	0xCE      fan duty point, 0..255
//	0xD0/0xD1 fan tachometer period, high/low byte
package ec

import "fmt"

// BlockSize is the size of the EC register file.
const BlockSize = 0x100

const (
	regCPUTemp = 0x07
	regGPUTemp = 0xCD
	regFanDuty = 0xCE
	regFanHi   = 0xD0
	regFanLo   = 0xD1
)

// Registers is one decoded snapshot of the register file.
type Registers struct {
	CPUTemp  Temperature
	GPUTemp  Temperature
	FanDuty  Duty
	FanSpeed Speed
}

// Decode reads a full register block. Blocks shorter than BlockSize are
// rejected rather than partially decoded.
func Decode(block []byte) (Registers, error) {
	if len(block) < BlockSize {
		return Registers{}, fmt.Errorf("ec: short register block: %d bytes, want %d", len(block), BlockSize)
	}
	return Registers{
		CPUTemp:  TemperatureFromByte(block[regCPUTemp]),
		GPUTemp:  TemperatureFromByte(block[regGPUTemp]),
		FanDuty:  DutyFromPoint(block[regFanDuty], 0, 255),
		FanSpeed: SpeedFromRaw(block[regFanLo], block[regFanHi]),
	}, nil
}

// EncodeDuty returns the byte the EC expects for a duty write.
func EncodeDuty(d Duty) byte {
	return d.Point(0, 255)
}

func (r Registers) String() string {
	return fmt.Sprintf("CPU Temp: %s\nGPU Temp: %s\nFan Duty: %s\nFan Speed: %s",
		r.CPUTemp, r.GPUTemp, r.FanDuty, r.FanSpeed)
}
