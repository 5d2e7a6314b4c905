package ec

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrPercentageTooBig   = errors.New("invalid percentage above 100%")
	ErrPercentageNegative = errors.New("invalid percentage below 0%")
)

// Duty is the fraction of maximum fan drive strength, in [0, 1].
//
// The zero value is 0% duty.
type Duty struct {
	ratio float64
}

// MinDuty and MaxDuty bound every Duty.
var (
	MinDuty = Duty{ratio: 0}
	MaxDuty = Duty{ratio: 1}
)

// DutyFromPercentage fails for percentages outside [0, 100].
func DutyFromPercentage(percentage float64) (Duty, error) {
	switch {
	case percentage > 100:
		return Duty{}, ErrPercentageTooBig
	case percentage < 0:
		return Duty{}, ErrPercentageNegative
	case math.IsNaN(percentage):
		return Duty{}, fmt.Errorf("invalid percentage %v", percentage)
	}
	return Duty{ratio: percentage / 100}, nil
}

// SaturatingDuty clamps the percentage into [0, 100] instead of failing.
// NaN maps to full duty.
func SaturatingDuty(percentage float64) Duty {
	switch {
	case math.IsNaN(percentage), percentage > 100:
		return MaxDuty
	case percentage < 0:
		return MinDuty
	}
	return Duty{ratio: percentage / 100}
}

// ParseDutyPercentage parses a user supplied percentage such as "42.5".
func ParseDutyPercentage(s string) (Duty, error) {
	p, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return Duty{}, fmt.Errorf("parse percentage %q: %w", s, err)
	}
	return DutyFromPercentage(p)
}

// DutyFromPoint maps point linearly from [lo, hi] onto [0, 1].
func DutyFromPoint(point, lo, hi byte) Duty {
	start, end := float64(lo), float64(hi)
	return Duty{ratio: (float64(point) - start) / (end - start)}
}

// Point is the inverse of DutyFromPoint. The result is truncated, so a
// decode/encode round trip may lose one unit.
func (d Duty) Point(lo, hi byte) byte {
	start, end := float64(lo), float64(hi)
	return byte(d.ratio*(end-start) + start)
}

func (d Duty) Ratio() float64 { return d.ratio }

func (d Duty) Percentage() float64 { return d.ratio * 100 }

// Less reports whether d is a lower duty than o.
func (d Duty) Less(o Duty) bool { return d.ratio < o.ratio }

// Value formats the duty without a unit, e.g. "50.00".
func (d Duty) Value() string {
	return strconv.FormatFloat(d.Percentage(), 'f', 2, 64)
}

func (d Duty) String() string {
	return d.Value() + "%"
}
