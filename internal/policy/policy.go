// Package policy maps a temperature to a fan duty.
//
// Policies work on whole degrees (see ec.Temperature.Degrees) and saturate
// into [0%, 100%]; they never fail.
package policy

import (
	"fmt"
	"math"

	"github.com/sierrasoftworks/humane-errors-go"

	"clevo-fan/internal/ec"
)

// Policy computes the next fan duty for a temperature.
type Policy interface {
	Duty(t ec.Temperature) ec.Duty
}

// Linear: duty% = offset + slope*temp.
type Linear struct {
	Slope  float64
	Offset float64
}

func (p Linear) Duty(t ec.Temperature) ec.Duty {
	return ec.SaturatingDuty(p.Offset + float64(t.Degrees())*p.Slope)
}

// Base is the base of the Exponential policy.
type Base int

const (
	Euler Base = iota
	Binary
)

// ParseBase accepts "e"/"euler" and "2"/"bin"/"binary".
func ParseBase(s string) (Base, error) {
	switch s {
	case "e", "euler":
		return Euler, nil
	case "2", "bin", "binary":
		return Binary, nil
	}
	return 0, humane.New(fmt.Sprintf("invalid exponential base: %q", s),
		"Use \"e\" for the natural exponential function or \"2\" for the binary one.",
	)
}

func (b Base) String() string {
	if b == Binary {
		return "2"
	}
	return "e"
}

func (b Base) exp(x float64) float64 {
	if b == Binary {
		return math.Exp2(x)
	}
	return math.Exp(x)
}

// Exponential: duty% = factor * base^temp.
type Exponential struct {
	Base   Base
	Factor float64
}

func (p Exponential) Duty(t ec.Temperature) ec.Duty {
	return ec.SaturatingDuty(p.Factor * p.Base.exp(float64(t.Degrees())))
}

// Quadratic: duty% = factor * temp^2.
type Quadratic struct {
	Factor float64
}

func (p Quadratic) Duty(t ec.Temperature) ec.Duty {
	d := float64(t.Degrees())
	return ec.SaturatingDuty(p.Factor * d * d)
}
