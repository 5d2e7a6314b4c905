// Package ecio talks to the embedded controller through its two I/O ports
// and reads the kernel's view of the EC register file.
package ecio

import (
	"errors"
	"fmt"
	"time"
)

// Handshake polling bounds.
const (
	MaxPolls     = 100
	PollInterval = time.Millisecond
)

// ErrTimeout is returned when a status bit did not reach the expected value
// within MaxPolls.
var ErrTimeout = errors.New("ecio: timeout waiting for EC status")

// PrivilegeError reports that the OS refused access to an I/O port. Port is
// zero when the port device itself could not be opened.
type PrivilegeError struct {
	Port uint16
	Err  error
}

func (e *PrivilegeError) Error() string {
	if e.Port == 0 {
		return fmt.Sprintf("ecio: port access denied: %v", e.Err)
	}
	return fmt.Sprintf("ecio: access to port %#x denied: %v", e.Port, e.Err)
}

func (e *PrivilegeError) Unwrap() error { return e.Err }

// Bus performs byte-wide I/O port access.
//
// Implementations are not required to be safe for concurrent use.
type Bus interface {
	// Acquire asks the OS for permission to access port.
	Acquire(port uint16) error
	In(port uint16) (byte, error)
	Out(port uint16, v byte) error
}

var sleepFn = time.Sleep

// Port is a single 8-bit I/O port on a Bus.
type Port struct {
	bus  Bus
	addr uint16
}

// OpenPort acquires access to addr. The returned Port is held for the life of
// the process; there is no release.
func OpenPort(bus Bus, addr uint16) (*Port, error) {
	if bus == nil {
		return nil, errors.New("ecio: bus is nil")
	}
	if err := bus.Acquire(addr); err != nil {
		var pe *PrivilegeError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, &PrivilegeError{Port: addr, Err: err}
	}
	return &Port{bus: bus, addr: addr}, nil
}

func (p *Port) Addr() uint16 { return p.addr }

func (p *Port) Read() (byte, error) {
	return p.bus.In(p.addr)
}

func (p *Port) Write(v byte) error {
	return p.bus.Out(p.addr, v)
}

// WaitForBit polls the port until bit equals want (0 or 1), sleeping
// PollInterval between reads. It gives up after MaxPolls reads.
func (p *Port) WaitForBit(bit uint, want byte) error {
	for i := 0; i < MaxPolls; i++ {
		v, err := p.Read()
		if err != nil {
			return fmt.Errorf("ecio: read status port %#x: %w", p.addr, err)
		}
		if (v>>bit)&1 == want {
			return nil
		}
		sleepFn(PollInterval)
	}
	return fmt.Errorf("%w: port %#x bit %d != %d after %d polls", ErrTimeout, p.addr, bit, want, MaxPolls)
}
