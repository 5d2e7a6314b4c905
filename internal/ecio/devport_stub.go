//go:build !linux

package ecio

import "fmt"

// Stub implementation for non-Linux platforms.
type DevPort struct{}

func OpenDevPort() (*DevPort, error) {
	return nil, fmt.Errorf("ecio: port i/o unsupported on this platform")
}

func (d *DevPort) Acquire(port uint16) error {
	return &PrivilegeError{Port: port, Err: fmt.Errorf("unsupported platform")}
}

func (d *DevPort) In(port uint16) (byte, error) {
	return 0, fmt.Errorf("ecio: port i/o unsupported")
}

func (d *DevPort) Out(port uint16, v byte) error {
	return fmt.Errorf("ecio: port i/o unsupported")
}

func (d *DevPort) Close() error { return nil }
