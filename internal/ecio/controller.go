package ecio

import (
	"fmt"
	"io"

	"clevo-fan/internal/ec"
)

const (
	// StatusCommandPort doubles as the EC status register on read.
	StatusCommandPort = 0x66
	DataPort          = 0x62

	cmdFanControl    = 0x99
	fanControlTarget = 0x01

	// Input buffer full. The EC has not consumed the last byte while set.
	statusIBF = 1
)

// Controller writes EC registers using the command/data port handshake.
//
// Not safe for concurrent use. Nothing prevents another process from driving
// the same ports at the same time.
type Controller struct {
	bus  Bus
	sc   *Port
	data *Port
}

// NewController acquires the status/command and data ports on bus.
func NewController(bus Bus) (*Controller, error) {
	sc, err := OpenPort(bus, StatusCommandPort)
	if err != nil {
		return nil, err
	}
	data, err := OpenPort(bus, DataPort)
	if err != nil {
		return nil, err
	}
	return &Controller{bus: bus, sc: sc, data: data}, nil
}

// Close releases the bus if it holds an OS resource.
func (c *Controller) Close() error {
	if c == nil {
		return nil
	}
	if closer, ok := c.bus.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Controller) waitIBF(step string) error {
	if err := c.sc.WaitForBit(statusIBF, 0); err != nil {
		return fmt.Errorf("ec write failed %s: %w", step, err)
	}
	return nil
}

// WriteRegister sends cmd, reg and value, waiting for the input buffer to
// drain before each byte and once after the last one. A failure leaves the
// write partially applied; the EC state is authoritative and nothing is
// rolled back.
func (c *Controller) WriteRegister(cmd, reg, value byte) error {
	if err := c.waitIBF("before command"); err != nil {
		return err
	}
	if err := c.sc.Write(cmd); err != nil {
		return fmt.Errorf("ec write command: %w", err)
	}

	if err := c.waitIBF("before address"); err != nil {
		return err
	}
	if err := c.data.Write(reg); err != nil {
		return fmt.Errorf("ec write address: %w", err)
	}

	if err := c.waitIBF("before value"); err != nil {
		return err
	}
	if err := c.data.Write(value); err != nil {
		return fmt.Errorf("ec write value: %w", err)
	}

	return c.waitIBF("after value")
}

// SetDuty programs the fan duty.
func (c *Controller) SetDuty(d ec.Duty) error {
	return c.WriteRegister(cmdFanControl, fanControlTarget, ec.EncodeDuty(d))
}
