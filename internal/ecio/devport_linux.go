//go:build linux

package ecio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

var devPortPath = "/dev/port"

// DevPort is a Bus backed by /dev/port, where the file offset is the port
// number. Opening it requires CAP_SYS_RAWIO.
type DevPort struct {
	f    *os.File
	path string
}

func OpenDevPort() (*DevPort, error) {
	f, err := os.OpenFile(devPortPath, os.O_RDWR, 0)
	if err != nil {
		return nil, &PrivilegeError{Err: fmt.Errorf("open %s: %w", devPortPath, err)}
	}
	return &DevPort{f: f, path: devPortPath}, nil
}

// Acquire raises the I/O privilege for port via ioperm(2) where the
// architecture has one.
func (d *DevPort) Acquire(port uint16) error {
	if err := iopermFn(port); err != nil {
		return &PrivilegeError{Port: port, Err: err}
	}
	return nil
}

func (d *DevPort) In(port uint16) (byte, error) {
	var b [1]byte
	n, err := unix.Pread(int(d.f.Fd()), b[:], int64(port))
	if err != nil {
		return 0, fmt.Errorf("ecio: inb %#x: %w", port, err)
	}
	if n != 1 {
		return 0, fmt.Errorf("ecio: inb %#x: short read", port)
	}
	return b[0], nil
}

func (d *DevPort) Out(port uint16, v byte) error {
	n, err := unix.Pwrite(int(d.f.Fd()), []byte{v}, int64(port))
	if err != nil {
		return fmt.Errorf("ecio: outb %#x: %w", port, err)
	}
	if n != 1 {
		return fmt.Errorf("ecio: outb %#x: short write", port)
	}
	return nil
}

func (d *DevPort) Close() error {
	if d == nil || d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}
