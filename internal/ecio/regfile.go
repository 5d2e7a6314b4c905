package ecio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"clevo-fan/internal/ec"
)

// DefaultRegisterPath is the kernel's debugfs view of the EC register file
// (needs the ec_sys module).
const DefaultRegisterPath = "/sys/kernel/debug/ec/ec0/io"

// RegisterFile reads the EC register file through the kernel rather than the
// raw ports, so it never races a process that owns the ports.
type RegisterFile struct {
	f    *os.File
	path string
}

func OpenRegisterFile(path string) (*RegisterFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ec register file: %w", err)
	}
	return &RegisterFile{f: f, path: path}, nil
}

// ReadBlock reads size bytes from offset 0. Each call rereads the file.
func (r *RegisterFile) ReadBlock(size int) ([]byte, error) {
	if r == nil || r.f == nil {
		return nil, errors.New("ecio: register file is closed")
	}
	buf := make([]byte, size)
	n, err := r.f.ReadAt(buf, 0)
	if n == size {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("read %s: %w", r.path, err)
}

// ReadRegisters reads and decodes one full register snapshot.
func (r *RegisterFile) ReadRegisters() (ec.Registers, error) {
	b, err := r.ReadBlock(ec.BlockSize)
	if err != nil {
		return ec.Registers{}, err
	}
	return ec.Decode(b)
}

func (r *RegisterFile) Close() error {
	if r == nil || r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

// ReadRegistersFromPath opens path, reads one snapshot and closes it again.
func ReadRegistersFromPath(path string) (ec.Registers, error) {
	r, err := OpenRegisterFile(path)
	if err != nil {
		return ec.Registers{}, err
	}
	defer r.Close()
	return r.ReadRegisters()
}
