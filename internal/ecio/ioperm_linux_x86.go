//go:build linux && (amd64 || 386)

package ecio

import "golang.org/x/sys/unix"

func ioperm(port uint16) error {
	return unix.Ioperm(int(port), 1, 1)
}

var iopermFn = ioperm
