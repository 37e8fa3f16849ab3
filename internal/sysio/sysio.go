// Package sysio abstracts the positioned-I/O system calls used by the
// handle package so tests can inject interruptions and failures.
package sysio

import (
	"golang.org/x/sys/unix"
)

// Ops is the minimal descriptor-level syscall surface the file handle
// needs. All methods map 1:1 onto a single system call.
type Ops interface {
	Open(path string, flags int, perm uint32) (int, error)
	Close(fd int) error
	Pread(fd int, p []byte, off int64) (int, error)
	Pwrite(fd int, p []byte, off int64) (int, error)
	// Fstat returns the current file length. It must not touch the file
	// offset; positioned reads and writes rely on cursor independence.
	Fstat(fd int) (int64, error)
}

// OSOps implements Ops with real system calls.
type OSOps struct{}

func (OSOps) Open(path string, flags int, perm uint32) (int, error) {
	return unix.Open(path, flags, perm)
}

func (OSOps) Close(fd int) error { return unix.Close(fd) }

func (OSOps) Pread(fd int, p []byte, off int64) (int, error) {
	return unix.Pread(fd, p, off)
}

func (OSOps) Pwrite(fd int, p []byte, off int64) (int, error) {
	return unix.Pwrite(fd, p, off)
}

func (OSOps) Fstat(fd int) (int64, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return 0, err
	}
	return st.Size, nil
}

// Default is the default syscall implementation.
var Default Ops = OSOps{}
