package sysio

import (
	"sync"
)

// Fault defines the behavior of one intercepted call.
type Fault struct {
	Err   error // Returned immediately when non-nil (e.g. unix.EINTR).
	Limit int   // When >0 and Err is nil, cap the transfer to Limit bytes.
}

// FaultyOps wraps an Ops and replays scripted faults against pread/pwrite,
// open and fstat. Once a script is exhausted calls pass through untouched.
// Safe for concurrent use.
type FaultyOps struct {
	Ops Ops // Wrapped implementation (Default if nil).

	mu     sync.Mutex
	opens  []Fault
	preads []Fault
	writes []Fault
	fstats []Fault
}

// NewFaultyOps creates a FaultyOps wrapping ops (or Default if nil).
func NewFaultyOps(ops Ops) *FaultyOps {
	if ops == nil {
		ops = Default
	}
	return &FaultyOps{Ops: ops}
}

// PlanOpen appends faults consumed by subsequent Open calls.
func (f *FaultyOps) PlanOpen(faults ...Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens = append(f.opens, faults...)
}

// PlanPread appends faults consumed by subsequent Pread calls.
func (f *FaultyOps) PlanPread(faults ...Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.preads = append(f.preads, faults...)
}

// PlanPwrite appends faults consumed by subsequent Pwrite calls.
func (f *FaultyOps) PlanPwrite(faults ...Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, faults...)
}

// PlanFstat appends faults consumed by subsequent Fstat calls.
func (f *FaultyOps) PlanFstat(faults ...Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fstats = append(f.fstats, faults...)
}

func (f *FaultyOps) next(plan *[]Fault) (Fault, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(*plan) == 0 {
		return Fault{}, false
	}
	fault := (*plan)[0]
	*plan = (*plan)[1:]
	return fault, true
}

func (f *FaultyOps) Open(path string, flags int, perm uint32) (int, error) {
	if fault, ok := f.next(&f.opens); ok && fault.Err != nil {
		return -1, fault.Err
	}
	return f.Ops.Open(path, flags, perm)
}

func (f *FaultyOps) Close(fd int) error { return f.Ops.Close(fd) }

func (f *FaultyOps) Pread(fd int, p []byte, off int64) (int, error) {
	fault, ok := f.next(&f.preads)
	if !ok {
		return f.Ops.Pread(fd, p, off)
	}
	if fault.Err != nil {
		return 0, fault.Err
	}
	if fault.Limit > 0 && fault.Limit < len(p) {
		p = p[:fault.Limit]
	}
	return f.Ops.Pread(fd, p, off)
}

func (f *FaultyOps) Pwrite(fd int, p []byte, off int64) (int, error) {
	fault, ok := f.next(&f.writes)
	if !ok {
		return f.Ops.Pwrite(fd, p, off)
	}
	if fault.Err != nil {
		return 0, fault.Err
	}
	if fault.Limit > 0 && fault.Limit < len(p) {
		p = p[:fault.Limit]
	}
	return f.Ops.Pwrite(fd, p, off)
}

func (f *FaultyOps) Fstat(fd int) (int64, error) {
	if fault, ok := f.next(&f.fstats); ok && fault.Err != nil {
		return 0, fault.Err
	}
	return f.Ops.Fstat(fd)
}
