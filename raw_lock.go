package pflock

import (
	"context"
	"fmt"
	"sync"
)

// RWLocker is the capability set shared by every phase-fair lock layout.
// Both *RawLock and *PaddedLock implement it.
type RWLocker interface {
	RLock()
	RUnlock()
	Lock()
	Unlock()
}

// TryRWLocker is an RWLocker with non-blocking acquisition.
type TryRWLocker interface {
	RWLocker
	TryRLock() bool
	TryLock() bool
}

var (
	_ TryRWLocker = (*RawLock)(nil)
	_ TryRWLocker = (*PaddedLock)(nil)
)

// RawLock is a phase-fair reader-writer spin lock.
//
// Readers share the lock; a writer holds it exclusively. Writers are served
// in the order they called Lock (ticket order), and a reader never waits
// for more than one writer: a reader arriving while writer W is queued or
// active is admitted as soon as W leaves, even if more writers queued after
// W. Symmetrically a writer waits at most for the readers that registered
// before it announced itself.
//
// Waiting is busy-waiting: there is no parking or OS-level suspension, so
// RawLock is meant for very short critical sections. Locks are not
// re-entrant.
//
// The zero value is an unlocked lock, so a RawLock can live in a
// package-level variable without initialization. A RawLock must not be
// copied after first use.
//
// Size: 4 machine words.
type RawLock struct {
	_    noCopy
	rin  uintptr
	rout uintptr
	win  uintptr
	wout uintptr
}

// NewRawLock returns an unlocked lock. It is equivalent to new(RawLock).
func NewRawLock() *RawLock {
	return &RawLock{}
}

// RLock acquires a read lock.
func (l *RawLock) RLock() {
	lockShared(&l.rin)
}

// RUnlock releases a read lock.
func (l *RawLock) RUnlock() {
	unlockShared(&l.rout)
}

// TryRLock tries to acquire a read lock and reports whether it succeeded.
// It fails only while a writer is present.
func (l *RawLock) TryRLock() bool {
	return tryLockShared(&l.rin)
}

// Lock acquires the write lock.
func (l *RawLock) Lock() {
	lockExclusive(&l.rin, &l.rout, &l.win, &l.wout)
}

// Unlock releases the write lock. Only the current holder of the write
// lock may call it; as with sync.Mutex, that need not be the goroutine
// that called Lock.
func (l *RawLock) Unlock() {
	unlockExclusive(&l.rin, &l.wout)
}

// TryLock tries to acquire the write lock and reports whether it succeeded.
// It fails whenever a reader or another writer holds or waits for the lock,
// and it never leaves a queued ticket behind.
func (l *RawLock) TryLock() bool {
	return tryLockExclusive(&l.rin, &l.rout, &l.win, &l.wout)
}

// RLockContext acquires a read lock, polling TryRLock until it succeeds
// or ctx is done. On failure it returns ctx.Err() and holds nothing.
func (l *RawLock) RLockContext(ctx context.Context) error {
	return pollContext(ctx, l.TryRLock)
}

// LockContext acquires the write lock, polling TryLock until it succeeds
// or ctx is done. On failure it returns ctx.Err() and holds nothing.
//
// Unlike Lock, a polling writer does not hold a ticket while it waits, so
// it gets no FIFO position among writers.
func (l *RawLock) LockContext(ctx context.Context) error {
	return pollContext(ctx, l.TryLock)
}

// RLocker returns a sync.Locker that implements Lock and Unlock by calling
// l.RLock and l.RUnlock.
func (l *RawLock) RLocker() sync.Locker {
	return (*rlocker)(l)
}

type rlocker RawLock

func (r *rlocker) Lock()   { (*RawLock)(r).RLock() }
func (r *rlocker) Unlock() { (*RawLock)(r).RUnlock() }

// String returns a point-in-time description of the lock state, for
// debugging only.
func (l *RawLock) String() string {
	s := readSnapshot(&l.rin, &l.rout, &l.win, &l.wout)
	return fmt.Sprintf("RawLock{readers: %d, writer: %t, phase: %d, writers: %d}",
		s.readers, s.writer, s.phase, s.queued)
}
