package pflock

import (
	"fmt"

	"github.com/llxisdsh/pflock/internal/opt"
)

// PaddedLock is a phase-fair reader-writer spin lock with a fixed,
// cache-line separated layout.
//
// It runs exactly the same protocol as RawLock. The difference is storage:
// the four counters are 32-bit, appear in the order win, wout, rin, rout,
// and each is followed by padding up to a full cache line, so that readers
// hammering rin/rout and writers spinning on wout never contend for the
// same line. The layout matches
//
//	struct {
//		uint32_t win;  uint8_t _[CACHE_LINE - 4];
//		uint32_t wout; uint8_t _[CACHE_LINE - 4];
//		uint32_t rin;  uint8_t _[CACHE_LINE - 4];
//		uint32_t rout; uint8_t _[CACHE_LINE - 4];
//	}
//
// which makes a PaddedLock usable from memory shared with C code. Build
// with -tags=pflock_cachelinesize_N to pin the line size.
//
// The zero value is an unlocked lock. A PaddedLock must not be copied after
// first use.
type PaddedLock struct {
	_    noCopy
	win  uint32
	_    [opt.CacheLineSize_ - 4]byte
	wout uint32
	_    [opt.CacheLineSize_ - 4]byte
	rin  uint32
	_    [opt.CacheLineSize_ - 4]byte
	rout uint32
	_    [opt.CacheLineSize_ - 4]byte
}

// RLock acquires a read lock.
func (l *PaddedLock) RLock() {
	lockShared(&l.rin)
}

// RUnlock releases a read lock.
func (l *PaddedLock) RUnlock() {
	unlockShared(&l.rout)
}

// TryRLock tries to acquire a read lock and reports whether it succeeded.
func (l *PaddedLock) TryRLock() bool {
	return tryLockShared(&l.rin)
}

// Lock acquires the write lock.
func (l *PaddedLock) Lock() {
	lockExclusive(&l.rin, &l.rout, &l.win, &l.wout)
}

// Unlock releases the write lock.
func (l *PaddedLock) Unlock() {
	unlockExclusive(&l.rin, &l.wout)
}

// TryLock tries to acquire the write lock and reports whether it succeeded.
func (l *PaddedLock) TryLock() bool {
	return tryLockExclusive(&l.rin, &l.rout, &l.win, &l.wout)
}

// String returns a point-in-time description of the lock state, for
// debugging only.
func (l *PaddedLock) String() string {
	s := readSnapshot(&l.rin, &l.rout, &l.win, &l.wout)
	return fmt.Sprintf("PaddedLock{readers: %d, writer: %t, phase: %d, writers: %d}",
		s.readers, s.writer, s.phase, s.queued)
}
