package pflock

import (
	"runtime"
	"sync/atomic"
	"unsafe" // also required by linkname
)

// ============================================================================
// Locker Utilities
// ============================================================================

// noCopy may be added to structs which must not be copied
// after the first use.
//
// See https://golang.org/issues/8005#issuecomment-190753527
// for details.
//
// Note that it must not be embedded, due to the Lock and Unlock methods.
type noCopy struct{}

// Lock is a no-op used by -copylocks checker from `go vet`.
func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

func trySpin(spins *int) bool {
	if runtime_canSpin(*spins) {
		*spins++
		runtime_doSpin()
		return true
	}
	return false
}

// delay is one iteration of a busy-wait loop. It issues the CPU pause hint
// while the runtime allows active spinning, and otherwise hands the P to
// another goroutine. It never parks the goroutine or sleeps.
func delay(spins *int) {
	if trySpin(spins) {
		return
	}
	*spins = 0
	runtime.Gosched()
}

// nolint:all
//
//go:linkname runtime_canSpin sync.runtime_canSpin
//goland:noinspection ALL
func runtime_canSpin(i int) bool

// nolint:all
//
//go:linkname runtime_doSpin sync.runtime_doSpin
//goland:noinspection ALL
func runtime_doSpin()

// ============================================================================
// Atomic Utilities
// ============================================================================

// word is the counter type of a phase-fair lock. All four counters of one
// lock share the same word so that they wrap identically.
type word interface {
	~uint32 | ~uintptr
}

//go:nosplit
func loadWord[W word](addr *W) W {
	if unsafe.Sizeof(W(0)) == 4 {
		return W(atomic.LoadUint32((*uint32)(unsafe.Pointer(addr))))
	} else {
		return W(atomic.LoadUint64((*uint64)(unsafe.Pointer(addr))))
	}
}

// fetchAdd adds delta to *addr and returns the previous value.
//
//go:nosplit
func fetchAdd[W word](addr *W, delta W) W {
	if unsafe.Sizeof(W(0)) == 4 {
		return W(atomic.AddUint32((*uint32)(unsafe.Pointer(addr)), uint32(delta))) - delta
	} else {
		return W(atomic.AddUint64((*uint64)(unsafe.Pointer(addr)), uint64(delta))) - delta
	}
}

// fetchAnd ands mask into *addr and returns the previous value.
//
//go:nosplit
func fetchAnd[W word](addr *W, mask W) W {
	if unsafe.Sizeof(W(0)) == 4 {
		return W(atomic.AndUint32((*uint32)(unsafe.Pointer(addr)), uint32(mask)))
	} else {
		return W(atomic.AndUint64((*uint64)(unsafe.Pointer(addr)), uint64(mask)))
	}
}

//go:nosplit
func casWord[W word](addr *W, old, val W) bool {
	if unsafe.Sizeof(W(0)) == 4 {
		return atomic.CompareAndSwapUint32((*uint32)(unsafe.Pointer(addr)), uint32(old), uint32(val))
	} else {
		return atomic.CompareAndSwapUint64((*uint64)(unsafe.Pointer(addr)), uint64(old), uint64(val))
	}
}
