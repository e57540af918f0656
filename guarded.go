package pflock

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Guarded holds a value of type T protected by a phase-fair RawLock.
//
// Access goes through handles: Read returns a ReadGuard (shared, any number
// may coexist) and Write returns a WriteGuard (exclusive). A handle must be
// released exactly once; the idiomatic form is
//
//	r := g.Read()
//	defer r.Release()
//
// so the lock is released on every exit path, including panics. WithRead
// and WithWrite wrap this pattern. There is no poisoning: a panic while a
// handle is held leaves the lock fully usable once the handle is released.
//
// The zero value holds the zero T and is ready to use. A Guarded must not be
// copied after first use.
type Guarded[T any] struct {
	_    noCopy
	lock RawLock
	data T
}

// New returns a Guarded holding v.
func New[T any](v T) *Guarded[T] {
	return &Guarded[T]{data: v}
}

// Read acquires shared access, spinning while a writer is present.
func (g *Guarded[T]) Read() *ReadGuard[T] {
	g.lock.RLock()
	return newReadGuard(g)
}

// TryRead acquires shared access without waiting for a writer. It reports
// false, holding nothing, while a writer is present.
func (g *Guarded[T]) TryRead() (*ReadGuard[T], bool) {
	if !g.lock.TryRLock() {
		return nil, false
	}
	return newReadGuard(g), true
}

// ReadContext acquires shared access, giving up when ctx is done.
func (g *Guarded[T]) ReadContext(ctx context.Context) (*ReadGuard[T], error) {
	if err := g.lock.RLockContext(ctx); err != nil {
		return nil, err
	}
	return newReadGuard(g), nil
}

// Write acquires exclusive access, waiting for its writer ticket and for
// the readers registered before it.
func (g *Guarded[T]) Write() *WriteGuard[T] {
	g.lock.Lock()
	return &WriteGuard[T]{g: g}
}

// TryWrite acquires exclusive access only if it is available right now.
func (g *Guarded[T]) TryWrite() (*WriteGuard[T], bool) {
	if !g.lock.TryLock() {
		return nil, false
	}
	return &WriteGuard[T]{g: g}, true
}

// WriteContext acquires exclusive access, giving up when ctx is done.
func (g *Guarded[T]) WriteContext(ctx context.Context) (*WriteGuard[T], error) {
	if err := g.lock.LockContext(ctx); err != nil {
		return nil, err
	}
	return &WriteGuard[T]{g: g}, nil
}

// WithRead calls fn with shared access to the value. The pointer must not
// be written through or retained after fn returns.
func (g *Guarded[T]) WithRead(fn func(v *T)) {
	g.lock.RLock()
	defer g.lock.RUnlock()
	fn(&g.data)
}

// WithWrite calls fn with exclusive access to the value. The lock is
// released even if fn panics; changes made before the panic are kept.
func (g *Guarded[T]) WithWrite(fn func(v *T)) {
	g.lock.Lock()
	defer g.lock.Unlock()
	fn(&g.data)
}

// GetMut returns a pointer to the value without locking.
//
// It is only valid while the caller is the sole owner of g: before g is
// shared with other goroutines, or after they are all done with it.
func (g *Guarded[T]) GetMut() *T {
	return &g.data
}

// IntoInner returns the value without locking. The same ownership rule as
// GetMut applies, and g should not be used afterwards.
func (g *Guarded[T]) IntoInner() T {
	return g.data
}

// String formats the value, or <locked> if a writer currently holds or
// is acquiring the lock.
func (g *Guarded[T]) String() string {
	if !g.lock.TryRLock() {
		return "Guarded{data: <locked>}"
	}
	defer g.lock.RUnlock()
	return fmt.Sprintf("Guarded{data: %v}", g.data)
}

// Equal reports whether a and b hold equal values. Each value is copied
// under its own read handle; the two handles are never held at once, so
// concurrent Equal(a, b) and Equal(b, a) cannot deadlock with writers.
func Equal[T comparable](a, b *Guarded[T]) bool {
	if a == b {
		return true
	}
	var x T
	a.WithRead(func(v *T) { x = *v })
	var y T
	b.WithRead(func(v *T) { y = *v })
	return x == y
}

// ReadGuard is shared access to the value of a Guarded.
//
// Clones made with Clone share the acquisition of the guard they were
// cloned from: the read lock is released when the last of them is released.
type ReadGuard[T any] struct {
	g        *Guarded[T]
	root     *ReadGuard[T]
	refs     atomic.Int32 // live handles sharing root's acquisition
	released atomic.Bool
}

func newReadGuard[T any](g *Guarded[T]) *ReadGuard[T] {
	r := &ReadGuard[T]{g: g}
	r.root = r
	r.refs.Store(1)
	return r
}

// Get returns a copy of the value.
func (r *ReadGuard[T]) Get() T {
	r.check()
	return r.g.data
}

// Ptr returns a pointer to the value. It must only be read through, and
// only until the guard is released.
func (r *ReadGuard[T]) Ptr() *T {
	r.check()
	return &r.g.data
}

// Clone returns another handle to the same read access. It does not
// acquire the lock again, so it never waits, and it may be called
// concurrently with other Clone and Get calls on r.
func (r *ReadGuard[T]) Clone() *ReadGuard[T] {
	r.check()
	r.root.refs.Add(1)
	return &ReadGuard[T]{g: r.g, root: r.root}
}

// Release gives up this handle. Calls after the first are no-ops.
func (r *ReadGuard[T]) Release() {
	if r.released.Swap(true) {
		return
	}
	if r.root.refs.Add(-1) == 0 {
		r.g.lock.RUnlock()
	}
}

func (r *ReadGuard[T]) check() {
	if r.released.Load() {
		panic("pflock: use of released ReadGuard")
	}
}

// WriteGuard is exclusive access to the value of a Guarded.
type WriteGuard[T any] struct {
	g        *Guarded[T]
	released atomic.Bool
}

// Get returns a copy of the value.
func (w *WriteGuard[T]) Get() T {
	w.check()
	return w.g.data
}

// Set replaces the value.
func (w *WriteGuard[T]) Set(v T) {
	w.check()
	w.g.data = v
}

// Ptr returns a pointer to the value, valid until the guard is released.
func (w *WriteGuard[T]) Ptr() *T {
	w.check()
	return &w.g.data
}

// Release gives up exclusive access. Calls after the first are no-ops.
func (w *WriteGuard[T]) Release() {
	if w.released.Swap(true) {
		return
	}
	w.g.lock.Unlock()
}

func (w *WriteGuard[T]) check() {
	if w.released.Load() {
		panic("pflock: use of released WriteGuard")
	}
}
