// Package bench runs timing scenarios against the phase-fair locks: serial
// versus parallel critical sections, many locks under contention, and a
// shared counter that checks the locks actually exclude each other.
package bench

import (
	"errors"
	"fmt"
	"time"

	"github.com/llxisdsh/pflock"
)

// Layout selects the lock implementation a scenario runs against.
type Layout string

const (
	LayoutRaw    Layout = "raw"
	LayoutPadded Layout = "padded"
)

// Mode is the kind of access a scenario takes.
type Mode string

const (
	ModeRead  Mode = "read"
	ModeWrite Mode = "write"
)

var (
	ErrUnknownLayout = errors.New("bench: unknown lock layout")
	ErrUnknownMode   = errors.New("bench: unknown access mode")
	ErrLostUpdate    = errors.New("bench: counter lost an update")
	ErrNonMonotonic  = errors.New("bench: reader observed a non-monotonic counter")
)

// ParseLayout validates s as a Layout.
func ParseLayout(s string) (Layout, error) {
	switch l := Layout(s); l {
	case LayoutRaw, LayoutPadded:
		return l, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLayout, s)
}

// ParseMode validates s as a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeRead, ModeWrite:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// NewLock returns an unlocked lock of the given layout.
func NewLock(layout Layout) (pflock.RWLocker, error) {
	switch layout {
	case LayoutRaw:
		return new(pflock.RawLock), nil
	case LayoutPadded:
		return new(pflock.PaddedLock), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownLayout, layout)
}

// timedLock reports how long each acquisition waited.
type timedLock struct {
	l      pflock.RWLocker
	layout Layout
	rec    *Recorder
}

func (t timedLock) RLock() {
	start := time.Now()
	t.l.RLock()
	t.rec.observe(ModeRead, t.layout, time.Since(start))
}

func (t timedLock) RUnlock() { t.l.RUnlock() }

func (t timedLock) Lock() {
	start := time.Now()
	t.l.Lock()
	t.rec.observe(ModeWrite, t.layout, time.Since(start))
}

func (t timedLock) Unlock() { t.l.Unlock() }

// newTimedLock returns a lock of the given layout, instrumented when rec is
// non-nil.
func newTimedLock(layout Layout, rec *Recorder) (pflock.RWLocker, error) {
	l, err := NewLock(layout)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return l, nil
	}
	return timedLock{l: l, layout: layout, rec: rec}, nil
}

func acquire(l pflock.RWLocker, mode Mode) {
	if mode == ModeWrite {
		l.Lock()
	} else {
		l.RLock()
	}
}

func release(l pflock.RWLocker, mode Mode) {
	if mode == ModeWrite {
		l.Unlock()
	} else {
		l.RUnlock()
	}
}
