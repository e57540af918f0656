package pflock

import (
	"github.com/llxisdsh/pb"
)

// LockGroup provides a phase-fair reader-writer lock per key.
//
// Features:
//   - RLock/RUnlock for shared access, Lock/Unlock for exclusive access.
//   - Infinite Keys: locks are created on first use.
//   - Auto-Cleanup: a key's lock is dropped once nobody holds or waits for it.
//
// Usage:
//
//	var group LockGroup[string]
//
//	// Readers
//	group.RLock("config")
//	read(config)
//	group.RUnlock("config")
//
//	// Writer
//	group.Lock("config")
//	write(config)
//	group.Unlock("config")
//
// Implementation Note:
// Every caller takes a reference on the key's entry before it touches the
// lock and drops it after releasing, all inside pb.MapOf.ProcessEntry, so
// an entry is never deleted while somebody may still spin on it.
type LockGroup[K comparable] struct {
	_ noCopy
	m pb.MapOf[K, *groupEntry]
}

type groupEntry struct {
	mu  RawLock
	ref int32 // guarded by the map's per-key lock
}

// RLock acquires the read lock for k.
func (g *LockGroup[K]) RLock(k K) {
	g.ref(k).mu.RLock()
}

// RUnlock releases the read lock for k.
func (g *LockGroup[K]) RUnlock(k K) {
	e, ok := g.m.Load(k)
	if !ok {
		return
	}
	e.mu.RUnlock()
	g.unref(k, e)
}

// TryRLock tries to acquire the read lock for k without waiting for a writer.
func (g *LockGroup[K]) TryRLock(k K) bool {
	e := g.ref(k)
	if e.mu.TryRLock() {
		return true
	}
	g.unref(k, e)
	return false
}

// Lock acquires the write lock for k.
func (g *LockGroup[K]) Lock(k K) {
	g.ref(k).mu.Lock()
}

// Unlock releases the write lock for k.
func (g *LockGroup[K]) Unlock(k K) {
	e, ok := g.m.Load(k)
	if !ok {
		return
	}
	e.mu.Unlock()
	g.unref(k, e)
}

// TryLock tries to acquire the write lock for k without waiting.
func (g *LockGroup[K]) TryLock(k K) bool {
	e := g.ref(k)
	if e.mu.TryLock() {
		return true
	}
	g.unref(k, e)
	return false
}

// Len returns the number of keys that currently have a lock entry.
func (g *LockGroup[K]) Len() int {
	n := 0
	g.m.Range(func(K, *groupEntry) bool {
		n++
		return true
	})
	return n
}

func (g *LockGroup[K]) ref(k K) *groupEntry {
	e, _ := g.m.ProcessEntry(
		k,
		func(l *pb.EntryOf[K, *groupEntry]) (*pb.EntryOf[K, *groupEntry], *groupEntry, bool) {
			if l != nil {
				l.Value.ref++
				return l, l.Value, true
			}
			v := &groupEntry{ref: 1}
			return &pb.EntryOf[K, *groupEntry]{Value: v}, v, false
		},
	)
	return e
}

func (g *LockGroup[K]) unref(k K, e *groupEntry) {
	g.m.ProcessEntry(
		k,
		func(l *pb.EntryOf[K, *groupEntry]) (*pb.EntryOf[K, *groupEntry], *groupEntry, bool) {
			if l == nil || l.Value != e {
				return l, nil, false
			}
			l.Value.ref--
			if l.Value.ref <= 0 {
				return nil, nil, true
			}
			return l, l.Value, true
		},
	)
}
