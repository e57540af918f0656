package pflock

import (
	"sync"
	"testing"
	"time"

	"github.com/llxisdsh/pflock/internal/opt"
)

// skipRace skips tests that race on a fresh pb.MapOf: its lazy table
// initialization is published with plain loads the race detector reports.
func skipRace(t *testing.T) {
	t.Helper()
	if opt.Race_ {
		t.Skip("pb.MapOf lazy init is reported by the race detector")
	}
}

func TestLockGroup_Basic(t *testing.T) {
	skipRace(t)
	var g LockGroup[string]
	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)

	// Concurrent readers
	for range n {
		go func() {
			defer wg.Done()
			g.RLock("key")
			time.Sleep(time.Microsecond)
			g.RUnlock("key")
		}()
	}
	wg.Wait()

	// Writer exclusion
	g.Lock("key")
	done := make(chan struct{})
	go func() {
		g.RLock("key")
		close(done)
		g.RUnlock("key")
	}()

	select {
	case <-done:
		t.Fatal("RLock acquired while Lock held")
	case <-time.After(10 * time.Millisecond):
	}
	g.Unlock("key")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RLock not acquired after Unlock")
	}
}

func TestLockGroup_RefCounting(t *testing.T) {
	var g LockGroup[int]

	g.RLock(1)
	g.RLock(1)
	if _, ok := g.m.Load(1); !ok {
		t.Fatal("entry should exist after RLock")
	}
	g.RUnlock(1)
	if _, ok := g.m.Load(1); !ok {
		t.Fatal("entry deleted while a reader still holds it")
	}
	g.RUnlock(1)
	if _, ok := g.m.Load(1); ok {
		t.Fatal("entry should be deleted once unreferenced")
	}

	g.Lock(2)
	if g.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", g.Len())
	}
	g.Unlock(2)
	if g.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", g.Len())
	}
}

func TestLockGroup_Try(t *testing.T) {
	var g LockGroup[string]
	if !g.TryLock("a") {
		t.Fatal("TryLock failed on a fresh key")
	}
	if g.TryLock("a") {
		t.Fatal("TryLock succeeded twice")
	}
	if g.TryRLock("a") {
		t.Fatal("TryRLock succeeded while write locked")
	}
	if !g.TryRLock("b") {
		t.Fatal("keys are not independent")
	}
	g.Unlock("a")
	g.RUnlock("b")
	if g.Len() != 0 {
		t.Fatalf("failed try calls leaked %d entries", g.Len())
	}
}

func TestLockGroup_Exclusion(t *testing.T) {
	skipRace(t)
	var g LockGroup[int]
	counters := make([]int, 4)
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 500 {
				k := (i + j) % len(counters)
				if j%3 == 0 {
					g.RLock(k)
					_ = counters[k]
					g.RUnlock(k)
					continue
				}
				g.Lock(k)
				counters[k]++
				g.Unlock(k)
			}
		}()
	}
	wg.Wait()

	total := 0
	for _, c := range counters {
		total += c
	}
	// 500 iterations per goroutine; one in three is a read.
	if want := 8 * (500 - 167); total != want {
		t.Fatalf("total = %d, want %d", total, want)
	}
	if g.Len() != 0 {
		t.Fatalf("Len() = %d after all keys were released", g.Len())
	}
}
