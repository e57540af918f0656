package pflock

import (
	"sync"
	"testing"
)

func benchmarkRead(b *testing.B, l RWLocker) {
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			l.RLock()
			l.RUnlock()
		}
	})
}

func benchmarkMixed(b *testing.B, l RWLocker, writeEvery int) {
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if i%writeEvery == 0 {
				l.Lock()
				l.Unlock()
			} else {
				l.RLock()
				l.RUnlock()
			}
			i++
		}
	})
}

func BenchmarkRead(b *testing.B) {
	b.Run("RawLock", func(b *testing.B) { benchmarkRead(b, new(RawLock)) })
	b.Run("PaddedLock", func(b *testing.B) { benchmarkRead(b, new(PaddedLock)) })
	b.Run("sync.RWMutex", func(b *testing.B) { benchmarkRead(b, new(sync.RWMutex)) })
}

func BenchmarkMixed(b *testing.B) {
	for _, bm := range []struct {
		name       string
		writeEvery int
	}{
		{"w1", 1},
		{"w10", 10},
		{"w100", 100},
	} {
		b.Run(bm.name+"/RawLock", func(b *testing.B) { benchmarkMixed(b, new(RawLock), bm.writeEvery) })
		b.Run(bm.name+"/PaddedLock", func(b *testing.B) { benchmarkMixed(b, new(PaddedLock), bm.writeEvery) })
		b.Run(bm.name+"/sync.RWMutex", func(b *testing.B) { benchmarkMixed(b, new(sync.RWMutex), bm.writeEvery) })
	}
}

func BenchmarkGuarded(b *testing.B) {
	g := New(0)
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if i%16 == 0 {
				g.WithWrite(func(v *int) { *v++ })
			} else {
				g.WithRead(func(v *int) { _ = *v })
			}
			i++
		}
	})
}

func BenchmarkLockGroup(b *testing.B) {
	var g LockGroup[int]
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			g.RLock(i & 7)
			g.RUnlock(i & 7)
			i++
		}
	})
}
