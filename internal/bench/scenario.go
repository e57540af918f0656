package bench

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/llxisdsh/pflock"
)

// ReadWriteConfig configures ReadWrite.
type ReadWriteConfig struct {
	Iterations int           // critical sections per run
	Hold       time.Duration // time spent inside each critical section
	Layout     Layout
}

// ReadWriteResult holds the elapsed time of the four ReadWrite runs.
type ReadWriteResult struct {
	ReadSerial    time.Duration
	ReadParallel  time.Duration
	WriteSerial   time.Duration
	WriteParallel time.Duration
}

// ReadSpeedup is how many times faster parallel readers finished than
// serial ones. Readers share the lock, so it approaches Iterations.
func (r ReadWriteResult) ReadSpeedup() float64 {
	return float64(r.ReadSerial) / float64(r.ReadParallel)
}

// WriteRatio is serial over parallel writer time. Writers exclude each
// other, so it stays at or below 1.
func (r ReadWriteResult) WriteRatio() float64 {
	return float64(r.WriteSerial) / float64(r.WriteParallel)
}

// ReadWrite times Iterations critical sections of length Hold, first one
// goroutine at a time and then all at once, for readers and for writers.
func ReadWrite(ctx context.Context, cfg ReadWriteConfig, rec *Recorder) (ReadWriteResult, error) {
	var res ReadWriteResult
	runs := []struct {
		mode     Mode
		parallel bool
		out      *time.Duration
	}{
		{ModeRead, false, &res.ReadSerial},
		{ModeRead, true, &res.ReadParallel},
		{ModeWrite, false, &res.WriteSerial},
		{ModeWrite, true, &res.WriteParallel},
	}
	for _, run := range runs {
		l, err := newTimedLock(cfg.Layout, rec)
		if err != nil {
			return res, err
		}
		d, err := holdRun(ctx, l, run.mode, run.parallel, cfg.Iterations, cfg.Hold)
		if err != nil {
			return res, fmt.Errorf("%s run (parallel=%t): %w", run.mode, run.parallel, err)
		}
		*run.out = d
	}
	return res, nil
}

func holdRun(ctx context.Context, l pflock.RWLocker, mode Mode, parallel bool, n int, hold time.Duration) (time.Duration, error) {
	section := func() {
		acquire(l, mode)
		time.Sleep(hold)
		release(l, mode)
	}
	start := time.Now()
	if !parallel {
		for range n {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			// Each section still runs on its own goroutine so both runs
			// pay the same spawn cost.
			var g errgroup.Group
			g.Go(func() error {
				section()
				return nil
			})
			_ = g.Wait()
		}
		return time.Since(start), nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for range n {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			section()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// ContendConfig configures Contend.
type ContendConfig struct {
	Locks   int // independent locks
	PerLock int // goroutines hammering each lock
	Mode    Mode
	Layout  Layout
}

// Contend starts PerLock goroutines on each of Locks locks, each doing a
// single acquire/release in Mode, and returns the time until all finished.
func Contend(ctx context.Context, cfg ContendConfig, rec *Recorder) (time.Duration, error) {
	locks := make([]pflock.RWLocker, cfg.Locks)
	for i := range locks {
		l, err := newTimedLock(cfg.Layout, rec)
		if err != nil {
			return 0, err
		}
		locks[i] = l
	}
	g, gctx := errgroup.WithContext(ctx)
	start := time.Now()
	for _, l := range locks {
		for range cfg.PerLock {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				acquire(l, cfg.Mode)
				release(l, cfg.Mode)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// CounterConfig configures Counter.
type CounterConfig struct {
	Goroutines int
	Iterations int // per goroutine; even iterations write, odd ones read
}

// CounterResult reports a Counter run.
type CounterResult struct {
	Final        int64
	Want         int64
	Observations int64
	Elapsed      time.Duration
}

// Counter runs goroutines that alternate between incrementing a shared
// counter under a write handle and observing it under a read handle. It
// fails with ErrNonMonotonic if any goroutine sees the counter go negative
// or backwards, and with ErrLostUpdate if the final value is off.
//
// The counter is a pflock.Guarded, which always uses the raw layout; waits
// are recorded under LayoutRaw.
func Counter(ctx context.Context, cfg CounterConfig, rec *Recorder) (CounterResult, error) {
	var (
		counter pflock.Guarded[int64]
		seen    = make([]int64, cfg.Goroutines)
	)
	res := CounterResult{
		Want: int64(cfg.Goroutines) * int64((cfg.Iterations+1)/2),
	}
	g, gctx := errgroup.WithContext(ctx)
	start := time.Now()
	for id := range cfg.Goroutines {
		g.Go(func() error {
			var last int64
			for i := range cfg.Iterations {
				if i%2 == 0 {
					start := time.Now()
					w := counter.Write()
					rec.observe(ModeWrite, LayoutRaw, time.Since(start))
					w.Set(w.Get() + 1)
					w.Release()
					continue
				}
				if err := gctx.Err(); err != nil {
					return err
				}
				start := time.Now()
				r := counter.Read()
				rec.observe(ModeRead, LayoutRaw, time.Since(start))
				v := r.Get()
				r.Release()
				if v < 0 || v < last {
					return fmt.Errorf("%w: goroutine %d saw %d after %d", ErrNonMonotonic, id, v, last)
				}
				last = v
				seen[id]++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	res.Elapsed = time.Since(start)
	res.Final = counter.IntoInner()
	for _, n := range seen {
		res.Observations += n
	}
	if res.Final != res.Want {
		return res, fmt.Errorf("%w: got %d, want %d", ErrLostUpdate, res.Final, res.Want)
	}
	return res, nil
}
