// Command pfbench measures the phase-fair locks.
//
//	pfbench readwrite [-n 40] [-hold 50ms]
//	pfbench contend   [-locks 3] [-per-lock 300] [-mode read|write]
//	pfbench counter   [-goroutines 3] [-iterations 2000]
//
// Every flag can also be set through a PFBENCH_ prefixed environment
// variable, e.g. PFBENCH_LAYOUT=padded.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"go.uber.org/zap"

	"github.com/llxisdsh/pflock/internal/bench"
)

const envPrefix = "PFBENCH"

var errCounterLayout = errors.New("counter runs on Guarded, which only uses the raw layout")

var rootArgs struct {
	layout  string
	logJSON bool
	metrics bool
}

var readWriteArgs struct {
	n    int
	hold time.Duration
}

var contendArgs struct {
	locks   int
	perLock int
	mode    string
}

var counterArgs struct {
	goroutines int
	iterations int
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := newRootCmd().ParseAndRun(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *ffcli.Command {
	rootfs := flag.NewFlagSet("pfbench", flag.ContinueOnError)
	rootfs.StringVar(&rootArgs.layout, "layout", string(bench.LayoutRaw), "lock layout: raw or padded")
	rootfs.BoolVar(&rootArgs.logJSON, "log-json", false, "log JSON lines instead of console output")
	rootfs.BoolVar(&rootArgs.metrics, "metrics", false, "write Prometheus metrics to stdout after the run")

	opts := []ff.Option{ff.WithEnvVarPrefix(envPrefix)}
	return &ffcli.Command{
		Name:       "pfbench",
		ShortUsage: "pfbench [flags] <readwrite|contend|counter> [flags]",
		ShortHelp:  "Phase-fair lock benchmarks",
		FlagSet:    rootfs,
		Options:    opts,
		Exec: func(ctx context.Context, args []string) error {
			return flag.ErrHelp
		},
		Subcommands: []*ffcli.Command{
			{
				Name:       "readwrite",
				ShortUsage: "pfbench readwrite [flags]",
				ShortHelp:  "Compare serial and parallel readers and writers",
				FlagSet:    readWriteFlags(),
				Options:    opts,
				Exec:       withLogger(runReadWrite),
			},
			{
				Name:       "contend",
				ShortUsage: "pfbench contend [flags]",
				ShortHelp:  "Hammer several locks with short critical sections",
				FlagSet:    contendFlags(),
				Options:    opts,
				Exec:       withLogger(runContend),
			},
			{
				Name:       "counter",
				ShortUsage: "pfbench counter [flags]",
				ShortHelp:  "Check exclusion with a shared counter (raw layout only)",
				FlagSet:    counterFlags(),
				Options:    opts,
				Exec:       withLogger(runCounter),
			},
		},
	}
}

func readWriteFlags() *flag.FlagSet {
	fs := flag.NewFlagSet("readwrite", flag.ContinueOnError)
	fs.IntVar(&readWriteArgs.n, "n", 40, "critical sections per run")
	fs.DurationVar(&readWriteArgs.hold, "hold", 50*time.Millisecond, "time spent inside each critical section")
	return fs
}

func contendFlags() *flag.FlagSet {
	fs := flag.NewFlagSet("contend", flag.ContinueOnError)
	fs.IntVar(&contendArgs.locks, "locks", 3, "number of independent locks")
	fs.IntVar(&contendArgs.perLock, "per-lock", 300, "goroutines per lock")
	fs.StringVar(&contendArgs.mode, "mode", string(bench.ModeRead), "access mode: read or write")
	return fs
}

func counterFlags() *flag.FlagSet {
	fs := flag.NewFlagSet("counter", flag.ContinueOnError)
	fs.IntVar(&counterArgs.goroutines, "goroutines", 3, "number of goroutines")
	fs.IntVar(&counterArgs.iterations, "iterations", 2000, "iterations per goroutine")
	return fs
}

type runFunc func(ctx context.Context, logger *zap.SugaredLogger, rec *bench.Recorder) error

// withLogger builds the logger and metrics recorder once the root flags
// are parsed, runs fn, and dumps the metrics if requested.
func withLogger(fn runFunc) func(context.Context, []string) error {
	return func(ctx context.Context, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unexpected arguments: %q", args)
		}
		zl, err := newLogger(rootArgs.logJSON)
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		defer zl.Sync()

		var rec *bench.Recorder
		if rootArgs.metrics {
			rec = bench.NewRecorder()
		}
		if err := fn(ctx, zl.Sugar(), rec); err != nil {
			return err
		}
		if rec != nil {
			return rec.WriteText(os.Stdout)
		}
		return nil
	}
}

func newLogger(json bool) (*zap.Logger, error) {
	if json {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func runReadWrite(ctx context.Context, logger *zap.SugaredLogger, rec *bench.Recorder) error {
	layout, err := bench.ParseLayout(rootArgs.layout)
	if err != nil {
		return err
	}
	cfg := bench.ReadWriteConfig{
		Iterations: readWriteArgs.n,
		Hold:       readWriteArgs.hold,
		Layout:     layout,
	}
	logger.Infow("starting readwrite", "layout", layout, "iterations", cfg.Iterations, "hold", cfg.Hold)
	res, err := bench.ReadWrite(ctx, cfg, rec)
	if err != nil {
		return err
	}
	logger.Infow("read",
		"serial", res.ReadSerial,
		"parallel", res.ReadParallel,
		"speedup", fmt.Sprintf("%.1fx", res.ReadSpeedup()))
	logger.Infow("write",
		"serial", res.WriteSerial,
		"parallel", res.WriteParallel,
		"ratio", fmt.Sprintf("%.3f", res.WriteRatio()))
	return nil
}

func runContend(ctx context.Context, logger *zap.SugaredLogger, rec *bench.Recorder) error {
	layout, err := bench.ParseLayout(rootArgs.layout)
	if err != nil {
		return err
	}
	mode, err := bench.ParseMode(contendArgs.mode)
	if err != nil {
		return err
	}
	cfg := bench.ContendConfig{
		Locks:   contendArgs.locks,
		PerLock: contendArgs.perLock,
		Mode:    mode,
		Layout:  layout,
	}
	elapsed, err := bench.Contend(ctx, cfg, rec)
	if err != nil {
		return err
	}
	logger.Infow("contend",
		"layout", layout,
		"mode", mode,
		"locks", cfg.Locks,
		"perLock", cfg.PerLock,
		"elapsed", elapsed)
	return nil
}

func runCounter(ctx context.Context, logger *zap.SugaredLogger, rec *bench.Recorder) error {
	layout, err := bench.ParseLayout(rootArgs.layout)
	if err != nil {
		return err
	}
	if layout != bench.LayoutRaw {
		return fmt.Errorf("%w: got -layout %s", errCounterLayout, layout)
	}
	res, err := bench.Counter(ctx, bench.CounterConfig{
		Goroutines: counterArgs.goroutines,
		Iterations: counterArgs.iterations,
	}, rec)
	if err != nil {
		logger.Errorw("counter check failed", "final", res.Final, "want", res.Want, "error", err)
		return err
	}
	logger.Infow("counter",
		"final", res.Final,
		"observations", res.Observations,
		"elapsed", res.Elapsed)
	return nil
}
