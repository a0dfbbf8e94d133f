package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/limitr/pkg/cli"
	"mercator-hq/limitr/pkg/config"
	"mercator-hq/limitr/pkg/limits"
)

const benchLimiterName = "bench"

type benchOptions struct {
	limiter   string
	algorithm string
	capacity  uint64
	rate      uint64
	limit     uint64
	window    time.Duration
	subSecond bool

	workers  int
	requests int64
	duration time.Duration
	cost     uint64
	progress bool
}

// benchResult summarizes one benchmark run.
type benchResult struct {
	Limiter    string        `json:"limiter" yaml:"limiter"`
	Algorithm  string        `json:"algorithm" yaml:"algorithm"`
	Workers    int           `json:"workers" yaml:"workers"`
	Requests   int64         `json:"requests" yaml:"requests"`
	Allowed    int64         `json:"allowed" yaml:"allowed"`
	Denied     int64         `json:"denied" yaml:"denied"`
	Elapsed    time.Duration `json:"elapsed_ns" yaml:"elapsed"`
	Throughput float64       `json:"decisions_per_second" yaml:"decisions_per_second"`
}

func (r benchResult) Header() []string { return []string{"METRIC", "VALUE"} }

func (r benchResult) Rows() [][]string {
	admitted := 0.0
	if r.Requests > 0 {
		admitted = float64(r.Allowed) / float64(r.Requests) * 100
	}
	return [][]string{
		{"limiter", r.Limiter},
		{"algorithm", r.Algorithm},
		{"workers", strconv.Itoa(r.Workers)},
		{"requests", strconv.FormatInt(r.Requests, 10)},
		{"allowed", strconv.FormatInt(r.Allowed, 10)},
		{"denied", strconv.FormatInt(r.Denied, 10)},
		{"admitted", fmt.Sprintf("%.1f%%", admitted)},
		{"elapsed", r.Elapsed.Round(time.Millisecond).String()},
		{"decisions/s", fmt.Sprintf("%.0f", r.Throughput)},
	}
}

func newBenchCmd(g *globalOptions) *cobra.Command {
	opts := &benchOptions{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure decision throughput of a limiter",
		Long: `Hammer a single limiter from concurrent workers and report how many
requests were admitted and how fast decisions were taken.

The limiter is either a named entry of the config file (--limiter) or is
described inline with --algorithm and its parameters.

Examples:
  # Token bucket from flags, 8 workers, 1M decisions
  limitr bench --algorithm token_bucket --capacity 1000 --rate 500 --workers 8 --requests 1000000

  # Configured limiter for 10 seconds
  limitr bench --config limitr.yaml --limiter api --duration 10s --requests 0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, format, err := g.formatter()
			if err != nil {
				return err
			}

			lc, err := opts.limiterConfig(g)
			if err != nil {
				return err
			}

			ctx, stop := cli.SetupSignalHandler(cmd.Context())
			defer stop()

			var progress *cli.BarProgress
			if opts.progress && opts.requests > 0 && format == cli.FormatText {
				progress = cli.NewProgressReporter(cmd.ErrOrStderr(), "bench")
			}

			res, err := runBench(ctx, lc, opts, progress)
			if err != nil {
				return cli.NewCommandError("bench", err)
			}
			if opts.limiter != "" {
				res.Limiter = opts.limiter
			}
			return formatter.FormatTo(cmd.OutOrStdout(), res)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.limiter, "limiter", "", "benchmark a limiter from the config file")
	f.StringVar(&opts.algorithm, "algorithm", "token_bucket", "algorithm: token_bucket, leaky_bucket, fixed_window, sliding_window")
	f.Uint64Var(&opts.capacity, "capacity", 100, "bucket capacity")
	f.Uint64Var(&opts.rate, "rate", 10, "bucket refill or leak rate per second")
	f.Uint64Var(&opts.limit, "limit", 100, "requests per window")
	f.DurationVar(&opts.window, "window", time.Second, "window length")
	f.BoolVar(&opts.subSecond, "sub-second-refill", false, "refill buckets continuously rather than per second")
	f.IntVarP(&opts.workers, "workers", "w", 4, "concurrent workers")
	f.Int64VarP(&opts.requests, "requests", "n", 100000, "total decisions (0 for no limit)")
	f.DurationVarP(&opts.duration, "duration", "d", 0, "stop after this long (0 for no limit)")
	f.Uint64Var(&opts.cost, "cost", 1, "units per request")
	f.BoolVar(&opts.progress, "progress", true, "draw a progress bar on stderr")
	return cmd
}

// limiterConfig resolves the limiter under test from the config file or flags.
func (o *benchOptions) limiterConfig(g *globalOptions) (config.LimiterConfig, error) {
	if o.workers < 1 {
		return config.LimiterConfig{}, fmt.Errorf("--workers must be at least 1")
	}
	if o.requests <= 0 && o.duration <= 0 {
		return config.LimiterConfig{}, fmt.Errorf("one of --requests or --duration must be positive")
	}

	if o.limiter != "" {
		cfg, err := g.loadConfig()
		if err != nil {
			return config.LimiterConfig{}, err
		}
		lc, ok := cfg.Limiters[o.limiter]
		if !ok {
			return config.LimiterConfig{}, cli.NewConfigError("limiters", fmt.Sprintf("%s: %q", limits.ErrUnknownLimiter, o.limiter))
		}
		return lc, nil
	}

	lc := config.LimiterConfig{
		Algorithm:       o.algorithm,
		Capacity:        o.capacity,
		Rate:            o.rate,
		Limit:           o.limit,
		Window:          o.window,
		SubSecondRefill: o.subSecond,
	}
	if errs := config.ValidateLimiter(benchLimiterName, lc); len(errs) > 0 {
		return config.LimiterConfig{}, cli.NewConfigError("", config.ValidationError{Errors: errs}.Error())
	}
	return lc, nil
}

// runBench drives the limiter from opts.workers goroutines until the
// request budget or duration is spent, or ctx is cancelled.
func runBench(ctx context.Context, lc config.LimiterConfig, opts *benchOptions, progress *cli.BarProgress) (benchResult, error) {
	mgr, err := limits.NewManager(
		map[string]config.LimiterConfig{benchLimiterName: lc},
		limits.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		return benchResult{}, err
	}

	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var issued, allowed, denied atomic.Int64
	if progress != nil {
		progress.Start(opts.requests)
	}

	start := time.Now()
	var wg sync.WaitGroup
	for range opts.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				if opts.requests > 0 && issued.Add(1) > opts.requests {
					return
				}
				d, err := mgr.Check(ctx, benchLimiterName, opts.cost)
				if err != nil {
					if ctx.Err() == nil {
						cancel(err)
					}
					return
				}
				if d.Allowed {
					allowed.Add(1)
				} else {
					denied.Add(1)
				}
				if progress != nil {
					progress.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	if progress != nil {
		progress.Finish()
	}
	if err := context.Cause(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return benchResult{}, err
	}

	res := benchResult{
		Limiter:   benchLimiterName,
		Algorithm: lc.Algorithm,
		Workers:   opts.workers,
		Allowed:   allowed.Load(),
		Denied:    denied.Load(),
		Elapsed:   elapsed,
	}
	res.Requests = res.Allowed + res.Denied
	if secs := elapsed.Seconds(); secs > 0 {
		res.Throughput = float64(res.Requests) / secs
	}
	return res, nil
}
