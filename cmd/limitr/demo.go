package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/limitr/internal/clocktest"
	"mercator-hq/limitr/pkg/cli"
	"mercator-hq/limitr/pkg/limits/ratelimit"
)

type demoOptions struct {
	requests int
	seed     uint64
	simulate bool
}

// demoEnv is the time source and randomness a walkthrough runs against.
type demoEnv struct {
	out   io.Writer
	clock ratelimit.Clock
	sleep func(ctx context.Context, d time.Duration) error
	rng   *rand.Rand

	allowed int
	denied  int
}

type demoFunc func(ctx context.Context, env *demoEnv, requests int) error

var demos = []struct {
	name     string
	short    string
	requests int
	run      demoFunc
}{
	{"token", "Token bucket (capacity 20, 2 tokens/s) with random costs of 1-6", 60, demoToken},
	{"leaky", "Leaky bucket (capacity 10, 2/s) with random gaps of 10-400ms", 60, demoLeaky},
	{"fixed", "Fixed window (5 per 10s) exhausted, then reset by the next window", 6, demoFixed},
	{"sliding", "Sliding window (5 per 10s) under a burst, then after it expires", 10, demoSliding},
}

func newDemoCmd() *cobra.Command {
	opts := &demoOptions{}

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Walk through one limiting algorithm",
		Long: `Run a short scripted workload against a single limiter and print every
decision.

With --simulate the walkthrough runs against a virtual clock, finishing
instantly with reproducible output for a given --seed.`,
	}
	cmd.PersistentFlags().IntVar(&opts.requests, "requests", 0, "number of requests (0 uses the walkthrough default)")
	cmd.PersistentFlags().Uint64Var(&opts.seed, "seed", 0, "random seed (0 picks one from the current time)")
	cmd.PersistentFlags().BoolVar(&opts.simulate, "simulate", false, "advance a virtual clock instead of sleeping")

	for _, d := range demos {
		cmd.AddCommand(&cobra.Command{
			Use:   d.name,
			Short: d.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, stop := cli.SetupSignalHandler(cmd.Context())
				defer stop()

				env := newDemoEnv(cmd.OutOrStdout(), opts)
				n := d.requests
				if opts.requests > 0 {
					n = opts.requests
				}
				if err := d.run(ctx, env, n); err != nil {
					return cli.NewCommandError("demo "+d.name, err)
				}
				fmt.Fprintf(env.out, "\n%d allowed, %d denied\n", env.allowed, env.denied)
				return nil
			},
		})
	}
	return cmd
}

func newDemoEnv(out io.Writer, opts *demoOptions) *demoEnv {
	seed := opts.seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	env := &demoEnv{
		out: out,
		rng: rand.New(rand.NewPCG(seed, seed>>1)),
	}

	if opts.simulate {
		clock := clocktest.NewManual(time.Time{})
		env.clock = clock
		env.sleep = func(ctx context.Context, d time.Duration) error {
			clock.Advance(d)
			return ctx.Err()
		}
	} else {
		env.clock = ratelimit.SystemClock
		env.sleep = sleepContext
	}
	return env
}

func (e *demoEnv) report(i int, allowed bool, detail string) {
	verdict := "denied "
	if allowed {
		verdict = "allowed"
		e.allowed++
	} else {
		e.denied++
	}
	fmt.Fprintf(e.out, "request %2d %s  %s\n", i, verdict, detail)
}

// between returns a random duration in [lo, hi] milliseconds.
func (e *demoEnv) between(lo, hi int) time.Duration {
	return time.Duration(lo+e.rng.IntN(hi-lo+1)) * time.Millisecond
}

func demoToken(ctx context.Context, env *demoEnv, requests int) error {
	tb, err := ratelimit.NewTokenBucket(20, 2, ratelimit.WithClock(env.clock))
	if err != nil {
		return err
	}
	for i := 1; i <= requests; i++ {
		cost := 1 + env.rng.Uint64N(6)
		ok := tb.TryConsume(cost)
		env.report(i, ok, fmt.Sprintf("cost %d, %2d tokens left", cost, tb.AvailableTokens()))
		if err := env.sleep(ctx, env.between(100, 1000)); err != nil {
			return err
		}
	}
	return nil
}

func demoLeaky(ctx context.Context, env *demoEnv, requests int) error {
	lb, err := ratelimit.NewLeakyBucket(10, 2, ratelimit.WithClock(env.clock))
	if err != nil {
		return err
	}
	for i := 1; i <= requests; i++ {
		ok := lb.TryConsume()
		env.report(i, ok, fmt.Sprintf("%2d left", lb.Remaining()))
		if err := env.sleep(ctx, env.between(10, 400)); err != nil {
			return err
		}
	}
	return nil
}

func demoFixed(ctx context.Context, env *demoEnv, requests int) error {
	const window = 10 * time.Second
	fw, err := ratelimit.NewFixedWindowCounter(5, window, ratelimit.WithClock(env.clock))
	if err != nil {
		return err
	}

	for i := 1; i <= requests; i++ {
		ok := fw.TryConsume()
		env.report(i, ok, fmt.Sprintf("%d left in window", fw.Remaining()))
	}

	wait := window + time.Second
	fmt.Fprintf(env.out, "waiting %s for the next window...\n", wait)
	if err := env.sleep(ctx, wait); err != nil {
		return err
	}
	fmt.Fprintf(env.out, "cleared %d stale window(s)\n", fw.ClearOldWindows())

	ok := fw.TryConsume()
	env.report(requests+1, ok, fmt.Sprintf("%d left in window", fw.Remaining()))
	return nil
}

func demoSliding(ctx context.Context, env *demoEnv, requests int) error {
	const window = 10 * time.Second
	sw, err := ratelimit.NewSlidingWindowCounter(5, window, ratelimit.WithClock(env.clock))
	if err != nil {
		return err
	}

	for i := 1; i <= requests; i++ {
		ok := sw.TryConsume()
		env.report(i, ok, fmt.Sprintf("%d in window", sw.Len()))
	}

	wait := window + time.Second
	fmt.Fprintf(env.out, "waiting %s for the window to expire...\n", wait)
	if err := env.sleep(ctx, wait); err != nil {
		return err
	}

	ok := sw.TryConsume()
	env.report(requests+1, ok, fmt.Sprintf("%d in window", sw.Len()))
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
