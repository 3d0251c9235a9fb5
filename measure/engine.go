/*
Package measure runs invocation strategies and turns their timings into per-call estimates.

Each (strategy, fork) pair is a job. A job builds one fresh fixture, runs Config.Warmup
iterations whose timings are thrown away, then Config.Measured iterations that each time
Config.Batch consecutive calls. Jobs run on a pooled set of workers, each job locked to its OS
thread for its whole duration. With the default single worker, forks run one after another and
never overlap.

A fork fails on its own: a panic inside the strategy, a fork or run timeout, or cancellation
keeps the reason in the Sample and drops whatever it had timed. A fixture that cannot be set up
is different: it means the harness itself is misconfigured, so the run stops and Run returns the
error.

	engine, err := measure.New(measure.DefaultConfig(), func() (*fixture.Fixture, error) {
		return fixture.Setup(nil)
	})
	if err != nil {
		return err
	}
	res, err := engine.Run(ctx, set)
	if err != nil {
		return err
	}
	for _, sum := range res.Summaries() {
		fmt.Printf("%s %.3f ± %.3f %s\n", sum.Strategy, sum.Mean, sum.Error, sum.Unit)
	}
*/
package measure

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/johnsiilver/pools/goroutines/pooled"

	"github.com/johnsiilver/dispatchcost/fixture"
	"github.com/johnsiilver/dispatchcost/strategy"
)

// Setup builds the fixture for one fork.
type Setup func() (*fixture.Fixture, error)

// Observer is told about every fork as it finishes. Calls may come from several goroutines
// when Config.Workers > 1.
type Observer interface {
	ForkDone(s Sample)
}

// Engine runs strategies. It can be reused for several runs but not concurrently.
type Engine struct {
	cfg      Config
	setup    Setup
	log      *slog.Logger
	observer Observer
}

// Option provides optional arguments to New().
type Option func(e *Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithObserver registers o to receive every finished Sample.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// New creates an Engine.
func New(cfg Config, setup Setup, options ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if setup == nil {
		return nil, errorf(ETConfig, "setup cannot be nil")
	}

	e := &Engine{
		cfg:   cfg,
		setup: setup,
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range options {
		o(e)
	}
	return e, nil
}

// Run executes Config.Forks forks of every strategy in set. The Result's samples are ordered
// by strategy, then fork. The error is non-nil only for configuration errors.
func (e *Engine) Run(ctx context.Context, set strategy.Set) (*Result, error) {
	if len(set) == 0 {
		return nil, errorf(ETConfig, "no strategies to run")
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	pool, err := pooled.New(e.cfg.Workers)
	if err != nil {
		return nil, errorf(ETPool, "could not create worker pool").Wrap(err)
	}
	defer pool.Close()

	jobs := len(set) * e.cfg.Forks
	out := make(chan Sample, jobs)
	order := newInOrder(func(s Sample) int { return s.seq }, out)

	var (
		wg      sync.WaitGroup
		cfgOnce sync.Once
		cfgErr  error
	)
	deliver := func(s Sample) {
		if e.observer != nil {
			e.observer.ForkDone(s)
		}
		if err := order.Add(s); err != nil {
			panic(err) // seq is unique per job, so this is a bug
		}
	}

	for i, st := range set {
		for fork := 0; fork < e.cfg.Forks; fork++ {
			st, fork, seq := st, fork, i*e.cfg.Forks+fork

			wg.Add(1)
			err := pool.Submit(
				context.Background(),
				func(context.Context) {
					defer wg.Done()

					s := e.fork(ctx, st, fork)
					s.seq = seq
					var ce Error
					if errors.As(s.Err, &ce) && ce.Type == ETConfig {
						cfgOnce.Do(func() {
							cfgErr = s.Err
							cancel(s.Err)
						})
					}
					deliver(s)
				},
			)
			if err != nil {
				wg.Done()
				s := e.failed(st, fork, errorf(ETPool, "could not schedule fork").Wrap(err))
				s.seq = seq
				deliver(s)
			}
		}
	}
	wg.Wait()
	order.Close()

	res := &Result{Samples: make([]Sample, 0, jobs)}
	for s := range out {
		res.Samples = append(res.Samples, s)
	}
	if cfgErr != nil {
		return res, cfgErr
	}
	return res, nil
}

func (e *Engine) failed(st strategy.Strategy, fork int, err error) Sample {
	e.log.Warn("fork failed", "strategy", st.Name, "fork", fork, "error", err)
	return Sample{Strategy: st.Name, Family: st.Family, Fork: fork, Ops: e.cfg.Batch, Err: err}
}

// fork runs one fork of st. It never panics.
func (e *Engine) fork(ctx context.Context, st strategy.Strategy, fork int) (sample Sample) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if e.cfg.ForkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ForkTimeout)
		defer cancel()
	}

	phase, iteration := "setup", 0
	defer func() {
		if r := recover(); r != nil {
			sample = e.failed(st, fork, errorf(ETForkPanic, "strategy %s fork %d: panic in %s iteration %d: %v", st.Name, fork, phase, iteration+1, r))
		}
	}()

	// A canceled run has nothing left to measure, so don't spend a fixture on it.
	if err := e.interrupted(ctx, st, fork, phase); err != nil {
		return e.failed(st, fork, err)
	}

	f, err := e.setup()
	if err != nil {
		return e.failed(st, fork, errorf(ETConfig, "strategy %s fork %d: fixture setup failed", st.Name, fork).Wrap(err))
	}

	e.log.Debug("fork started", "strategy", st.Name, "fork", fork)
	start := time.Now()

	// Start every fork from a collected heap so garbage from the previous fork isn't
	// collected on this fork's clock.
	runtime.GC()

	phase = "warmup"
	var sink float64
	for iteration = 0; iteration < e.cfg.Warmup; iteration++ {
		if err := e.interrupted(ctx, st, fork, phase); err != nil {
			return e.failed(st, fork, err)
		}
		sink += e.iterate(st, f)
	}

	phase = "measured"
	elapsed := make([]time.Duration, 0, e.cfg.Measured)
	for iteration = 0; iteration < e.cfg.Measured; iteration++ {
		if err := e.interrupted(ctx, st, fork, phase); err != nil {
			return e.failed(st, fork, err)
		}
		t := time.Now()
		sink += e.iterate(st, f)
		elapsed = append(elapsed, time.Since(t))
	}
	consume(sink)

	sample = Sample{Strategy: st.Name, Family: st.Family, Fork: fork, Ops: e.cfg.Batch, Elapsed: elapsed}
	e.log.Debug("fork finished", "strategy", st.Name, "fork", fork, "took", time.Since(start), "ns/op", sample.Mean())
	return sample
}

// iterate makes one batch of calls.
func (e *Engine) iterate(st strategy.Strategy, f *fixture.Fixture) float64 {
	var sink float64
	for n := 0; n < e.cfg.Batch; n++ {
		sink += st.Call(f)
	}
	return sink
}

func (e *Engine) interrupted(ctx context.Context, st strategy.Strategy, fork int, phase string) error {
	if ctx.Err() == nil {
		return nil
	}
	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, context.DeadlineExceeded):
		return errorf(ETForkTimeout, "strategy %s fork %d: timed out during %s", st.Name, fork, phase).Wrap(cause)
	default:
		return errorf(ETCanceled, "strategy %s fork %d: canceled during %s", st.Name, fork, phase).Wrap(cause)
	}
}

// blackhole receives every fork's accumulated results so the calls producing them are live.
var blackhole atomic.Uint64

func consume(v float64) {
	blackhole.Store(math.Float64bits(v))
}
