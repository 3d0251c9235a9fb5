package measure

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/johnsiilver/dispatchcost/fixture"
	"github.com/johnsiilver/dispatchcost/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup() (*fixture.Fixture, error) {
	return fixture.Setup(nil)
}

func baseline(t *testing.T) strategy.Strategy {
	t.Helper()
	shared, err := fixture.ResolveShared()
	require.NoError(t, err)
	st, ok := strategy.NewSet(shared).Lookup("BaselineInstance")
	require.True(t, ok)
	return st
}

func errType(err error) ErrType {
	var e Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ETUnknown
}

// countingStrategy counts its calls and panics on call number panicAt (1-based, 0 never).
func countingStrategy(name string, calls *atomic.Int64, panicAt int64) strategy.Strategy {
	return strategy.Strategy{
		Name:   name,
		Family: strategy.Instance,
		Call: func(f *fixture.Fixture) float64 {
			if n := calls.Add(1); n == panicAt {
				panic("boom")
			}
			return f.Subject.Difference()
		},
	}
}

func TestRunWarmupNotRecorded(t *testing.T) {
	cfg := Config{Forks: 1, Warmup: 2, Measured: 5, Batch: 1, Workers: 1}
	var calls atomic.Int64
	st := countingStrategy("Counting", &calls, 0)

	e, err := New(cfg, setup)
	require.NoError(t, err)

	res, err := e.Run(context.Background(), strategy.Set{st})
	require.NoError(t, err)

	require.Len(t, res.Samples, 1)
	s := res.Samples[0]
	assert.True(t, s.Valid())
	assert.Len(t, s.Elapsed, 5)
	assert.Len(t, s.PerCall(), 5)
	assert.GreaterOrEqual(t, s.Mean(), 0.0)
	assert.Equal(t, int64(7), calls.Load(), "2 warmup + 5 measured calls")
	assert.Empty(t, res.Failures())

	sums := res.Summaries()
	require.Len(t, sums, 1)
	assert.Equal(t, 5, sums[0].Samples)
	assert.Equal(t, 1, sums[0].Forks)
	assert.Equal(t, Unit, sums[0].Unit)
}

func TestRunBaseline(t *testing.T) {
	cfg := Config{Forks: 1, Warmup: 2, Measured: 5, Batch: 1, Workers: 1}
	e, err := New(cfg, setup)
	require.NoError(t, err)

	res, err := e.Run(context.Background(), strategy.Set{baseline(t)})
	require.NoError(t, err)
	require.Len(t, res.Samples, 1)
	assert.Len(t, res.Samples[0].Elapsed, 5)
	assert.GreaterOrEqual(t, res.Samples[0].Mean(), 0.0)
}

func TestForkPanicIsIsolated(t *testing.T) {
	cfg := Config{Forks: 2, Warmup: 2, Measured: 5, Batch: 1, Workers: 1}

	// Fork 0 makes calls 1-7: 2 warmup, then the 3rd measured call is call 5.
	var bad atomic.Int64
	var good atomic.Int64
	set := strategy.Set{
		countingStrategy("Bad", &bad, 5),
		countingStrategy("Good", &good, 0),
	}

	e, err := New(cfg, setup)
	require.NoError(t, err)

	res, err := e.Run(context.Background(), set)
	require.NoError(t, err)
	require.Len(t, res.Samples, 4)

	failed := res.Samples[0]
	assert.Equal(t, "Bad", failed.Strategy)
	assert.Equal(t, 0, failed.Fork)
	assert.False(t, failed.Valid())
	assert.Nil(t, failed.Elapsed)
	assert.Equal(t, ETForkPanic, errType(failed.Err))
	assert.ErrorContains(t, failed.Err, "measured iteration 3")
	assert.ErrorContains(t, failed.Err, "boom")

	// The panic counted as a call, so fork 1 starts at call 6 and never hits 5 again.
	assert.True(t, res.Samples[1].Valid(), "other forks of the same strategy are unaffected")
	assert.True(t, res.Samples[2].Valid())
	assert.True(t, res.Samples[3].Valid())

	fails := res.Failures()
	require.Len(t, fails, 1)
	assert.Equal(t, "Bad", fails[0].Strategy)

	sums := res.Summaries()
	require.Len(t, sums, 2)
	assert.Equal(t, 1, sums[0].Forks)
	assert.Equal(t, 1, sums[0].FailedForks)
	assert.Equal(t, 5, sums[0].Samples)
	assert.Equal(t, 2, sums[1].Forks)
	assert.Equal(t, 10, sums[1].Samples)
}

func TestSetupFailureIsFatal(t *testing.T) {
	cfg := Config{Forks: 3, Warmup: 0, Measured: 1, Batch: 1, Workers: 1}
	cause := errors.New("cannot resolve")
	e, err := New(cfg, func() (*fixture.Fixture, error) { return nil, cause })
	require.NoError(t, err)

	res, err := e.Run(context.Background(), strategy.Set{baseline(t)})
	require.Error(t, err)
	assert.Equal(t, ETConfig, errType(err))
	assert.ErrorIs(t, err, cause)

	require.NotNil(t, res)
	require.Len(t, res.Samples, 3)
	assert.Equal(t, ETConfig, errType(res.Samples[0].Err))
	for _, s := range res.Samples[1:] {
		assert.Equal(t, ETCanceled, errType(s.Err), "forks after a configuration error are not run")
	}
}

func TestForkTimeout(t *testing.T) {
	cfg := Config{Forks: 1, Warmup: 0, Measured: 1000, Batch: 1, Workers: 1, ForkTimeout: 20 * time.Millisecond}
	slow := strategy.Strategy{
		Name: "Slow",
		Call: func(f *fixture.Fixture) float64 {
			time.Sleep(time.Millisecond)
			return 0
		},
	}

	e, err := New(cfg, setup)
	require.NoError(t, err)

	res, err := e.Run(context.Background(), strategy.Set{slow, baseline(t)})
	require.NoError(t, err)
	require.Len(t, res.Samples, 2)

	assert.Equal(t, ETForkTimeout, errType(res.Samples[0].Err))
	assert.Nil(t, res.Samples[0].Elapsed, "partial timings are discarded")
	assert.True(t, res.Samples[1].Valid())
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e, err := New(Config{Forks: 2, Measured: 1, Batch: 1, Workers: 1}, setup)
	require.NoError(t, err)

	res, err := e.Run(ctx, strategy.Set{baseline(t)})
	require.NoError(t, err)
	require.Len(t, res.Samples, 2)
	for _, s := range res.Samples {
		assert.Equal(t, ETCanceled, errType(s.Err))
	}
	assert.Empty(t, res.Summaries())
}

type recorder struct {
	mu      sync.Mutex
	samples []Sample
}

func (r *recorder) ForkDone(s Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
}

func TestSamplesOrderedWithWorkers(t *testing.T) {
	shared, err := fixture.ResolveShared()
	require.NoError(t, err)
	set := strategy.NewSet(shared)

	cfg := Config{Forks: 3, Warmup: 1, Measured: 2, Batch: 10, Workers: 4}
	rec := &recorder{}
	e, err := New(cfg, setup, WithObserver(rec))
	require.NoError(t, err)

	res, err := e.Run(context.Background(), set)
	require.NoError(t, err)
	require.Len(t, res.Samples, len(set)*3)

	for i, s := range res.Samples {
		assert.Equal(t, set[i/3].Name, s.Strategy)
		assert.Equal(t, i%3, s.Fork)
		assert.True(t, s.Valid(), s.String())
		assert.Equal(t, 10, s.Ops)
	}
	assert.Len(t, rec.samples, len(set)*3)
	assert.Len(t, res.Summaries(), len(set))
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{}, setup)
	assert.Equal(t, ETConfig, errType(err))

	_, err = New(DefaultConfig(), nil)
	assert.Equal(t, ETConfig, errType(err))

	e, err := New(DefaultConfig(), setup)
	require.NoError(t, err)
	_, err = e.Run(context.Background(), nil)
	assert.Equal(t, ETConfig, errType(err))
}
