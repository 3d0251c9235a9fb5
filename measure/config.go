package measure

import "time"

// Config controls how many times each strategy runs.
type Config struct {
	// Forks is the number of independent forks per strategy. Each fork gets a fresh fixture.
	Forks int
	// Warmup is the number of iterations per fork whose timings are discarded.
	Warmup int
	// Measured is the number of timed iterations per fork.
	Measured int
	// Batch is the number of consecutive calls timed as one iteration. Large batches amortize
	// the cost of reading the clock.
	Batch int
	// Workers is the number of forks allowed to run at once. Anything above 1 lets forks
	// compete for CPU and memory bandwidth.
	Workers int
	// ForkTimeout bounds a single fork. Zero means no bound.
	ForkTimeout time.Duration
	// Timeout bounds the whole run. Zero means no bound.
	Timeout time.Duration
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Forks:    1,
		Warmup:   10,
		Measured: 10,
		Batch:    1 << 20,
		Workers:  1,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Forks < 1:
		return errorf(ETConfig, "forks must be at least 1, got %d", c.Forks)
	case c.Warmup < 0:
		return errorf(ETConfig, "warmup must not be negative, got %d", c.Warmup)
	case c.Measured < 1:
		return errorf(ETConfig, "measured must be at least 1, got %d", c.Measured)
	case c.Batch < 1:
		return errorf(ETConfig, "batch must be at least 1, got %d", c.Batch)
	case c.Workers < 1:
		return errorf(ETConfig, "workers must be at least 1, got %d", c.Workers)
	case c.ForkTimeout < 0:
		return errorf(ETConfig, "fork timeout must not be negative, got %s", c.ForkTimeout)
	case c.Timeout < 0:
		return errorf(ETConfig, "timeout must not be negative, got %s", c.Timeout)
	}
	return nil
}
