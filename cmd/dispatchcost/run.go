package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/johnsiilver/dispatchcost/config"
	"github.com/johnsiilver/dispatchcost/fixture"
	"github.com/johnsiilver/dispatchcost/measure"
	"github.com/johnsiilver/dispatchcost/report"
	"github.com/johnsiilver/dispatchcost/strategy"
)

// errForksFailed is returned after results are written when any fork failed.
var errForksFailed = errors.New("one or more forks failed")

// chartWidth is the bar width of charts printed by run.
const chartWidth = 50

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Measure every selected strategy and write the results",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, log, err := load(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		return run(ctx, c, log)
	},
}

func init() {
	config.RegisterFlags(
		runCmd.Flags(),
		config.KeyForks, config.KeyWarmup, config.KeyMeasured, config.KeyBatch, config.KeyWorkers,
		config.KeyForkTimeout, config.KeyTimeout, config.KeyInclude, config.KeyOut, config.KeyChart,
		config.KeyMetricsFile, config.KeyHistory, config.KeyVerify,
	)
}

// selected resolves the shared handles and returns the strategies c includes.
func selected(c config.Config) (strategy.Set, error) {
	shared, err := fixture.ResolveShared()
	if err != nil {
		return nil, err
	}
	return strategy.NewSet(shared).Filter(c.Include)
}

func verify(set strategy.Set) error {
	f, err := fixture.Setup(nil)
	if err != nil {
		return err
	}
	return strategy.Verify(set, f)
}

func run(ctx context.Context, c config.Config, log *slog.Logger) error {
	set, err := selected(c)
	if err != nil {
		return err
	}
	if c.Verify {
		if err := verify(set); err != nil {
			return err
		}
		log.Debug("strategies verified", "count", len(set))
	}

	options := []measure.Option{measure.WithLogger(log)}
	var metrics *report.Metrics
	if c.MetricsFile != "" {
		metrics = report.NewMetrics()
		options = append(options, measure.WithObserver(metrics))
	}

	engine, err := measure.New(
		c.Measure,
		func() (*fixture.Fixture, error) {
			return fixture.Setup(nil)
		},
		options...,
	)
	if err != nil {
		return err
	}

	log.Info("measuring", "strategies", len(set), "forks", c.Measure.Forks, "warmup", c.Measure.Warmup, "measured", c.Measure.Measured, "batch", c.Measure.Batch)
	res, err := engine.Run(ctx, set)
	if err != nil {
		return err
	}

	sums := res.Summaries()
	rows := report.FromSummaries(sums)
	if err := report.WriteFile(c.Out, rows); err != nil {
		return err
	}
	log.Info("results written", "file", c.Out)

	if len(rows) > 0 {
		fmt.Fprintln(stdout, report.Table(rows))
		if c.Chart {
			fmt.Fprint(stdout, report.Chart(rows, chartWidth))
		}
	}

	if metrics != nil {
		metrics.Observe(sums)
		if err := metrics.WriteTextfile(c.MetricsFile); err != nil {
			return fmt.Errorf("could not write metrics file: %w", err)
		}
	}

	if c.History != "" {
		if err := record(c, sums); err != nil {
			return err
		}
	}

	if fails := res.Failures(); len(fails) > 0 {
		for _, s := range fails {
			fmt.Fprintf(stderr, "%s/%d: %v\n", s.Strategy, s.Fork, s.Err)
		}
		return fmt.Errorf("%w: %d of %d", errForksFailed, len(fails), len(res.Samples))
	}
	return nil
}

func record(c config.Config, sums []measure.Summary) error {
	store, err := report.OpenStore(c.History)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.Save(report.NewRun(c.Measure, sums))
}
