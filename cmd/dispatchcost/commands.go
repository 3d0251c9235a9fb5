package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/johnsiilver/dispatchcost/config"
	"github.com/johnsiilver/dispatchcost/report"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check every selected strategy computes what the direct call computes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := load(cmd)
		if err != nil {
			return err
		}
		set, err := selected(c)
		if err != nil {
			return err
		}
		if err := verify(set); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%d strategies verified\n", len(set))
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the selected strategies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := load(cmd)
		if err != nil {
			return err
		}
		set, err := selected(c)
		if err != nil {
			return err
		}
		for _, st := range set {
			fmt.Fprintf(stdout, "%-28s %-9s %s\n", st.Name, st.Family, st.Mechanism)
		}
		return nil
	},
}

var chartCmd = &cobra.Command{
	Use:   "chart <results.csv>",
	Short: "Render a result file as a table and bar chart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		width, err := cmd.Flags().GetInt("width")
		if err != nil {
			return err
		}
		rows, err := report.ReadFile(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, report.Table(rows))
		fmt.Fprint(stdout, report.Chart(rows, width))
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := load(cmd)
		if err != nil {
			return err
		}
		if c.History == "" {
			return errors.New("--history is required")
		}

		store, err := report.OpenStore(c.History)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.Recent(c.Limit)
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Fprintf(
				stdout,
				"run %s at %s: forks=%d warmup=%d measured=%d batch=%d workers=%d\n",
				r.ID, r.Timestamp.Format("2006-01-02 15:04:05Z07:00"),
				r.Config.Forks, r.Config.Warmup, r.Config.Measured, r.Config.Batch, r.Config.Workers,
			)
			fmt.Fprintln(stdout, report.Table(report.FromSummaries(r.Summaries)))
		}
		return nil
	},
}

func init() {
	config.RegisterFlags(verifyCmd.Flags(), config.KeyInclude)
	config.RegisterFlags(listCmd.Flags(), config.KeyInclude)
	config.RegisterFlags(historyCmd.Flags(), config.KeyHistory, config.KeyLimit)
	chartCmd.Flags().Int("width", chartWidth, "bar width in cells")
}
