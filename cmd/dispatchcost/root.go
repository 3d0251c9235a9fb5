package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/johnsiilver/dispatchcost/config"
)

var (
	exit   = os.Exit
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

var rootCmd = &cobra.Command{
	Use:   "dispatchcost",
	Short: "Measure the cost of dynamic method invocation",
	Long: `dispatchcost times the same two operations, an instance method and a package
function, called directly, through reflect.Value.Call and through dynamic
handles in their generic, exact, shared and bound forms.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the command line. It only needs to happen once.
func Execute() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(stderr, "\n=== CRITICAL ERROR: Command Execution Panic ===\n")
			fmt.Fprintf(stderr, "Error: %v\n", r)
			exit(1)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default is ./dispatchcost.yaml)")
	config.RegisterFlags(rootCmd.PersistentFlags(), config.KeyVerbose)

	rootCmd.AddCommand(runCmd, verifyCmd, listCmd, chartCmd, historyCmd)
}

// load reads the configuration for cmd and builds the logger.
func load(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	v := viper.New()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return config.Config{}, nil, err
	}
	file, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, nil, err
	}

	c, err := config.Load(v, file)
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := c.Validate(); err != nil {
		return config.Config{}, nil, err
	}
	return c, newLogger(c.Verbose), nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
}
