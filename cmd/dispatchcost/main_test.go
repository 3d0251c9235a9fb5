package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnsiilver/dispatchcost/report"
)

// execute runs the command line with args and returns what it printed and its exit code.
func execute(t *testing.T, args ...string) (out, errOut string, code int) {
	t.Helper()

	var o, e bytes.Buffer
	stdout, stderr = &o, &e
	exit = func(c int) { code = c }
	t.Cleanup(func() {
		stdout, stderr = os.Stdout, os.Stderr
		exit = os.Exit
	})

	resetFlags(rootCmd)
	rootCmd.SetArgs(args)
	Execute()
	return o.String(), e.String(), code
}

// resetFlags puts every flag of cmd and its subcommands back to its default, so a flag set by
// one execute does not carry into the next.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if err := f.Value.Set(f.DefValue); err != nil {
			panic(err)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func TestRunWritesEverything(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "results.csv")
	metrics := filepath.Join(dir, "dispatchcost.prom")
	history := filepath.Join(dir, "history.db")

	stdout, stderr, code := execute(
		t, "run",
		"--forks=1", "--warmup=1", "--measured=2", "--batch=10",
		"--include=^Baseline|^Reflect",
		"--out="+out, "--chart", "--metrics-file="+metrics, "--history="+history,
	)
	require.Equal(t, 0, code, stderr)

	rows, err := report.ReadFile(out)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for _, name := range []string{"BaselineInstance", "ReflectInstance", "BaselineStatic", "ReflectStatic"} {
		assert.Contains(t, stdout, name)
	}
	assert.Contains(t, stdout, "█")

	b, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(b), `dispatchcost_forks_total{family="static",strategy="ReflectStatic"} 1`)

	store, err := report.OpenStore(history)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.Recent(5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Len(t, runs[0].Summaries, 4)

	hist, _, code := execute(t, "history", "--history="+history, "--limit=1")
	require.Equal(t, 0, code)
	assert.Contains(t, hist, runs[0].ID.String())

	chart, _, code := execute(t, "chart", out)
	require.Equal(t, 0, code)
	assert.Contains(t, chart, "ReflectStatic")
}

func TestListAndVerify(t *testing.T) {
	list, _, code := execute(t, "list", "--include=")
	require.Equal(t, 0, code)
	assert.Len(t, strings.Split(strings.TrimSpace(list), "\n"), 14)
	assert.Contains(t, list, "SharedHandleStaticExact")

	verified, _, code := execute(t, "verify", "--include=Exact$")
	require.Equal(t, 0, code)
	assert.Equal(t, "6 strategies verified\n", verified)
}

func TestConfigErrorsExit(t *testing.T) {
	tests := []struct {
		desc string
		args []string
	}{
		{desc: "include matches nothing", args: []string{"list", "--include=NoSuchStrategy"}},
		{desc: "bad include", args: []string{"verify", "--include=(["}},
		{desc: "missing history", args: []string{"history", "--history="}},
		{desc: "missing result file", args: []string{"chart", filepath.Join(t.TempDir(), "none.csv")}},
		{desc: "unknown command", args: []string{"measure"}},
	}

	for _, test := range tests {
		_, stderr, code := execute(t, test.args...)
		assert.Equal(t, 1, code, test.desc)
		assert.Contains(t, stderr, "Error:", test.desc)
	}
}

func TestFlagsDoNotLeakBetweenRuns(t *testing.T) {
	dir := t.TempDir()

	_, _, code := execute(t, "run", "--include=^BaselineInstance$", "--fork-timeout=1ns", "--out="+filepath.Join(dir, "a.csv"))
	require.Equal(t, 1, code)

	out := filepath.Join(dir, "b.csv")
	_, stderr, code := execute(t, "run", "--include=^BaselineInstance$", "--warmup=0", "--measured=1", "--batch=1", "--out="+out)
	require.Equal(t, 0, code, stderr)
	rows, err := report.ReadFile(out)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestRunFailedForksExit(t *testing.T) {
	out := filepath.Join(t.TempDir(), "results.csv")

	_, stderr, code := execute(
		t, "run",
		"--include=^BaselineInstance$", "--forks=2", "--warmup=1", "--measured=2", "--batch=10",
		"--fork-timeout=1ns", "--out="+out,
	)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "BaselineInstance/0:")
	assert.Contains(t, stderr, "BaselineInstance/1:")
	assert.Contains(t, stderr, "one or more forks failed: 2 of 2")

	// Results are written before the failure is reported. No fork finished, so only the header.
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(report.Header, ",")+"\n", string(b))
}

func TestRunUnwritableResultFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "missing", "results.csv")

	_, stderr, code := execute(
		t, "run",
		"--include=^BaselineInstance$", "--warmup=0", "--measured=1", "--batch=1",
		"--out="+out,
	)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "could not create result file")
	assert.NoFileExists(t, out)
}
