// Package config loads dispatchcost settings. Command line flags override DISPATCHCOST_*
// environment variables, which override the yaml config file, which overrides the defaults.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/johnsiilver/dispatchcost/measure"
)

// EnvPrefix prefixes every environment variable, e.g. DISPATCHCOST_FORKS.
const EnvPrefix = "DISPATCHCOST"

// Keys. A flag's name is its key with "_" replaced by "-".
const (
	KeyForks       = "forks"
	KeyWarmup      = "warmup"
	KeyMeasured    = "measured"
	KeyBatch       = "batch"
	KeyWorkers     = "workers"
	KeyForkTimeout = "fork_timeout"
	KeyTimeout     = "timeout"
	KeyInclude     = "include"
	KeyOut         = "out"
	KeyChart       = "chart"
	KeyMetricsFile = "metrics_file"
	KeyHistory     = "history"
	KeyLimit       = "limit"
	KeyVerify      = "verify"
	KeyVerbose     = "verbose"
)

// ErrInvalid is wrapped by every error from Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config is everything a dispatchcost command can be told.
type Config struct {
	Measure measure.Config

	// Include is a regexp selecting strategies by name. Empty selects all.
	Include string
	// Out is the CSV result file.
	Out string
	// Chart renders a bar chart after the result table.
	Chart bool
	// MetricsFile, when set, receives Prometheus metrics in the text format.
	MetricsFile string
	// History, when set, is a SQLite database every run is recorded in.
	History string
	// Limit is how many runs the history command shows.
	Limit int
	// Verify checks every strategy against the direct call before measuring.
	Verify bool
	Verbose bool
}

// SetDefaults sets the default of every key on v.
func SetDefaults(v *viper.Viper) {
	d := measure.DefaultConfig()
	v.SetDefault(KeyForks, d.Forks)
	v.SetDefault(KeyWarmup, d.Warmup)
	v.SetDefault(KeyMeasured, d.Measured)
	v.SetDefault(KeyBatch, d.Batch)
	v.SetDefault(KeyWorkers, d.Workers)
	v.SetDefault(KeyForkTimeout, d.ForkTimeout)
	v.SetDefault(KeyTimeout, d.Timeout)
	v.SetDefault(KeyInclude, "")
	v.SetDefault(KeyOut, "results.csv")
	v.SetDefault(KeyChart, false)
	v.SetDefault(KeyMetricsFile, "")
	v.SetDefault(KeyHistory, "")
	v.SetDefault(KeyLimit, 10)
	v.SetDefault(KeyVerify, true)
	v.SetDefault(KeyVerbose, false)
}

// FlagName returns the flag name for key.
func FlagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// RegisterFlags defines a flag on fs for each key. Flag defaults match SetDefaults.
func RegisterFlags(fs *pflag.FlagSet, keys ...string) {
	d := measure.DefaultConfig()
	for _, key := range keys {
		name := FlagName(key)
		switch key {
		case KeyForks:
			fs.Int(name, d.Forks, "independent forks per strategy")
		case KeyWarmup:
			fs.Int(name, d.Warmup, "warmup iterations per fork, not recorded")
		case KeyMeasured:
			fs.Int(name, d.Measured, "measured iterations per fork")
		case KeyBatch:
			fs.Int(name, d.Batch, "calls timed together as one iteration")
		case KeyWorkers:
			fs.Int(name, d.Workers, "forks allowed to run at once")
		case KeyForkTimeout:
			fs.Duration(name, d.ForkTimeout, "bound on a single fork, 0 for none")
		case KeyTimeout:
			fs.Duration(name, d.Timeout, "bound on the whole run, 0 for none")
		case KeyInclude:
			fs.String(name, "", "regexp selecting strategies by name")
		case KeyOut:
			fs.String(name, "results.csv", "CSV result file")
		case KeyChart:
			fs.Bool(name, false, "render a bar chart after the result table")
		case KeyMetricsFile:
			fs.String(name, "", "write Prometheus metrics to this file")
		case KeyHistory:
			fs.String(name, "", "SQLite database recording every run")
		case KeyLimit:
			fs.Int(name, 10, "number of runs to show")
		case KeyVerify:
			fs.Bool(name, true, "check every strategy computes the direct call's result before measuring")
		case KeyVerbose:
			fs.BoolP(name, "v", false, "debug logging")
		default:
			panic(fmt.Sprintf("config: unknown key %q", key))
		}
	}
}

// BindFlags binds every flag in fs that names a key to that key.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		key := strings.ReplaceAll(f.Name, "-", "_")
		if !isKey(key) {
			return
		}
		err = v.BindPFlag(key, f)
	})
	return err
}

func isKey(key string) bool {
	switch key {
	case KeyForks, KeyWarmup, KeyMeasured, KeyBatch, KeyWorkers, KeyForkTimeout, KeyTimeout,
		KeyInclude, KeyOut, KeyChart, KeyMetricsFile, KeyHistory, KeyLimit, KeyVerify, KeyVerbose:
		return true
	}
	return false
}

// Load reads the configuration. If file is set it must exist; otherwise dispatchcost.yaml is
// read from the working directory when present.
func Load(v *viper.Viper, file string) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("dispatchcost")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("could not read config file: %w", err)
		}
	}

	c := Config{
		Measure: measure.Config{
			Forks:       v.GetInt(KeyForks),
			Warmup:      v.GetInt(KeyWarmup),
			Measured:    v.GetInt(KeyMeasured),
			Batch:       v.GetInt(KeyBatch),
			Workers:     v.GetInt(KeyWorkers),
			ForkTimeout: v.GetDuration(KeyForkTimeout),
			Timeout:     v.GetDuration(KeyTimeout),
		},
		Include:     v.GetString(KeyInclude),
		Out:         v.GetString(KeyOut),
		Chart:       v.GetBool(KeyChart),
		MetricsFile: v.GetString(KeyMetricsFile),
		History:     v.GetString(KeyHistory),
		Limit:       v.GetInt(KeyLimit),
		Verify:      v.GetBool(KeyVerify),
		Verbose:     v.GetBool(KeyVerbose),
	}
	return c, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if err := c.Measure.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := regexp.Compile(c.Include); err != nil {
		return fmt.Errorf("%w: include: %w", ErrInvalid, err)
	}
	if c.Out == "" {
		return fmt.Errorf("%w: out cannot be empty", ErrInvalid)
	}
	if c.Limit < 1 {
		return fmt.Errorf("%w: limit must be at least 1, got %d", ErrInvalid, c.Limit)
	}
	return nil
}
