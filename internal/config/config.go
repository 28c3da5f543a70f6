// Package config binds the CLI host's flags to FLOWR_* environment
// variables via viper, generalizing the teacher's getenvInt helper
// (cmd/server/main.go) into the idiomatic viper/cobra pattern the rest of
// the retrieval pack reaches for instead of hand-rolled os.Getenv parsing.
package config

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Run holds the settings of one `flowr run` invocation (spec §6 "CLI
// surface of the host").
type Run struct {
	ManifestURL     string
	FlowArgs        []string
	Threads         int
	MaxParallelJobs int
	Debug           bool
	Native          bool
	Metrics         bool
	LibSearchPath   string
	ContextRoot     string
}

// BindRunFlags registers `flowr run`'s flags on cmd and binds each to a
// FLOWR_* environment variable through v, mirroring the teacher's
// getenvInt(key, def) fallback chain (flag > env > default) but through
// viper instead of a hand-rolled helper.
func BindRunFlags(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.Flags()
	flags.Int("threads", 4, "number of general executor worker goroutines")
	flags.Int("max-parallel-jobs", 8, "maximum number of jobs outstanding at once")
	flags.Bool("debug", false, "enable the line-oriented CLI debugger")
	flags.Bool("native", true, "prefer native library implementations over WASM when both are available")
	flags.Bool("metrics", false, "expose Prometheus counters for the submission")
	flags.String("lib-search-path", "", "colon/comma separated lib:// search path")
	flags.String("context-root", "", "root directory resolved against context:// locations")

	v.SetEnvPrefix("FLOWR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(flags)
}

// LoadRun reads the bound flags/env vars into a Run. args is the
// manifest URL followed by any flow-args (spec §6 "run <manifest-url>
// [flow-args...]").
func LoadRun(v *viper.Viper, args []string) Run {
	var manifestURL string
	var flowArgs []string
	if len(args) > 0 {
		manifestURL = args[0]
		flowArgs = args[1:]
	}
	return Run{
		ManifestURL:     manifestURL,
		FlowArgs:        flowArgs,
		Threads:         v.GetInt("threads"),
		MaxParallelJobs: v.GetInt("max-parallel-jobs"),
		Debug:           v.GetBool("debug"),
		Native:          v.GetBool("native"),
		Metrics:         v.GetBool("metrics"),
		LibSearchPath:   v.GetString("lib-search-path"),
		ContextRoot:     v.GetString("context-root"),
	}
}
