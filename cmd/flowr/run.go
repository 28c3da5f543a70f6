package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"flowrun/internal/config"
	"flowrun/internal/contextlib"
	"flowrun/internal/coordinator"
	"flowrun/internal/debugger"
	"flowrun/internal/dispatcher"
	"flowrun/internal/executor"
	"flowrun/internal/flowstdlib"
	"flowrun/internal/logging"
	"flowrun/internal/model"
	"flowrun/internal/provider"
)

var startedAt = time.Now()

type cancellationError struct{ inner error }

func (e cancellationError) Error() string { return e.inner.Error() }
func (e cancellationError) Unwrap() error { return e.inner }

func asCancellation(err error) (cancellationError, bool) {
	var ce cancellationError
	ok := errors.As(err, &ce)
	return ce, ok
}

func newRunCommand() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "run <manifest-url> [flow-args...]",
		Short: "Load a flow manifest and run it to completion",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlow(cmd.Context(), config.LoadRun(v, args))
		},
	}
	config.BindRunFlags(cmd, v)
	return cmd
}

func runFlow(ctx context.Context, run config.Run) error {
	log := logging.New(os.Stderr, "info", true)
	if run.Debug {
		log = logging.New(os.Stderr, "debug", true)
	}

	ctx, cancel := context.WithCancel(ctx)

	// The dispatcher's control endpoint (spec §4.6 "control: out-of-band
	// signals (shutdown, reset)") is the one any external caller uses to
	// ask the coordinator to stop; ctx is cancelled too so the manifest
	// fetch, WASM calls, and executor pool - none of which watch the
	// control channel - unblock the same way.
	transport := dispatcher.NewChanTransport(run.MaxParallelJobs*2, run.MaxParallelJobs, run.MaxParallelJobs*2)
	defer transport.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Warn().Msg("shutdown signal received")
		transport.Control(dispatcher.ControlShutdown)
		cancel()
	}()

	manifestProvider := provider.NewManifestProvider(30*time.Second, log)
	manifestBytes, err := manifestProvider.Fetch(ctx, run.ManifestURL)
	if err != nil {
		cancel()
		return errors.Wrap(err, "loading flow manifest")
	}
	manifest, err := model.DecodeFlowManifest(manifestBytes)
	if err != nil {
		cancel()
		return errors.Wrap(err, "decoding flow manifest")
	}

	wasmLoader := provider.NewWasmLoader(ctx, 0, log)
	defer wasmLoader.Close(context.Background())

	libLoader := provider.NewLibraryLoader(run.LibSearchPath, manifestProvider, wasmLoader, log)
	registerNativeLibrary(libLoader)

	contextLoader := provider.NewContextLoader(log)
	registerContextLibrary(contextLoader, run.ContextRoot)

	resolve := provider.Resolver(libLoader, contextLoader, wasmLoader, run.Native)
	functions, err := model.BuildFunctionTable(manifest, resolve)
	if err != nil {
		cancel()
		return errors.Wrap(err, "building function table")
	}

	pool := executor.New(transport, run.Threads, log)
	pool.Start(ctx)

	// Registration order matters: defers run LIFO. cancel (registered
	// last here) must fire first so pool workers blocked in RecvJob(ctx)
	// unblock; pool.Wait then blocks until they've actually returned,
	// before the WASM runtime and transport they call into are closed.
	defer pool.Wait()
	defer cancel()

	var opts []coordinator.Option
	if run.Debug {
		opts = append(opts, coordinator.WithDebugger(debugger.NewCLI(os.Stdin, os.Stdout, log)))
	}
	var reg *prometheus.Registry
	if run.Metrics {
		reg = prometheus.NewRegistry()
		opts = append(opts, coordinator.WithMetrics(coordinator.NewMetrics(reg)))
	}

	c := coordinator.New(functions, transport, run.MaxParallelJobs, log, opts...)
	end, err := c.Run(ctx)
	if err != nil {
		return errors.Wrap(err, "submission failed")
	}

	printStatus(end)
	if reg != nil {
		printMetrics(reg)
	}

	if end.Status == model.TerminatedCancelled {
		return cancellationError{inner: errors.New("submission cancelled")}
	}
	return nil
}

// registerNativeLibrary wires flowstdlib's native functions under the
// symbols a library manifest's {Native: symbol} locators would name (spec
// §4.13). Take is parameterized by its terminal count N, so it is
// registered as a factory keyed on a "flowstdlib.take.<n>" symbol family
// rather than a single fixed handle.
func registerNativeLibrary(l *provider.LibraryLoader) {
	l.RegisterNative("flowstdlib.add", model.ImplementationFunc(flowstdlib.Add))
	l.RegisterNative("flowstdlib.split", model.ImplementationFunc(flowstdlib.Split))
	l.RegisterNativeFactory("flowstdlib.take.", func(rest string) (model.Implementation, error) {
		n, err := strconv.Atoi(rest)
		if err != nil {
			return nil, errors.Wrapf(err, "flowstdlib.take: invalid count %q", rest)
		}
		return flowstdlib.Take(n), nil
	})
}

// registerContextLibrary wires contextlib's built-ins under the "dir/sub"
// keys a context:// location names (spec §4.12).
func registerContextLibrary(c *provider.ContextLoader, root string) {
	if root == "" {
		root = "."
	}
	stdio := contextlib.NewStdio(os.Stdin, os.Stdout, os.Stderr)
	c.Register("stdio/stdin", model.ImplementationFunc(stdio.Stdin))
	c.Register("stdio/stdout", model.ImplementationFunc(stdio.Stdout))
	c.Register("stdio/stderr", model.ImplementationFunc(stdio.Stderr))

	files := contextlib.NewFileIO(root)
	c.Register("file/file_write", model.ImplementationFunc(files.Write))
	c.Register("file/file_read", model.ImplementationFunc(files.Read))
}

// printStatus prints a pid/uptime/termination summary to stdout, in the
// spirit of the teacher's GET /status endpoint (internal/server/server.go
// `HandleConn`'s "/status" branch) - exposed as a CLI side effect rather
// than an HTTP route, since this runtime has no client protocol of its own.
func printStatus(end model.FlowEnd) {
	out := map[string]any{
		"pid":            os.Getpid(),
		"uptime_ms":      time.Since(startedAt).Milliseconds(),
		"status":         end.Status.String(),
		"jobs_processed": end.JobsProcessed,
		"execution_errs": end.ExecutionErrs,
	}
	b, _ := json.Marshal(out)
	fmt.Println(string(b))
}

func printMetrics(reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		return
	}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			if m.GetCounter() != nil {
				fmt.Printf("%s %v\n", f.GetName(), m.GetCounter().GetValue())
			}
		}
	}
}
