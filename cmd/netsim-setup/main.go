// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command netsim-setup materializes (or tears down) a simulated router
// topology as Linux network namespaces, reading captured facts from
// TRACEROUTE_SIMULATOR_RAW_FACTS (spec §6).
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"grimm.is/netsim/internal/errors"
	"grimm.is/netsim/internal/facts"
	"grimm.is/netsim/internal/logging"
	"grimm.is/netsim/internal/netctl"
	"grimm.is/netsim/internal/registry"
	"grimm.is/netsim/internal/topology"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		verboseCount int
		parallel     bool
		limit        string
		cleanup      bool
		help         bool
		workerSlice  string
	)

	fs := flag.NewFlagSet("netsim-setup", flag.ContinueOnError)
	fs.BoolVar(&parallel, "parallel", false, "enable batched parallel setup")
	fs.BoolVar(&parallel, "p", false, "enable batched parallel setup (shorthand)")
	fs.StringVar(&limit, "limit", "", "only process routers whose name contains this substring")
	fs.BoolVar(&cleanup, "cleanup", false, "tear down the topology instead of creating it")
	fs.BoolVar(&help, "help", false, "show usage")
	fs.BoolVar(&help, "h", false, "show usage (shorthand)")
	fs.StringVar(&workerSlice, topology.WorkerSliceFlag[2:], "", "internal: comma-separated router names for a worker-slice child")
	fs.BoolFunc("verbose", "increase verbosity (repeatable)", func(string) error { verboseCount++; return nil })
	fs.BoolFunc("v", "increase verbosity (repeatable, shorthand)", func(string) error { verboseCount++; return nil })

	if err := fs.Parse(os.Args[1:]); err != nil {
		return 1
	}
	if help {
		fs.Usage()
		return 0
	}

	factsDir := os.Getenv("TRACEROUTE_SIMULATOR_RAW_FACTS")
	if factsDir == "" {
		fmt.Fprintln(os.Stderr, "netsim-setup: TRACEROUTE_SIMULATOR_RAW_FACTS must be set")
		return 1
	}

	logger := logging.New(logging.DefaultConfig()).WithFields(map[string]any{
		"run_id": uuid.NewString(),
	})

	if os.Geteuid() != 0 {
		logger.Error("netsim-setup must run as root")
		return 1
	}

	model, warnings, err := facts.ParseDirectory(factsDir)
	if err != nil {
		logFailure(logger, "failed to load facts directory", err)
		return 1
	}
	for _, w := range warnings {
		logger.Warn("skipped router facts file", "router", w.Router, "path", w.Path, "error", w.Err)
	}

	reg, err := registry.Open(workerSlice == "")
	if err != nil {
		logFailure(logger, "failed to open shared registry", err)
		return 1
	}
	defer reg.Close()

	ctl := netctl.New()
	engine := topology.NewEngine(logger, ctl, reg, model)

	if workerSlice != "" {
		names := strings.Split(workerSlice, ",")
		summary, err := engine.RunWorkerSlice(names, verboseCount > 0)
		topology.PrintWorkerSummary(summary)
		if err != nil {
			return 1
		}
		return 0
	}

	interruptFlag := topology.InstallSignalHandler()
	engine.SetInterruptFlag(interruptFlag)

	opts := topology.Options{
		FactsDir: factsDir,
		Verbose:  verboseCount,
		Parallel: parallel,
		Limit:    limit,
		Cleanup:  cleanup,
	}

	summary, err := engine.Run(opts)
	if err != nil {
		if errors.GetKind(err) == errors.KindInterrupted {
			logger.Warn("interrupted")
			return 130
		}
		logFailure(logger, "topology run failed", err)
		return 1
	}

	if cleanup {
		fmt.Println("cleanup complete")
		return 0
	}

	fmt.Printf("namespaces=%d interfaces=%d bridges=%d routes=%d rules=%d warnings=%d\n",
		summary.Namespaces, summary.Interfaces, summary.Bridges, summary.Routes, summary.Rules, summary.Warnings)
	return 0
}

// logFailure reports a fatal error with its structured kind, any
// attributes attached along its chain (e.g. the offending IP or subnet
// from internal/netctl), and its immediate underlying cause.
func logFailure(logger *logging.Logger, msg string, err error) {
	l := logger.WithError(err)

	var structured *errors.Error
	if errors.As(err, &structured) {
		l = l.WithFields(map[string]any{"kind": structured.Kind.String()})
	}
	if attrs := errors.GetAttributes(err); len(attrs) > 0 {
		l = l.WithFields(attrs)
	}
	l.Error(msg)

	if cause := errors.Unwrap(err); cause != nil && cause != err {
		logger.Warn("underlying cause", "cause", cause)
	}
}
