// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package topology is the two-phase materialization engine: it creates
// the hidden mesh infrastructure, then wires each router's namespace,
// veth pairs, addresses, routes, rules, and packet filters (spec §4.5).
package topology

import (
	"sync/atomic"

	"grimm.is/netsim/internal/errors"
	"grimm.is/netsim/internal/facts"
	"grimm.is/netsim/internal/logging"
	"grimm.is/netsim/internal/netctl"
	"grimm.is/netsim/internal/registry"
)

// HiddenNamespace is the fixed literal name of the hidden mesh namespace
// (spec §6 "Fixed names").
const HiddenNamespace = "hidden-mesh"

// CodeRegistry is the subset of *registry.Registry the engine needs.
// Expressed as an interface so tests can substitute an in-memory
// implementation without shared memory or root (spec §8).
type CodeRegistry interface {
	GetOrCreateRouterCode(name string) (string, error)
	GetOrCreateInterfaceCode(routerCode, ifaceName string) (string, error)
	RegisterBridge(name, subnet string) (int, error)
	MarkBridgeCreated(idx int) error
	FindBridgeBySubnet(subnet string) (registry.Bridge, bool)
}

// Options is the resolved CLI flag / environment bundle (spec §6).
type Options struct {
	FactsDir string
	Verbose  int
	Parallel bool
	Limit    string
	Cleanup  bool
}

// Summary reports the counts the process prints at the end of a run
// (spec §7 "user-visible failure surface").
type Summary struct {
	Namespaces int
	Interfaces int
	Bridges    int
	Routes     int
	Rules      int
	Warnings   int
}

// Engine ties the facts model, the code registry, and the kernel
// control-plane controller together to materialize (or tear down) the
// simulated topology.
type Engine struct {
	logger *logging.Logger
	ctl    netctl.Controller
	reg    CodeRegistry
	model  *facts.Model

	interrupted *atomic.Bool
}

// NewEngine builds an Engine over an already-loaded facts Model.
func NewEngine(logger *logging.Logger, ctl netctl.Controller, reg CodeRegistry, model *facts.Model) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		logger:      logger,
		ctl:         ctl,
		reg:         reg,
		model:       model,
		interrupted: &atomic.Bool{},
	}
}

// SetInterruptFlag wires an externally-owned interrupt flag (typically
// the one returned by InstallSignalHandler) into this
// engine, so per-router loops observe SIGINT (spec §4.5 "Cancellation").
func (e *Engine) SetInterruptFlag(flag *atomic.Bool) {
	e.interrupted = flag
}

func (e *Engine) checkInterrupted() error {
	if e.interrupted != nil && e.interrupted.Load() {
		return errors.New(errors.KindInterrupted, "topology: interrupted")
	}
	return nil
}

// Run executes Phase A then Phase B (sequentially or in parallel
// batches) over every router in the model matching opts.Limit, or
// performs Cleanup if opts.Cleanup is set.
func (e *Engine) Run(opts Options) (Summary, error) {
	if opts.Cleanup {
		return Summary{}, e.Cleanup()
	}

	e.model.FilterByLimit(opts.Limit)

	bridgesCreated, err := e.SetupMesh()
	if err != nil {
		if errors.GetKind(err) == errors.KindInterrupted {
			return Summary{}, err
		}
		return Summary{}, errors.Wrap(err, errors.KindInternal, "phase A (hidden mesh) failed")
	}

	summary := Summary{Bridges: bridgesCreated}

	names := append([]string(nil), e.model.Order...)
	if opts.Parallel {
		err = e.runParallel(names, opts.Verbose > 0, &summary)
	} else {
		err = e.runSequential(names, opts.Verbose > 0, &summary)
	}
	return summary, err
}

func (e *Engine) runSequential(names []string, verbose bool, summary *Summary) error {
	for _, name := range names {
		if err := e.checkInterrupted(); err != nil {
			return err
		}
		if err := e.SetupRouter(name, verbose, summary); err != nil {
			e.logger.WithError(err).Warn("router setup failed", "router", name)
			summary.Warnings++
		}
	}
	return nil
}
