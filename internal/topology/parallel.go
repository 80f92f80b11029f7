// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package topology

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"grimm.is/netsim/internal/errors"
)

// batchSize is the number of routers handed to a single worker process
// (spec.md §4.5 "Parallelism": batches of ten).
const batchSize = 10

// WorkerSliceFlag is the internal flag name cmd/netsim-setup recognizes
// to re-invoke itself as a batch worker rather than the top-level
// engine (spec §5 "process-level, fork-derived worker children").
const WorkerSliceFlag = "--worker-slice"

var (
	childrenMu sync.Mutex
	children   []*os.Process
)

// TrackedChildren returns the PIDs of currently running worker
// processes, for the SIGINT handler to forward SIGTERM to on a second
// interrupt (spec.md §4.5 "Cancellation").
func TrackedChildren() []*os.Process {
	childrenMu.Lock()
	defer childrenMu.Unlock()
	out := make([]*os.Process, len(children))
	copy(out, children)
	return out
}

func trackChild(p *os.Process) {
	childrenMu.Lock()
	children = append(children, p)
	childrenMu.Unlock()
}

func untrackChild(p *os.Process) {
	childrenMu.Lock()
	defer childrenMu.Unlock()
	for i, c := range children {
		if c == p {
			children = append(children[:i], children[i+1:]...)
			return
		}
	}
}

// runParallel forks one child process per batch of ten routers,
// re-invoking the running executable with WorkerSliceFlag. Phase A has
// already completed and populated every bridge by the time this runs.
// Workers still write to the shared registry: each allocates the router
// and interface codes for its own slice. The batches do not run
// concurrently: each worker is waited on before the next one starts, so
// registry writes never overlap.
func (e *Engine) runParallel(names []string, verbose bool, summary *Summary) error {
	exe, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "topology: resolve executable path for worker re-exec")
	}

	var firstErr error
	for start := 0; start < len(names); start += batchSize {
		if err := e.checkInterrupted(); err != nil {
			return err
		}
		end := start + batchSize
		if end > len(names) {
			end = len(names)
		}
		slice := names[start:end]

		childSummary, err := e.runWorkerBatch(exe, slice, verbose)
		summary.Namespaces += childSummary.Namespaces
		summary.Interfaces += childSummary.Interfaces
		summary.Routes += childSummary.Routes
		summary.Rules += childSummary.Rules
		summary.Warnings += childSummary.Warnings
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (e *Engine) runWorkerBatch(exe string, slice []string, verbose bool) (Summary, error) {
	args := []string{WorkerSliceFlag, strings.Join(slice, ",")}
	if verbose {
		args = append(args, "-v")
	}
	cmd := exec.Command(exe, args...)
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Summary{}, errors.Wrap(err, errors.KindInternal, "topology: open worker stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		return Summary{}, errors.Wrapf(err, errors.KindInternal, "topology: start worker for %v", slice)
	}
	trackChild(cmd.Process)
	defer untrackChild(cmd.Process)

	var s Summary
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if parsed, ok := parseWorkerSummaryLine(scanner.Text()); ok {
			s = parsed
		}
	}

	if err := cmd.Wait(); err != nil {
		return s, errors.Wrapf(err, errors.KindInternal, "topology: worker for %v exited with error", slice)
	}
	return s, nil
}

// workerSummaryPrefix marks the single line a worker slice process
// emits on stdout so its parent can recover per-batch counts.
const workerSummaryPrefix = "TSIM_WORKER_SUMMARY "

// PrintWorkerSummary is called by the worker-slice entry point after
// RunWorkerSlice completes, so the parent can parse its counts back
// out of the child's stdout.
func PrintWorkerSummary(s Summary) {
	fmt.Printf("%snamespaces=%d interfaces=%d routes=%d rules=%d warnings=%d\n",
		workerSummaryPrefix, s.Namespaces, s.Interfaces, s.Routes, s.Rules, s.Warnings)
}

func parseWorkerSummaryLine(line string) (Summary, bool) {
	if !strings.HasPrefix(line, workerSummaryPrefix) {
		return Summary{}, false
	}
	fields := strings.Fields(strings.TrimPrefix(line, workerSummaryPrefix))
	var s Summary
	for _, f := range fields {
		kv := strings.SplitN(f, "=", 2)
		if len(kv) != 2 {
			continue
		}
		n, err := strconv.Atoi(kv[1])
		if err != nil {
			continue
		}
		switch kv[0] {
		case "namespaces":
			s.Namespaces = n
		case "interfaces":
			s.Interfaces = n
		case "routes":
			s.Routes = n
		case "rules":
			s.Rules = n
		case "warnings":
			s.Warnings = n
		}
	}
	return s, true
}

// RunWorkerSlice is the worker-slice entry point: it runs Phase B
// sequentially over exactly the given router names, using an
// already-populated registry, and returns the aggregate Summary for
// the caller to print via PrintWorkerSummary.
func (e *Engine) RunWorkerSlice(names []string, verbose bool) (Summary, error) {
	var summary Summary
	err := e.runSequential(names, verbose, &summary)
	return summary, err
}
