// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package topology

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// InstallSignalHandler sets a process-global interrupt flag on SIGINT
// (spec.md §4.5 "Cancellation"), returning it so callers can pass it to
// Engine.SetInterruptFlag. A second SIGINT forwards SIGTERM to any
// tracked worker children (parallel mode); a third SIGINT kills the
// process outright rather than risk hanging forever on an unresponsive
// child.
func InstallSignalHandler() *atomic.Bool {
	flag := &atomic.Bool{}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)

	go func() {
		count := 0
		for range ch {
			count++
			flag.Store(true)
			if count == 1 {
				continue
			}
			for _, p := range TrackedChildren() {
				_ = p.Signal(syscall.SIGTERM)
			}
			if count >= 3 {
				os.Exit(130)
			}
		}
	}()

	return flag
}
