// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package topology

import (
	"grimm.is/netsim/internal/errors"
	"grimm.is/netsim/internal/registry"
)

// Cleanup tears down every simulated namespace and the hidden mesh,
// then clears and unlinks the shared registry (spec §4.6). Every
// individual kernel-teardown step is best-effort: a missing namespace
// or already-gone link is not an error, and Cleanup proceeds through
// the full list regardless of earlier failures so a partial previous
// run can always be fully reclaimed.
func (e *Engine) Cleanup() error {
	var warnings int

	for _, name := range e.model.Order {
		if err := e.ctl.DeleteNamespace(name); err != nil {
			e.logger.WithError(err).Warn("delete router namespace failed", "router", name)
			warnings++
		}
	}

	if err := e.ctl.DeleteNamespace(HiddenNamespace); err != nil {
		e.logger.WithError(err).Warn("delete hidden mesh namespace failed")
		warnings++
	}

	if reg, ok := e.reg.(*registry.Registry); ok {
		reg.Clear()
		if err := reg.Close(); err != nil {
			e.logger.WithError(err).Warn("close registry failed")
			warnings++
		}
	}
	if err := registry.Unlink(); err != nil {
		e.logger.WithError(err).Warn("unlink registry shared memory failed")
		warnings++
	}

	if warnings > 0 {
		return errors.Errorf(errors.KindInternal, "topology: cleanup completed with %d warning(s)", warnings)
	}
	return nil
}
