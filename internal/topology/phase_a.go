// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package topology

import (
	"sort"

	"grimm.is/netsim/internal/errors"
	"grimm.is/netsim/internal/netctl"
)

// SetupMesh is Phase A: create the hidden namespace, bring up
// forwarding and loopback inside it, then register and create one
// bridge per unique IPv4 subnet found across every router's interfaces
// (spec §4.5 "Phase A — hidden infrastructure"). It returns the number
// of bridges newly created (as opposed to already existing).
func (e *Engine) SetupMesh() (int, error) {
	if err := e.ctl.EnsureNamespace(HiddenNamespace); err != nil {
		return 0, errors.Wrap(err, errors.KindInternal, "create hidden mesh namespace")
	}
	if err := e.ctl.EnableForwarding(HiddenNamespace, true, true); err != nil {
		e.logger.WithError(err).Warn("enable forwarding in hidden mesh failed")
	}
	if err := e.ctl.SetLoopbackUp(HiddenNamespace); err != nil {
		e.logger.WithError(err).Warn("bring up hidden mesh loopback failed")
	}

	subnets := e.collectSubnets()

	created := 0
	for _, subnet := range subnets {
		if err := e.checkInterrupted(); err != nil {
			return created, err
		}

		bridgeName, err := netctl.BridgeName(subnet)
		if err != nil {
			e.logger.WithError(err).Warn("skip subnet with unmappable bridge name", "subnet", subnet)
			continue
		}

		idx, err := e.reg.RegisterBridge(bridgeName, subnet)
		if err != nil {
			return created, errors.Wrapf(err, errors.KindInternal, "register bridge for subnet %s", subnet)
		}

		bridge, _ := e.reg.FindBridgeBySubnet(subnet)
		if bridge.Created {
			continue // existing bridge accepted, spec §4.5
		}

		if err := e.ctl.EnsureBridge(HiddenNamespace, bridgeName); err != nil {
			return created, errors.Wrapf(err, errors.KindInternal, "create bridge %s", bridgeName)
		}
		if err := e.reg.MarkBridgeCreated(idx); err != nil {
			return created, err
		}
		created++
	}

	return created, nil
}

// collectSubnets walks every non-loopback interface of every router,
// computing and deduplicating the subnet of every IPv4 address found
// (not just each interface's first — a secondary address in a distinct
// subnet still needs its own bridge, spec §4.5 "Walk every interface of
// every router; for each IPv4 address, compute the subnet"). The result
// is sorted for deterministic bridge creation order.
func (e *Engine) collectSubnets() []string {
	seen := make(map[string]bool)
	for _, name := range e.model.Order {
		router := e.model.Routers[name]
		for _, iface := range router.Interfaces {
			if iface.Loopback() {
				continue
			}
			for _, addr := range iface.Addresses {
				if addr.V6 {
					continue
				}
				subnet, err := netctl.Subnet(addr.IP, addr.Prefix)
				if err != nil {
					e.logger.WithError(err).Warn("skip address with unmappable subnet", "router", name, "interface", iface.Name, "address", addr.IP)
					continue
				}
				seen[subnet] = true
			}
		}
	}

	subnets := make([]string, 0, len(seen))
	for s := range seen {
		subnets = append(subnets, s)
	}
	sort.Strings(subnets)
	return subnets
}
