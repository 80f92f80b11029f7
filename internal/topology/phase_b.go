// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package topology

import (
	"fmt"

	"grimm.is/netsim/internal/batch"
	"grimm.is/netsim/internal/errors"
	"grimm.is/netsim/internal/facts"
	"grimm.is/netsim/internal/netctl"
)

// SetupRouter is Phase B for a single router: namespace creation,
// veth wiring to the hidden mesh, address/route/rule application, and
// packet-filter/IP-set restore (spec §4.5 "Phase B — per-router setup").
func (e *Engine) SetupRouter(name string, verbose bool, summary *Summary) error {
	router, ok := e.model.Routers[name]
	if !ok {
		return errors.Errorf(errors.KindNotFound, "topology: router %s not in model", name)
	}

	routerCode, err := e.reg.GetOrCreateRouterCode(name)
	if err != nil {
		return errors.Wrapf(err, errors.KindExhausted, "allocate router code for %s", name)
	}

	if err := e.ctl.EnsureNamespace(name); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "create namespace for %s", name)
	}
	summary.Namespaces++
	if err := e.ctl.EnableForwarding(name, true, true); err != nil {
		e.logger.WithError(err).Warn("enable forwarding failed", "router", name)
	}
	if err := e.ctl.SetLoopbackUp(name); err != nil {
		e.logger.WithError(err).Warn("bring up loopback failed", "router", name)
	}

	b := batch.New()
	defer b.Close()

	// Flush and destroy pre-existing IP sets so re-runs start clean.
	b.Add(name, "ipset flush 2>/dev/null || true")
	b.Add(name, "ipset destroy 2>/dev/null || true")

	for _, iface := range router.Interfaces {
		if iface.Loopback() {
			continue
		}
		if err := e.checkInterrupted(); err != nil {
			return err
		}
		if err := e.wireInterface(routerCode, name, iface, b); err != nil {
			e.logger.WithError(err).Warn("interface wiring failed", "router", name, "interface", iface.Name)
			continue
		}
		summary.Interfaces++
	}

	for _, rr := range router.RawRoutes {
		b.Add(name, rr.FullCommand()+" 2>/dev/null || true")
		summary.Routes++
	}
	for _, rule := range router.Rules {
		b.Add(name, ruleCommand(rule)+" 2>/dev/null || true")
		summary.Rules++
	}

	if err := b.Run(verbose); err != nil {
		// Kernel command failures in the batch are expected to happen
		// benignly (tables populated lazily by other rules); warn, don't
		// fail the router (spec §7).
		e.logger.WithError(err).Warn("batch reported non-zero exit", "router", name)
	}

	if err := e.restoreIPSets(name, router.IPSetSave); err != nil {
		e.logger.WithError(err).Warn("ipset restore failed", "router", name)
	}
	if err := e.restoreIPTables(name, router.IPTablesSave); err != nil {
		e.logger.WithError(err).Warn("iptables restore failed", "router", name)
	}

	return nil
}

// wireInterface allocates an interface code, creates the veth pair,
// moves each end into place, attaches the hidden end to the subnet's
// bridge, and queues the interface's address/MAC/MTU/up configuration
// into b (spec §4.5 steps 1-6).
func (e *Engine) wireInterface(routerCode, routerName string, iface facts.Interface, b *batch.Batch) error {
	ifaceCode, err := e.reg.GetOrCreateInterfaceCode(routerCode, iface.Name)
	if err != nil {
		return errors.Wrapf(err, errors.KindExhausted, "allocate interface code for %s/%s", routerName, iface.Name)
	}

	vethRouter, vethHidden, err := netctl.VethNames(routerCode, ifaceCode)
	if err != nil {
		return err
	}

	if err := e.ctl.EnsureVethPair(vethRouter, vethHidden); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "create veth pair %s/%s", vethRouter, vethHidden)
	}

	if err := e.ctl.MoveLink(vethRouter, routerName); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "move %s into %s", vethRouter, routerName)
	}
	// The rename must run inside the router's namespace, so it is queued
	// rather than performed directly (spec §4.5 step 3).
	b.Add(routerName, fmt.Sprintf("ip link set %s name %s", vethRouter, iface.Name))

	if err := e.ctl.MoveLink(vethHidden, HiddenNamespace); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "move %s into %s", vethHidden, HiddenNamespace)
	}

	if addr, ok := iface.FirstIPv4(); ok {
		subnet, err := netctl.Subnet(addr.IP, addr.Prefix)
		if err == nil {
			if bridge, found := e.reg.FindBridgeBySubnet(subnet); found {
				if err := e.ctl.SetMaster(HiddenNamespace, vethHidden, bridge.Name); err != nil {
					e.logger.WithError(err).Warn("attach hidden end to bridge failed", "router", routerName, "interface", iface.Name)
				}
				if err := e.ctl.LinkUp(HiddenNamespace, vethHidden); err != nil {
					e.logger.WithError(err).Warn("bring up hidden end failed", "router", routerName, "interface", iface.Name)
				}
			}
		}
	}

	if iface.MAC != "" {
		b.Add(routerName, fmt.Sprintf("ip link set %s address %s", iface.Name, iface.MAC))
	}
	for _, addr := range iface.Addresses {
		brd := addr.Broadcast
		if brd == "" {
			brd = "+"
		}
		cmd := "ip addr add " + addr.CIDR() + " brd " + brd + " dev " + iface.Name
		if addr.V6 {
			cmd = "ip -6 addr add " + addr.CIDR() + " dev " + iface.Name
		}
		b.Add(routerName, cmd)
	}
	if iface.Up {
		b.Add(routerName, fmt.Sprintf("ip link set %s up", iface.Name))
	}
	if iface.MTU != 0 && iface.MTU != 1500 {
		b.Add(routerName, fmt.Sprintf("ip link set %s mtu %d", iface.Name, iface.MTU))
	}

	return nil
}

// ruleCommand synthesizes the "ip rule add" command for a parsed Rule
// (spec §4.5).
func ruleCommand(r facts.Rule) string {
	cmd := fmt.Sprintf("ip rule add priority %d", r.Priority)
	if r.From != "" {
		cmd += " from " + r.From
	}
	if r.To != "" {
		cmd += " to " + r.To
	}
	if r.IIF != "" {
		cmd += " iif " + r.IIF
	}
	if r.OIF != "" {
		cmd += " oif " + r.OIF
	}
	if r.FWMark != 0 {
		cmd += fmt.Sprintf(" fwmark 0x%x", r.FWMark)
	}
	if r.Table != "" {
		cmd += " lookup " + r.Table
	}
	return cmd
}
