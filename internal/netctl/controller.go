// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package netctl wraps the netlink/netns control-plane operations the
// topology engine needs: namespace lifecycle, veth and bridge creation,
// cross-namespace link moves, and address/route/rule application. It is
// expressed as a Controller interface so the engine can be tested
// against a fake implementation without root or a real kernel.
package netctl

// Controller is every kernel control-plane operation the topology engine
// issues directly (as opposed to operations queued into a batch script
// because they must run via a shell inside a namespace — spec §4.5).
type Controller interface {
	// EnsureNamespace creates the named namespace if absent. An
	// existing namespace is accepted (spec §4.5 idempotent creation).
	EnsureNamespace(name string) error
	// DeleteNamespace removes the named namespace, ignoring absence.
	DeleteNamespace(name string) error

	// SetLoopbackUp brings the loopback interface up inside ns.
	SetLoopbackUp(ns string) error
	// EnableForwarding sets IPv4/IPv6 forwarding inside ns.
	EnableForwarding(ns string, v4, v6 bool) error

	// EnsureBridge creates a bridge link named name inside ns if
	// absent, and brings it up. An existing bridge is accepted.
	EnsureBridge(ns, name string) error

	// EnsureVethPair creates a veth pair (routerEnd, hiddenEnd) in the
	// host (root) namespace. An existing pair with the same names is
	// accepted.
	EnsureVethPair(routerEnd, hiddenEnd string) error
	// MoveLink moves a link, by name, from the host namespace into ns.
	MoveLink(linkName, ns string) error
	// SetMaster enslaves linkName to the bridge named bridgeName,
	// both inside ns.
	SetMaster(ns, linkName, bridgeName string) error
	// LinkUp brings linkName up inside ns.
	LinkUp(ns, linkName string) error
	// DeleteLink removes linkName from ns, ignoring absence.
	DeleteLink(ns, linkName string) error
}

// Subnet computes the canonical "network/prefix" form of ip/prefixLen,
// masking ip by its prefix, e.g. Subnet("10.1.1.2", 24) == "10.1.1.0/24".
func Subnet(ip string, prefixLen int) (string, error) {
	return subnetOf(ip, prefixLen)
}
