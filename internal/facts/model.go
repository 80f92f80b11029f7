// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package facts holds the typed model of a router's captured network state
// and the parser that builds it from a raw facts file.
package facts

import "fmt"

// Address is one IP address assigned to an Interface.
type Address struct {
	IP        string
	Prefix    int
	Broadcast string
	Scope     string
	Secondary bool
	V6        bool
}

// CIDR returns the address in "ip/prefix" form.
func (a Address) CIDR() string {
	return fmt.Sprintf("%s/%d", a.IP, a.Prefix)
}

// Interface is one network interface of a Router, as reported by
// "ip address show".
type Interface struct {
	Name      string
	MAC       string
	MTU       int
	Up        bool
	Addresses []Address
}

// Loopback reports whether this is the loopback interface.
func (i Interface) Loopback() bool {
	return i.Name == "lo"
}

// FirstIPv4 returns the first IPv4 address, if any.
func (i Interface) FirstIPv4() (Address, bool) {
	for _, a := range i.Addresses {
		if !a.V6 {
			return a, true
		}
	}
	return Address{}, false
}

// Route is the parsed structural form of one routing table entry.
// ParseRouter does not populate it; the hidden-mesh engine uses
// RawRoute exclusively (spec §3, §4.1, §9).
type Route struct {
	Destination string
	Gateway     string
	Device      string
	Source      string
	Table       string
	Metric      int
	Protocol    string
	Scope       string
}

// RawRoute is one verbatim line from a routing_table[_<name>] section,
// retained unparsed so it can be replayed exactly via "ip route add".
type RawRoute struct {
	Table   string // "" for the main table
	Command string // the line content following "ip route add [table <t>] "
}

// FullCommand synthesizes the command the topology engine queues for
// this raw route.
func (r RawRoute) FullCommand() string {
	if r.Table == "" {
		return "ip route add " + r.Command
	}
	return fmt.Sprintf("ip route add table %s %s", r.Table, r.Command)
}

// Rule is one policy routing rule from "ip rule show".
type Rule struct {
	Priority int
	From     string
	To       string
	IIF      string
	OIF      string
	Table    string
	FWMark   int64
	TOS      int64
	SPort    int
	DPort    int
	Protocol string
}

// Router is one simulated router: its interfaces, routing/rule state,
// and the two opaque packet-filter blobs, exactly as captured.
type Router struct {
	Name         string
	Interfaces   []Interface
	RawRoutes    []RawRoute
	Routes       []Route
	Rules        []Rule
	IPTablesSave []byte
	IPSetSave    []byte
}

// InterfaceByName returns the interface with the given name, if present.
func (r *Router) InterfaceByName(name string) (Interface, bool) {
	for _, i := range r.Interfaces {
		if i.Name == name {
			return i, true
		}
	}
	return Interface{}, false
}

// Model is the full set of routers loaded from a facts directory, with
// a stable iteration order (directory listing order, which os.ReadDir
// already returns sorted by name).
type Model struct {
	Routers map[string]*Router
	Order   []string
}

// NewModel returns an empty Model.
func NewModel() *Model {
	return &Model{Routers: make(map[string]*Router)}
}

func (m *Model) add(r *Router) {
	if _, exists := m.Routers[r.Name]; !exists {
		m.Order = append(m.Order, r.Name)
	}
	m.Routers[r.Name] = r
}

// LoadWarning records a non-fatal per-router load problem; the router is
// dropped from the Model but the overall load continues.
type LoadWarning struct {
	Router string
	Path   string
	Err    error
}

func (w LoadWarning) Error() string {
	return fmt.Sprintf("%s (%s): %v", w.Router, w.Path, w.Err)
}
