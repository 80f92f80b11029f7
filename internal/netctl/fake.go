// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netctl

import "sync"

// Fake is an in-memory Controller that records every call instead of
// touching the kernel, so the topology engine can be exercised by tests
// without root or a real network namespace (spec §8's testable
// properties, invariants 1-2).
type Fake struct {
	mu sync.Mutex

	Namespaces map[string]bool
	Bridges    map[string]map[string]bool // ns -> bridge name -> up
	Veths      map[string]bool            // routerEnd+"/"+hiddenEnd
	Links      map[string]string          // link name -> namespace it currently lives in ("" = host)
	Masters    map[string]string          // ns+"/"+link -> bridge name
	Up         map[string]bool            // ns+"/"+link -> up

	Calls []string
}

// NewFake returns an empty Fake controller.
func NewFake() *Fake {
	return &Fake{
		Namespaces: make(map[string]bool),
		Bridges:    make(map[string]map[string]bool),
		Veths:      make(map[string]bool),
		Links:      make(map[string]string),
		Masters:    make(map[string]string),
		Up:         make(map[string]bool),
	}
}

func (f *Fake) record(call string) {
	f.Calls = append(f.Calls, call)
}

func (f *Fake) EnsureNamespace(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("EnsureNamespace " + name)
	f.Namespaces[name] = true
	return nil
}

func (f *Fake) DeleteNamespace(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteNamespace " + name)
	delete(f.Namespaces, name)
	return nil
}

func (f *Fake) SetLoopbackUp(ns string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetLoopbackUp " + ns)
	f.Up[ns+"/lo"] = true
	return nil
}

func (f *Fake) EnableForwarding(ns string, v4, v6 bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("EnableForwarding " + ns)
	return nil
}

func (f *Fake) EnsureBridge(ns, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("EnsureBridge " + ns + "/" + name)
	if f.Bridges[ns] == nil {
		f.Bridges[ns] = make(map[string]bool)
	}
	f.Bridges[ns][name] = true
	f.Up[ns+"/"+name] = true
	return nil
}

func (f *Fake) EnsureVethPair(routerEnd, hiddenEnd string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("EnsureVethPair " + routerEnd + "/" + hiddenEnd)
	f.Veths[routerEnd+"/"+hiddenEnd] = true
	f.Links[routerEnd] = ""
	f.Links[hiddenEnd] = ""
	return nil
}

func (f *Fake) MoveLink(linkName, ns string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("MoveLink " + linkName + " -> " + ns)
	f.Links[linkName] = ns
	return nil
}

func (f *Fake) SetMaster(ns, linkName, bridgeName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetMaster " + ns + "/" + linkName + " -> " + bridgeName)
	f.Masters[ns+"/"+linkName] = bridgeName
	return nil
}

func (f *Fake) LinkUp(ns, linkName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("LinkUp " + ns + "/" + linkName)
	f.Up[ns+"/"+linkName] = true
	return nil
}

func (f *Fake) DeleteLink(ns, linkName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteLink " + ns + "/" + linkName)
	delete(f.Links, linkName)
	return nil
}

// BridgeOf returns the bridge linkName is enslaved to inside ns, if any.
func (f *Fake) BridgeOf(ns, linkName string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.Masters[ns+"/"+linkName]
	return b, ok
}

// NamespaceOf returns the namespace linkName currently lives in.
func (f *Fake) NamespaceOf(linkName string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ns, ok := f.Links[linkName]
	return ns, ok
}
