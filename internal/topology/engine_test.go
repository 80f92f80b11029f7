// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package topology

import (
	"fmt"
	"testing"

	"grimm.is/netsim/internal/facts"
	"grimm.is/netsim/internal/netctl"
	"grimm.is/netsim/internal/registry"
)

// memRegistry is an in-memory CodeRegistry stand-in so these tests run
// without /dev/shm or root (spec §8: invariants 1-3, scenarios 1-2).
type memRegistry struct {
	routerCodes    map[string]string
	nextRouterSeq  int
	ifaceCodes     map[string]map[string]string
	nextIfaceSeq   map[string]int
	bridges        []registry.Bridge
	bridgeBySubnet map[string]int
}

func newMemRegistry() *memRegistry {
	return &memRegistry{
		routerCodes:    make(map[string]string),
		ifaceCodes:     make(map[string]map[string]string),
		nextIfaceSeq:   make(map[string]int),
		bridgeBySubnet: make(map[string]int),
	}
}

func (m *memRegistry) GetOrCreateRouterCode(name string) (string, error) {
	if code, ok := m.routerCodes[name]; ok {
		return code, nil
	}
	code := fmt.Sprintf("r%03d", m.nextRouterSeq)
	m.nextRouterSeq++
	m.routerCodes[name] = code
	return code, nil
}

func (m *memRegistry) GetOrCreateInterfaceCode(routerCode, ifaceName string) (string, error) {
	if m.ifaceCodes[routerCode] == nil {
		m.ifaceCodes[routerCode] = make(map[string]string)
	}
	if code, ok := m.ifaceCodes[routerCode][ifaceName]; ok {
		return code, nil
	}
	seq := m.nextIfaceSeq[routerCode]
	code := fmt.Sprintf("i%03d", seq)
	m.nextIfaceSeq[routerCode] = seq + 1
	m.ifaceCodes[routerCode][ifaceName] = code
	return code, nil
}

func (m *memRegistry) RegisterBridge(name, subnet string) (int, error) {
	if idx, ok := m.bridgeBySubnet[subnet]; ok {
		return idx, nil
	}
	idx := len(m.bridges)
	m.bridges = append(m.bridges, registry.Bridge{Name: name, Subnet: subnet})
	m.bridgeBySubnet[subnet] = idx
	return idx, nil
}

func (m *memRegistry) MarkBridgeCreated(idx int) error {
	m.bridges[idx].Created = true
	return nil
}

func (m *memRegistry) FindBridgeBySubnet(subnet string) (registry.Bridge, bool) {
	idx, ok := m.bridgeBySubnet[subnet]
	if !ok {
		return registry.Bridge{}, false
	}
	return m.bridges[idx], true
}

func oneRouterModel() *facts.Model {
	model := facts.NewModel()
	router := &facts.Router{
		Name: "r1",
		Interfaces: []facts.Interface{
			{
				Name: "lo",
				Up:   true,
			},
			{
				Name: "eth0",
				MAC:  "aa:bb:cc:dd:ee:01",
				MTU:  1500,
				Up:   true,
				Addresses: []facts.Address{
					{IP: "10.1.1.2", Prefix: 24, Broadcast: "10.1.1.255", Scope: "global"},
				},
			},
		},
	}
	model.Routers["r1"] = router
	model.Order = []string{"r1"}
	return model
}

// routerWithSecondaryAddressModel gives eth0 both a primary address and
// a secondary address in a distinct subnet, per spec.md §4.1's
// `Address.Secondary` field.
func routerWithSecondaryAddressModel() *facts.Model {
	model := facts.NewModel()
	router := &facts.Router{
		Name: "r1",
		Interfaces: []facts.Interface{
			{Name: "lo", Up: true},
			{
				Name: "eth0",
				Up:   true,
				Addresses: []facts.Address{
					{IP: "10.1.1.2", Prefix: 24},
					{IP: "10.2.2.2", Prefix: 24, Secondary: true},
				},
			},
		},
	}
	model.Routers["r1"] = router
	model.Order = []string{"r1"}
	return model
}

func twoRouterSharedSubnetModel() *facts.Model {
	model := facts.NewModel()
	for i, name := range []string{"r1", "r2"} {
		router := &facts.Router{
			Name: name,
			Interfaces: []facts.Interface{
				{Name: "lo", Up: true},
				{
					Name: "eth0",
					Up:   true,
					Addresses: []facts.Address{
						{IP: fmt.Sprintf("10.1.1.%d", i+2), Prefix: 24},
					},
				},
			},
		}
		model.Routers[name] = router
		model.Order = append(model.Order, name)
	}
	return model
}

// Scenario 1: single router, one interface (spec §8 scenario 1).
func TestEngine_SingleRouterSetup(t *testing.T) {
	model := oneRouterModel()
	ctl := netctl.NewFake()
	reg := newMemRegistry()
	e := NewEngine(nil, ctl, reg, model)

	bridgesCreated, err := e.SetupMesh()
	if err != nil {
		t.Fatalf("SetupMesh: %v", err)
	}
	if bridgesCreated != 1 {
		t.Fatalf("expected 1 bridge created, got %d", bridgesCreated)
	}
	wantBridge, err := netctl.BridgeName("10.1.1.0/24")
	if err != nil {
		t.Fatalf("BridgeName: %v", err)
	}
	if _, ok := ctl.Bridges[HiddenNamespace][wantBridge]; !ok {
		t.Fatalf("expected bridge %s to exist in hidden namespace", wantBridge)
	}

	var summary Summary
	if err := e.SetupRouter("r1", false, &summary); err != nil {
		t.Fatalf("SetupRouter: %v", err)
	}

	if !ctl.Namespaces["r1"] {
		t.Error("expected namespace r1 to exist")
	}
	if summary.Interfaces != 1 {
		t.Errorf("expected 1 interface wired, got %d", summary.Interfaces)
	}

	wantVethRouter, wantVethHidden := "r000i000r", "r000i000h"
	if ns, ok := ctl.NamespaceOf(wantVethRouter); !ok || ns != "r1" {
		t.Errorf("expected %s moved into r1, got ns=%q ok=%v", wantVethRouter, ns, ok)
	}
	if bridge, ok := ctl.BridgeOf(HiddenNamespace, wantVethHidden); !ok || bridge != wantBridge {
		t.Errorf("expected %s enslaved to %s, got %q (ok=%v)", wantVethHidden, wantBridge, bridge, ok)
	}
}

// Invariant 1: a bridge exists for every subnet derived from an IPv4
// address in the input, including a secondary address on an interface
// that already has a primary one (spec §8 invariant 1, spec §4.5).
func TestEngine_SetupMesh_SecondaryAddressGetsOwnBridge(t *testing.T) {
	model := routerWithSecondaryAddressModel()
	ctl := netctl.NewFake()
	reg := newMemRegistry()
	e := NewEngine(nil, ctl, reg, model)

	bridgesCreated, err := e.SetupMesh()
	if err != nil {
		t.Fatalf("SetupMesh: %v", err)
	}
	if bridgesCreated != 2 {
		t.Fatalf("expected 2 bridges (one per subnet), got %d", bridgesCreated)
	}

	for _, subnet := range []string{"10.1.1.0/24", "10.2.2.0/24"} {
		bridgeName, err := netctl.BridgeName(subnet)
		if err != nil {
			t.Fatalf("BridgeName(%s): %v", subnet, err)
		}
		if _, ok := ctl.Bridges[HiddenNamespace][bridgeName]; !ok {
			t.Errorf("expected bridge %s for subnet %s to exist", bridgeName, subnet)
		}
	}
}

// Scenario 2: two routers sharing a subnet (spec §8 scenario 2) — exactly
// one bridge is created and both hidden ends are attached to it.
func TestEngine_TwoRoutersSharedSubnet(t *testing.T) {
	model := twoRouterSharedSubnetModel()
	ctl := netctl.NewFake()
	reg := newMemRegistry()
	e := NewEngine(nil, ctl, reg, model)

	bridgesCreated, err := e.SetupMesh()
	if err != nil {
		t.Fatalf("SetupMesh: %v", err)
	}
	if bridgesCreated != 1 {
		t.Fatalf("expected exactly 1 bridge for the shared subnet, got %d", bridgesCreated)
	}

	var summary Summary
	for _, name := range model.Order {
		if err := e.SetupRouter(name, false, &summary); err != nil {
			t.Fatalf("SetupRouter(%s): %v", name, err)
		}
	}

	bridgeName, _ := netctl.BridgeName("10.1.1.0/24")
	attached := 0
	for link, br := range ctl.Masters {
		if br == bridgeName {
			_ = link
			attached++
		}
	}
	if attached != 2 {
		t.Errorf("expected 2 hidden ends enslaved to %s, got %d", bridgeName, attached)
	}
}

// Idempotence: running Phase A twice yields zero newly-created bridges
// the second time (spec §8 "Idempotence").
func TestEngine_SetupMesh_Idempotent(t *testing.T) {
	model := oneRouterModel()
	ctl := netctl.NewFake()
	reg := newMemRegistry()
	e := NewEngine(nil, ctl, reg, model)

	first, err := e.SetupMesh()
	if err != nil {
		t.Fatalf("first SetupMesh: %v", err)
	}
	if first != 1 {
		t.Fatalf("expected 1 bridge on first run, got %d", first)
	}

	second, err := e.SetupMesh()
	if err != nil {
		t.Fatalf("second SetupMesh: %v", err)
	}
	if second != 0 {
		t.Errorf("expected 0 newly-created bridges on second run, got %d", second)
	}
}

// Invariant 3: concatenated router code + interface code + suffix never
// exceeds 15 characters, for every interface in a realistic model.
func TestEngine_VethNameLengthInvariant(t *testing.T) {
	model := oneRouterModel()
	reg := newMemRegistry()
	routerCode, _ := reg.GetOrCreateRouterCode("r1")
	for _, iface := range model.Routers["r1"].Interfaces {
		if iface.Loopback() {
			continue
		}
		ifaceCode, _ := reg.GetOrCreateInterfaceCode(routerCode, iface.Name)
		routerEnd, hiddenEnd, err := netctl.VethNames(routerCode, ifaceCode)
		if err != nil {
			t.Fatalf("VethNames: %v", err)
		}
		if len(routerEnd) > 15 || len(hiddenEnd) > 15 {
			t.Errorf("veth names exceed 15 chars: %q %q", routerEnd, hiddenEnd)
		}
	}
}

// Cleanup deletes every router namespace and the hidden namespace,
// ignoring absence (spec §8 scenario 5).
func TestEngine_Cleanup(t *testing.T) {
	model := oneRouterModel()
	ctl := netctl.NewFake()
	reg := newMemRegistry()
	e := NewEngine(nil, ctl, reg, model)

	if _, err := e.SetupMesh(); err != nil {
		t.Fatalf("SetupMesh: %v", err)
	}
	var summary Summary
	if err := e.SetupRouter("r1", false, &summary); err != nil {
		t.Fatalf("SetupRouter: %v", err)
	}

	if err := e.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if ctl.Namespaces["r1"] {
		t.Error("expected r1 namespace removed after cleanup")
	}
	if ctl.Namespaces[HiddenNamespace] {
		t.Error("expected hidden namespace removed after cleanup")
	}
}
