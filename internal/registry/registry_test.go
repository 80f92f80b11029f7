// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package registry

import (
	"fmt"
	"testing"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := Open(true)
	if err != nil {
		t.Skipf("shared memory unavailable in this environment: %v", err)
	}
	t.Cleanup(func() {
		r.Close()
		Unlink()
	})
	return r
}

func TestGetOrCreateRouterCode_Unique(t *testing.T) {
	r := openTestRegistry(t)

	c1, err := r.GetOrCreateRouterCode("r1")
	if err != nil {
		t.Fatalf("GetOrCreateRouterCode: %v", err)
	}
	c2, err := r.GetOrCreateRouterCode("r2")
	if err != nil {
		t.Fatalf("GetOrCreateRouterCode: %v", err)
	}
	if c1 == c2 {
		t.Fatalf("expected distinct codes, got %q and %q", c1, c2)
	}
	if c1 != "r000" || c2 != "r001" {
		t.Errorf("unexpected code sequence: %q, %q", c1, c2)
	}

	// Repeat lookup for r1 must return the same code, not allocate a new one.
	again, err := r.GetOrCreateRouterCode("r1")
	if err != nil {
		t.Fatalf("GetOrCreateRouterCode repeat: %v", err)
	}
	if again != c1 {
		t.Errorf("expected stable code %q, got %q", c1, again)
	}
}

func TestGetOrCreateInterfaceCode_OwnedString(t *testing.T) {
	r := openTestRegistry(t)

	routerCode, err := r.GetOrCreateRouterCode("core1")
	if err != nil {
		t.Fatalf("GetOrCreateRouterCode: %v", err)
	}

	eth0, err := r.GetOrCreateInterfaceCode(routerCode, "eth0")
	if err != nil {
		t.Fatalf("GetOrCreateInterfaceCode: %v", err)
	}
	eth1, err := r.GetOrCreateInterfaceCode(routerCode, "eth1")
	if err != nil {
		t.Fatalf("GetOrCreateInterfaceCode: %v", err)
	}

	// The two returned strings must remain independently valid: calling
	// the function again must not mutate strings already returned (the
	// original's documented static-buffer bug, spec §9).
	if eth0 == eth1 {
		t.Fatalf("expected distinct interface codes, got %q twice", eth0)
	}
	if eth0 != "i000" || eth1 != "i001" {
		t.Errorf("unexpected interface code sequence: %q, %q", eth0, eth1)
	}
}

func TestGetOrCreateInterfaceCode_MalformedRouterCode(t *testing.T) {
	r := openTestRegistry(t)

	if _, err := r.GetOrCreateInterfaceCode("bogus", "eth0"); err == nil {
		t.Error("expected error for malformed router code")
	}
}

func TestBridgeRegistration(t *testing.T) {
	r := openTestRegistry(t)

	idx, err := r.RegisterBridge("b010001001000024", "10.1.1.0/24")
	if err != nil {
		t.Fatalf("RegisterBridge: %v", err)
	}

	bridge, ok := r.FindBridgeBySubnet("10.1.1.0/24")
	if !ok {
		t.Fatal("expected to find bridge by subnet")
	}
	if bridge.Name != "b010001001000024" || bridge.Created {
		t.Errorf("unexpected bridge state: %+v", bridge)
	}

	if err := r.MarkBridgeCreated(idx); err != nil {
		t.Fatalf("MarkBridgeCreated: %v", err)
	}
	bridge, _ = r.FindBridgeBySubnet("10.1.1.0/24")
	if !bridge.Created {
		t.Error("expected bridge to be marked created")
	}

	// Registering the same name again must return the same slot, not a
	// new one.
	idx2, err := r.RegisterBridge("b010001001000024", "10.1.1.0/24")
	if err != nil {
		t.Fatalf("RegisterBridge (repeat): %v", err)
	}
	if idx2 != idx {
		t.Errorf("expected same slot %d, got %d", idx, idx2)
	}
}

func TestFindBridgeBySubnet_Miss(t *testing.T) {
	r := openTestRegistry(t)
	if _, ok := r.FindBridgeBySubnet("192.0.2.0/24"); ok {
		t.Error("expected no match for unregistered subnet")
	}
}

func TestClear(t *testing.T) {
	r := openTestRegistry(t)

	if _, err := r.GetOrCreateRouterCode("temp"); err != nil {
		t.Fatalf("GetOrCreateRouterCode: %v", err)
	}
	r.Clear()

	code, err := r.GetOrCreateRouterCode("temp")
	if err != nil {
		t.Fatalf("GetOrCreateRouterCode after clear: %v", err)
	}
	if code != "r000" {
		t.Errorf("expected counters reset after Clear, got code %q", code)
	}
}

// TestInterfaceCode_PerRouterCounters covers spec §8 invariant 4:
// distinct interface codes per (router, interface) pair, with
// independent counters per router.
func TestInterfaceCode_PerRouterCounters(t *testing.T) {
	r := openTestRegistry(t)

	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("router%d", i)
		code, err := r.GetOrCreateRouterCode(name)
		if err != nil {
			t.Fatalf("GetOrCreateRouterCode: %v", err)
		}
		ifaceCode, err := r.GetOrCreateInterfaceCode(code, "eth0")
		if err != nil {
			t.Fatalf("GetOrCreateInterfaceCode: %v", err)
		}
		if ifaceCode != "i000" {
			t.Errorf("expected first interface code i000 for each router, got %q for %s", ifaceCode, name)
		}
	}
}
