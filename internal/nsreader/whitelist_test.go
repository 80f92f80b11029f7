// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package nsreader

import "testing"

func TestValidateNamespace(t *testing.T) {
	cases := []struct {
		name    string
		wantErr bool
	}{
		{"r000", false},
		{"hidden-mesh", false},
		{"../etc", true},
		{"a/b", true},
		{"", true},
		{"..", true},
	}
	for _, c := range cases {
		err := ValidateNamespace(c.name)
		if (err != nil) != c.wantErr {
			t.Errorf("ValidateNamespace(%q) error = %v, wantErr %v", c.name, err, c.wantErr)
		}
	}
}

func TestCommandPath(t *testing.T) {
	if _, ok := CommandPath("bash"); ok {
		t.Error("bash must not be a whitelisted command")
	}
	path, ok := CommandPath("ip")
	if !ok || path == "" {
		t.Error("ip should be whitelisted with a non-empty path")
	}
}

func TestValidateArgs_IP(t *testing.T) {
	if err := ValidateArgs("ip", []string{"addr", "show"}); err != nil {
		t.Errorf("expected 'ip addr show' to be allowed: %v", err)
	}
	if err := ValidateArgs("ip", []string{"route", "show", "table", "200"}); err != nil {
		t.Errorf("expected numeric table id to be allowed: %v", err)
	}
	if err := ValidateArgs("ip", []string{"netns", "exec", "r0", "bash"}); err == nil {
		t.Error("expected 'ip netns exec ... bash' to be rejected")
	}
	if err := ValidateArgs("ip", []string{"route", "show", "table", "not-a-number"}); err == nil {
		t.Error("expected non-numeric table argument to be rejected")
	}
}

func TestValidateArgs_IPSet(t *testing.T) {
	if err := ValidateArgs("ipset", []string{"list", "-n"}); err != nil {
		t.Errorf("expected ipset list -n to be allowed: %v", err)
	}
	if err := ValidateArgs("ipset", []string{"destroy"}); err == nil {
		t.Error("expected ipset destroy to be rejected")
	}
}

func TestValidateArgs_IPTablesSave(t *testing.T) {
	if err := ValidateArgs("iptables-save", nil); err != nil {
		t.Errorf("expected bare iptables-save to be allowed: %v", err)
	}
	if err := ValidateArgs("iptables-save", []string{"-t", "nat"}); err == nil {
		t.Error("expected iptables-save with arguments to be rejected")
	}
}

func TestValidate_RejectsUnknownCommand(t *testing.T) {
	if err := Validate("r000", "bash", nil); err == nil {
		t.Error("expected bash to be rejected")
	}
}

func TestValidate_RejectsPathTraversal(t *testing.T) {
	if err := Validate("../etc", "ip", []string{"addr", "show"}); err == nil {
		t.Error("expected path traversal namespace to be rejected")
	}
}
