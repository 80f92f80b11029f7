// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netctl

import (
	"fmt"
	"net"

	"grimm.is/netsim/internal/errors"
)

func subnetOf(ip string, prefixLen int) (string, error) {
	addr := net.ParseIP(ip)
	if addr == nil {
		return "", errors.Attr(errors.Errorf(errors.KindValidation, "netctl: invalid IP address %q", ip), "ip", ip)
	}
	v4 := addr.To4()
	if v4 == nil {
		return "", errors.Attr(errors.Errorf(errors.KindValidation, "netctl: subnet derivation only supports IPv4, got %q", ip), "ip", ip)
	}
	if prefixLen < 0 || prefixLen > 32 {
		return "", errors.Attr(errors.Errorf(errors.KindValidation, "netctl: invalid IPv4 prefix length %d", prefixLen), "prefix_len", prefixLen)
	}
	mask := net.CIDRMask(prefixLen, 32)
	network := v4.Mask(mask)
	return fmt.Sprintf("%s/%d", network.String(), prefixLen), nil
}

// BridgeName derives the deterministic bridge name for subnet
// "A.B.C.D/P" per spec §6: "b" followed by A, B, C, D each zero-padded
// to three digits, followed by P zero-padded to two digits.
func BridgeName(subnet string) (string, error) {
	ip, ipNet, err := net.ParseCIDR(subnet)
	if err != nil {
		return "", errors.Wrapf(err, errors.KindValidation, "netctl: malformed subnet %q", subnet)
	}
	v4 := ip.To4()
	if v4 == nil {
		return "", errors.Errorf(errors.KindValidation, "netctl: bridge naming only supports IPv4 subnets, got %q", subnet)
	}
	ones, _ := ipNet.Mask.Size()
	name := fmt.Sprintf("b%03d%03d%03d%03d%02d", v4[0], v4[1], v4[2], v4[3], ones)
	if len(name) != 15 {
		// Malformed input (e.g. prefix >= 100) would overflow the fixed
		// field width; surface it instead of silently producing a
		// colliding or over-length name (spec §9 Open Question decision).
		return "", errors.Attr(errors.Errorf(errors.KindValidation, "netctl: derived bridge name %q is not 15 characters", name), "subnet", subnet)
	}
	return name, nil
}

// VethNames returns the deterministic veth pair names for a router code
// and interface code, e.g. ("r000", "i003") -> ("r000i003r", "r000i003h"),
// each at most 15 characters (spec §6).
func VethNames(routerCode, ifaceCode string) (routerEnd, hiddenEnd string, err error) {
	routerEnd = routerCode + ifaceCode + "r"
	hiddenEnd = routerCode + ifaceCode + "h"
	if len(routerEnd) > 15 || len(hiddenEnd) > 15 {
		return "", "", errors.Errorf(errors.KindValidation, "netctl: veth names %q/%q exceed the 15-character kernel limit", routerEnd, hiddenEnd)
	}
	return routerEnd, hiddenEnd, nil
}
