// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package facts

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reIfaceHeader = regexp.MustCompile(`^\d+:\s+([^:@]+)(?:@\S+)?:\s*<([^>]*)>(.*)$`)
	reMTU         = regexp.MustCompile(`\bmtu\s+(\d+)\b`)
)

// parseInterfacesSection parses the body of an "interfaces" section
// (the output of "ip address show") into a slice of Interface, per the
// rules in spec §4.1.
func parseInterfacesSection(body string) []Interface {
	var out []Interface
	var cur *Interface

	flush := func() {
		if cur != nil {
			out = append(out, *cur)
			cur = nil
		}
	}

	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimRight(raw, "\r")
		if line == "" {
			continue
		}
		if m := reIfaceHeader.FindStringSubmatch(line); m != nil {
			flush()
			iface := Interface{
				Name: strings.TrimSpace(m[1]),
				MTU:  1500,
			}
			flags := strings.Split(m[2], ",")
			for _, f := range flags {
				if strings.TrimSpace(f) == "UP" {
					iface.Up = true
				}
			}
			rest := m[3]
			if mtu := reMTU.FindStringSubmatch(rest); mtu != nil {
				if n, err := strconv.Atoi(mtu[1]); err == nil {
					iface.MTU = n
				}
			}
			if strings.Contains(rest, "state DOWN") {
				iface.Up = false
			}
			cur = &iface
			continue
		}

		if cur == nil {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "link/ether":
			if len(fields) > 1 {
				cur.MAC = fields[1]
			}
		case "link/loopback", "link/none":
			// no MAC to record
		case "inet":
			if len(fields) > 1 && strings.Contains(fields[1], "/") {
				cur.Addresses = append(cur.Addresses, parseInetLine(fields, false))
			}
		case "inet6":
			if len(fields) > 1 && !strings.HasPrefix(fields[1], "fe80:") {
				cur.Addresses = append(cur.Addresses, parseInetLine(fields, true))
			}
		}
	}
	flush()
	return out
}

func parseInetLine(fields []string, v6 bool) Address {
	addr := Address{Scope: "global", V6: v6}
	ipPrefix := strings.SplitN(fields[1], "/", 2)
	addr.IP = ipPrefix[0]
	if len(ipPrefix) == 2 {
		if n, err := strconv.Atoi(ipPrefix[1]); err == nil {
			addr.Prefix = n
		}
	}
	for i := 2; i < len(fields); i++ {
		switch fields[i] {
		case "brd":
			if i+1 < len(fields) {
				addr.Broadcast = fields[i+1]
				i++
			}
		case "scope":
			if i+1 < len(fields) {
				addr.Scope = fields[i+1]
				i++
			}
		case "secondary":
			addr.Secondary = true
		}
	}
	return addr
}
