// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package facts

import (
	"strconv"
	"strings"
)

// parseRulesSection parses the body of a "policy_rules" section (the
// output of "ip rule show") into a slice of Rule, per spec §4.1.
func parseRulesSection(body string) []Rule {
	var out []Rule
	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		priority, err := strconv.Atoi(strings.TrimSpace(line[:colon]))
		if err != nil {
			continue
		}
		rule := Rule{Priority: priority}
		fields := strings.Fields(line[colon+1:])
		for i := 0; i < len(fields); i++ {
			switch fields[i] {
			case "from":
				if i+1 < len(fields) {
					if fields[i+1] != "all" {
						rule.From = fields[i+1]
					}
					i++
				}
			case "to":
				if i+1 < len(fields) {
					rule.To = fields[i+1]
					i++
				}
			case "lookup":
				if i+1 < len(fields) {
					rule.Table = fields[i+1]
					i++
				}
			case "iif":
				if i+1 < len(fields) {
					rule.IIF = fields[i+1]
					i++
				}
			case "oif":
				if i+1 < len(fields) {
					rule.OIF = fields[i+1]
					i++
				}
			case "fwmark":
				if i+1 < len(fields) {
					rule.FWMark = parseHex(fields[i+1])
					i++
				}
			case "tos":
				if i+1 < len(fields) {
					rule.TOS = parseHex(fields[i+1])
					i++
				}
			case "dport":
				if i+1 < len(fields) {
					if n, err := strconv.Atoi(fields[i+1]); err == nil {
						rule.DPort = n
					}
					i++
				}
			case "sport":
				if i+1 < len(fields) {
					if n, err := strconv.Atoi(fields[i+1]); err == nil {
						rule.SPort = n
					}
					i++
				}
			}
		}
		out = append(out, rule)
	}
	return out
}

func parseHex(s string) int64 {
	s = strings.TrimPrefix(s, "0x")
	n, _ := strconv.ParseInt(s, 16, 64)
	return n
}

// parseRoutingSection parses the body of a "routing_table" or
// "routing_table_<name>" section into verbatim RawRoute entries, one
// per non-empty, non-"EXIT_CODE:" line (spec §4.1, structure-preserving).
func parseRoutingSection(sectionName, body string) []RawRoute {
	table := ""
	if sectionName != "routing_table" {
		table = strings.TrimPrefix(sectionName, "routing_table_")
	}
	var out []RawRoute
	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "EXIT_CODE:") {
			continue
		}
		out = append(out, RawRoute{Table: table, Command: line})
	}
	return out
}
