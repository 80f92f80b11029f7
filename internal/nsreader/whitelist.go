// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package nsreader holds the whitelist the namespace-reader helper
// enforces before entering a namespace and exec'ing a command (spec
// §4.4), grounded on the original netns_reader.c whitelist tables.
package nsreader

import (
	"strconv"
	"strings"

	"grimm.is/netsim/internal/errors"
)

// AllowedCommands maps a whitelisted command name to its hard-coded
// absolute path. The helper only ever execs from these paths, never
// through a shell.
var AllowedCommands = map[string]string{
	"ip":             "/usr/sbin/ip",
	"iptables-save":  "/usr/sbin/iptables-save",
	"ip6tables-save": "/usr/sbin/ip6tables-save",
	"ipset":          "/usr/sbin/ipset",
	"ss":             "/usr/bin/ss",
	"netstat":        "/usr/bin/netstat",
}

var allowedIPArgs = map[string]bool{
	"addr": true, "show": true,
	"route": true, "table": true,
	"rule": true,
	"link": true,
	"-j":   true, "-json": true, "-details": true,
}

var allowedIPSetArgs = map[string]bool{
	"list": true, "-n": true, "-name": true,
}

// CommandPath returns the hard-coded absolute path for a whitelisted
// command, or false if cmd is not allowed.
func CommandPath(cmd string) (string, bool) {
	path, ok := AllowedCommands[cmd]
	return path, ok
}

// ValidateArgs checks args against the whitelist for cmd, per spec
// §4.4's "Allowed ip subargs" / "Allowed ipset subargs" rules.
func ValidateArgs(cmd string, args []string) error {
	switch cmd {
	case "ip":
		for i, a := range args {
			if allowedIPArgs[a] {
				continue
			}
			if i > 0 && args[i-1] == "table" && isNumeric(a) {
				continue
			}
			return errors.Errorf(errors.KindValidation, "nsreader: argument %q not allowed for ip", a)
		}
	case "ipset":
		for _, a := range args {
			if !allowedIPSetArgs[a] {
				return errors.Errorf(errors.KindValidation, "nsreader: argument %q not allowed for ipset", a)
			}
		}
	case "iptables-save", "ip6tables-save":
		if len(args) > 0 {
			return errors.Errorf(errors.KindValidation, "nsreader: no arguments allowed for %s", cmd)
		}
	}
	return nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.Atoi(s)
	return err == nil
}

// ValidateNamespace rejects path traversal and names containing a
// path separator, matching the original's substring checks on "/" and
// "..".
func ValidateNamespace(name string) error {
	if name == "" || strings.Contains(name, "/") || strings.Contains(name, "..") {
		return errors.Errorf(errors.KindValidation, "nsreader: invalid namespace name %q", name)
	}
	return nil
}

// Validate checks a full invocation (namespace, command, args) against
// the whitelist, without touching the filesystem or kernel (namespace
// existence is checked separately by the caller once it resolves
// /var/run/netns/<name>).
func Validate(ns, cmd string, args []string) error {
	if err := ValidateNamespace(ns); err != nil {
		return err
	}
	if _, ok := CommandPath(cmd); !ok {
		return errors.Errorf(errors.KindValidation, "nsreader: command %q not allowed", cmd)
	}
	return ValidateArgs(cmd, args)
}
