// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command netsim-nsreader is a privileged helper: it enters a named
// network namespace, drops privileges to the invoking user, and execs
// one of a small whitelist of read-only inspection commands (spec §4.4).
package main

import (
	"fmt"
	"os"

	"grimm.is/netsim/internal/nsreader"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 1 && args[0] == "--list" {
		names, err := nsreader.ListNamespaces()
		if err != nil {
			fmt.Fprintf(os.Stderr, "netsim-nsreader: %v\n", err)
			return 1
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return 0
	}

	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: netsim-nsreader <namespace> <command> [args...]")
		fmt.Fprintln(os.Stderr, "       netsim-nsreader --list")
		return 1
	}

	ns, cmd, cmdArgs := args[0], args[1], args[2:]
	if err := nsreader.Run(ns, cmd, cmdArgs); err != nil {
		fmt.Fprintf(os.Stderr, "netsim-nsreader: %v\n", err)
		return 1
	}
	// nsreader.Run only returns on error; a successful run execs and
	// never reaches here.
	return 0
}
