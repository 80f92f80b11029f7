// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package nsreader

import (
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sys/unix"

	"grimm.is/netsim/internal/errors"
)

// NetnsDir is the directory "ip netns" and this helper both use to
// locate named namespaces (spec §4.4).
const NetnsDir = "/var/run/netns"

// ListNamespaces returns the names of every entry under NetnsDir except
// those starting with ".", sorted, implementing the helper's --list form.
func ListNamespaces() ([]string, error) {
	entries, err := os.ReadDir(NetnsDir)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindUnavailable, "nsreader: read %s", NetnsDir)
	}
	var names []string
	for _, e := range entries {
		if e.Name()[0] == '.' {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Enter opens /var/run/netns/<name> and enters it via setns, after
// Validate has already rejected path traversal and unknown names. It
// must be called before any privilege drop, since setns(CLONE_NEWNET)
// requires the helper's elevated capability.
func Enter(ns string) error {
	path := filepath.Join(NetnsDir, ns)
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return errors.Wrapf(err, errors.KindNotFound, "nsreader: open namespace %s", ns)
	}
	defer unix.Close(fd)

	if err := unix.Setns(fd, unix.CLONE_NEWNET); err != nil {
		return errors.Wrapf(err, errors.KindPermission, "nsreader: enter namespace %s", ns)
	}
	return nil
}

// DropPrivileges sets the effective UID/GID back to the invoking user's
// real UID/GID. Must be called after Enter and before Exec — the
// elevated capability is only needed to enter the namespace (spec
// §4.4's invariant: privilege drop precedes exec).
func DropPrivileges() error {
	realGID := unix.Getgid()
	realUID := unix.Getuid()
	if err := unix.Setregid(realGID, realGID); err != nil {
		return errors.Wrap(err, errors.KindPermission, "nsreader: drop group privileges")
	}
	if err := unix.Setreuid(realUID, realUID); err != nil {
		return errors.Wrap(err, errors.KindPermission, "nsreader: drop user privileges")
	}
	return nil
}

// Exec replaces the current process image with the whitelisted binary
// at cmdPath, never through a shell.
func Exec(cmdPath, cmdName string, args []string) error {
	argv := append([]string{cmdName}, args...)
	env := os.Environ()
	if err := unix.Exec(cmdPath, argv, env); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "nsreader: exec %s", cmdPath)
	}
	return nil // unreachable on success: Exec replaces the process image
}

// Run performs the full privileged sequence for one invocation:
// validate, enter the namespace, drop privileges, exec. It returns only
// on error, since a successful Exec never returns to the caller.
func Run(ns, cmd string, args []string) error {
	if err := Validate(ns, cmd, args); err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(NetnsDir, ns)); err != nil {
		return errors.Wrapf(err, errors.KindNotFound, "nsreader: namespace %s does not exist", ns)
	}
	cmdPath, _ := CommandPath(cmd)

	if err := Enter(ns); err != nil {
		return err
	}
	if err := DropPrivileges(); err != nil {
		return err
	}
	return Exec(cmdPath, cmd, args)
}
