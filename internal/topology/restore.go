// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package topology

import (
	"os"
	"os/exec"

	"grimm.is/netsim/internal/errors"
)

// restoreIPSets pipes a router's captured "ipset save" blob into
// "ipset restore" inside the router's namespace, via a /dev/shm-backed
// temp file (spec §4.5 "packet filter and IP set restore"). An empty
// blob is a no-op, not an error.
func (e *Engine) restoreIPSets(ns string, blob []byte) error {
	if len(blob) == 0 {
		return nil
	}
	return pipeRestore(ns, blob, "ipset", "restore")
}

// restoreIPTables pipes a router's captured "iptables-save" blob into
// "iptables-restore" inside the router's namespace (spec §4.5).
func (e *Engine) restoreIPTables(ns string, blob []byte) error {
	if len(blob) == 0 {
		return nil
	}
	return pipeRestore(ns, blob, "iptables-restore")
}

// pipeRestore writes blob to a temp file under /dev/shm and execs
// "ip netns exec <ns> <cmdAndArgs...>" with that file as stdin, then
// removes it unconditionally.
func pipeRestore(ns string, blob []byte, cmdAndArgs ...string) error {
	f, err := os.CreateTemp("/dev/shm", "tsim_restore_*")
	if err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "topology: create restore temp file")
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(blob); err != nil {
		f.Close()
		return errors.Wrap(err, errors.KindInternal, "topology: write restore temp file")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, errors.KindInternal, "topology: close restore temp file")
	}

	in, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "topology: reopen restore temp file")
	}
	defer in.Close()

	args := append([]string{"netns", "exec", ns}, cmdAndArgs...)
	cmd := exec.Command("ip", args...)
	cmd.Stdin = in

	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "topology: %v: %s", cmdAndArgs, string(out))
	}
	return nil
}
