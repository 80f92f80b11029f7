// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package batch accumulates shell commands into a scoped, shared-memory
// -backed script buffer and executes the whole batch as a single child
// process, amortizing process-creation cost over the dozens of small
// commands required per router (spec §4.3).
package batch

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"grimm.is/netsim/internal/errors"
)

// DefaultCapacity is the default script buffer size ceiling (spec §4.3).
const DefaultCapacity = 1 << 20 // 1 MiB

// Batch is a scoped shell-script buffer, backed by a file under
// /dev/shm so its writes never touch the root filesystem.
type Batch struct {
	capacity int
	buf      strings.Builder
	path     string
	count    int
}

// New creates an empty batch with the default capacity, named uniquely
// after the current process so concurrent workers don't collide (spec
// §6's "/tsim_batch_<pid>_<epoch>" naming, adapted to a monotonic
// per-process counter instead of a wall-clock epoch so tests stay
// deterministic).
func New() *Batch {
	return NewWithCapacity(DefaultCapacity)
}

var batchSeq int

// NewWithCapacity creates an empty batch with a caller-chosen capacity.
func NewWithCapacity(capacity int) *Batch {
	batchSeq++
	b := &Batch{capacity: capacity}
	b.path = filepath.Join("/dev/shm", fmt.Sprintf("tsim_batch_%d_%d", os.Getpid(), batchSeq))
	b.buf.WriteString("#!/bin/sh\nset -e\n")
	return b
}

// Add queues one command, executed inside namespace ns via
// "ip netns exec <ns>" when ns is non-empty.
func (b *Batch) Add(ns, command string) error {
	line := command
	if ns != "" {
		line = fmt.Sprintf("ip netns exec %s %s", ns, command)
	}
	if b.buf.Len()+len(line)+1 > b.capacity {
		return errors.Errorf(errors.KindExhausted, "batch: buffer capacity (%d bytes) exceeded", b.capacity)
	}
	b.buf.WriteString(line)
	b.buf.WriteByte('\n')
	b.count++
	return nil
}

// Len returns the number of queued commands (not counting the header).
func (b *Batch) Len() int {
	return b.count
}

// Script returns the accumulated script text, including its shebang
// header.
func (b *Batch) Script() string {
	return b.buf.String()
}

// Run writes the accumulated script to its backing file and executes it
// as a single child shell process. Standard error is silenced unless
// verbose. The backing file is unlinked unconditionally before Run
// returns, regardless of success.
func (b *Batch) Run(verbose bool) error {
	if err := os.WriteFile(b.path, []byte(b.buf.String()), 0o700); err != nil {
		return errors.Wrap(err, errors.KindInternal, "write batch script")
	}
	defer os.Remove(b.path)

	cmd := exec.Command("/bin/sh", b.path)
	if verbose {
		cmd.Stderr = os.Stderr
		cmd.Stdout = os.Stdout
	}
	if err := cmd.Run(); err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "batch script exited non-zero")
	}
	return nil
}

// Close releases the batch's backing file, independent of whether Run
// was ever called (spec §4.3 "scoped cleanup").
func (b *Batch) Close() error {
	if err := os.Remove(b.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.KindInternal, "close batch")
	}
	return nil
}
