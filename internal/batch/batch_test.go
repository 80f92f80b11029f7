// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package batch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatch_AddAndScript(t *testing.T) {
	b := New()
	defer b.Close()

	require.NoError(t, b.Add("", "ip link set lo up"))
	require.NoError(t, b.Add("r000", "ip addr add 10.1.1.2/24 dev eth0"))

	assert.Equal(t, 2, b.Len())

	script := b.Script()
	assert.True(t, strings.HasPrefix(script, "#!/bin/sh\nset -e\n"), "script missing shebang/set -e header: %q", script)
	assert.Contains(t, script, "ip link set lo up")
	assert.Contains(t, script, "ip netns exec r000 ip addr add 10.1.1.2/24 dev eth0")
}

func TestBatch_CapacityExceeded(t *testing.T) {
	b := NewWithCapacity(32)
	defer b.Close()

	require.NoError(t, b.Add("", "short"))
	assert.Error(t, b.Add("", strings.Repeat("x", 100)))
}

func TestBatch_RunAndClose(t *testing.T) {
	b := New()

	require.NoError(t, b.Add("", "true"))
	require.NoError(t, b.Run(false))
	assert.NoError(t, b.Close())
}

func TestBatch_RunFailurePropagates(t *testing.T) {
	b := New()
	defer b.Close()

	require.NoError(t, b.Add("", "exit 1"))
	assert.Error(t, b.Run(false))
}
