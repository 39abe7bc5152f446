// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fsutil

import (
	"os"
	"os/user"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceTilde(t *testing.T) {
	usr, err := user.Current()
	require.NoError(t, err)

	for path, want := range map[string]string{
		"":                        "",
		"topology.yaml":           "topology.yaml",
		"/tmp/topology.yaml":      "/tmp/topology.yaml",
		"~":                       usr.HomeDir,
		"~/nets/conv.yaml":        filepath.Join(usr.HomeDir, "nets/conv.yaml"),
		"~" + usr.Username:        usr.HomeDir,
		"~" + usr.Username + "/a": filepath.Join(usr.HomeDir, "a"),
	} {
		got, err := ReplaceTilde(path)
		require.NoError(t, err, "path %q", path)
		assert.Equal(t, want, got, "path %q", path)
	}

	_, err = ReplaceTilde("~no-such-user-gpuplan/x")
	assert.Error(t, err)
}

func TestFileExistsAndRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.yaml")
	exists, err := FileExists(path)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, os.WriteFile(path, []byte("name: a\n"), 0o644))
	exists, err = FileExists(path)
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "name: a\n", string(data))
}
