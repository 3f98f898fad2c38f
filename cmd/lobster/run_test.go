package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLock(t *testing.T) {
	orig := stateDir
	stateDir = t.TempDir()
	t.Cleanup(func() { stateDir = orig })

	lock, err := acquireLock("deploy")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(stateDir, "deploy.lock"))
	require.NoError(t, err)

	_, err = acquireLock("deploy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already being run")

	// A different workflow locks independently.
	other, err := acquireLock("cleanup")
	require.NoError(t, err)
	require.NoError(t, other.Unlock())

	require.NoError(t, lock.Unlock())
	again, err := acquireLock("deploy")
	require.NoError(t, err)
	require.NoError(t, again.Unlock())
}

func TestAcquireLockCreatesStateDir(t *testing.T) {
	orig := stateDir
	stateDir = filepath.Join(t.TempDir(), "nested", ".lobster")
	t.Cleanup(func() { stateDir = orig })

	lock, err := acquireLock("deploy")
	require.NoError(t, err)
	defer func() { _ = lock.Unlock() }()

	info, err := os.Stat(stateDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
