package vcs

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initTestRepo creates a git repository with one committed file and returns
// its path and HEAD commit sha.
func initTestRepo(t *testing.T) (string, string) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	run := func(args ...string) string {
		t.Helper()
		full := append([]string{"-C", dir,
			"-c", "user.name=test", "-c", "user.email=test@example.com"}, args...)
		out, err := exec.Command("git", full...).CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
		return strings.TrimSpace(string(out))
	}

	run("init", "-q")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0644))
	run("add", ".")
	run("commit", "-q", "-m", "initial")
	sha := run("rev-parse", "HEAD")

	return dir, sha
}

func TestCreate_ChecksOutCommit(t *testing.T) {
	repo, sha := initTestRepo(t)
	m := NewManager(repo)

	path, err := m.Create(context.Background(), "run-test-create", sha)
	require.NoError(t, err)
	defer m.Remove(path)

	data, err := os.ReadFile(filepath.Join(path, "main.go"))
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(data))

	// The snapshot is a plain directory, not a working tree.
	_, err = os.Stat(filepath.Join(path, ".git"))
	assert.True(t, os.IsNotExist(err))
}

func TestCreate_ReplacesExistingSnapshot(t *testing.T) {
	repo, sha := initTestRepo(t)
	m := NewManager(repo)

	first, err := m.Create(context.Background(), "run-test-replace", sha)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(first, "stale.txt"), []byte("old"), 0644))

	second, err := m.Create(context.Background(), "run-test-replace", sha)
	require.NoError(t, err)
	defer m.Remove(second)

	assert.Equal(t, first, second)
	_, err = os.Stat(filepath.Join(second, "stale.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestCreate_UnknownCommitWithoutRemotes(t *testing.T) {
	repo, _ := initTestRepo(t)
	m := NewManager(repo)

	_, err := m.Create(context.Background(), "run-test-missing",
		"0000000000000000000000000000000000000000")
	assert.Error(t, err)
}

func TestRemove_MissingIsNoOp(t *testing.T) {
	m := NewManager(t.TempDir())
	assert.NoError(t, m.Remove(filepath.Join(baseDir(), "never-created")))
	assert.NoError(t, m.Remove(""))
}

func TestRemove_RefusesOutsideBaseDir(t *testing.T) {
	m := NewManager(t.TempDir())

	outside := t.TempDir()
	assert.Error(t, m.Remove(outside))
	_, err := os.Stat(outside)
	assert.NoError(t, err, "directory outside the snapshot base must survive")
}
