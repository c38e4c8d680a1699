// Package vcs provides git snapshot operations for review runs.
//
// A snapshot is a lightweight checkout of one commit into a temporary
// directory, giving the agent read access to PR code at a pinned commit
// without touching the user's working tree.
package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lareview/lareview/internal/logging"
)

// snapshotDirPrefix is the base directory name for snapshots under the
// system temp directory.
const snapshotDirPrefix = "lareview-snapshots"

// Manager creates and removes commit snapshots for one repository.
type Manager struct {
	repoPath string
}

// NewManager creates a snapshot manager for the given repository path.
func NewManager(repoPath string) *Manager {
	return &Manager{repoPath: repoPath}
}

func baseDir() string {
	return filepath.Join(os.TempDir(), snapshotDirPrefix)
}

// Create checks out the given commit into a fresh snapshot directory keyed by
// run id and returns its path. When the commit is not present locally, the
// repository's remotes are fetched with exponential backoff before giving up.
func (m *Manager) Create(ctx context.Context, runID, commitSHA string) (string, error) {
	if err := m.ensureCommit(ctx, commitSHA); err != nil {
		return "", err
	}

	if err := os.MkdirAll(baseDir(), 0755); err != nil {
		return "", fmt.Errorf("create snapshot base dir: %w", err)
	}

	snapshotPath := filepath.Join(baseDir(), runID)
	if err := os.RemoveAll(snapshotPath); err != nil {
		return "", fmt.Errorf("remove existing snapshot dir: %w", err)
	}
	if err := os.MkdirAll(snapshotPath, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	// A throwaway index keeps the checkout from disturbing the repo's own.
	indexFile, err := os.CreateTemp("", "lareview-index-*")
	if err != nil {
		return "", fmt.Errorf("create temp index file: %w", err)
	}
	indexPath := indexFile.Name()
	indexFile.Close()
	defer os.Remove(indexPath)

	if err := m.git(ctx, indexPath, "read-tree", commitSHA); err != nil {
		os.RemoveAll(snapshotPath)
		return "", err
	}
	if err := m.git(ctx, indexPath, "checkout-index", "-a", "--prefix", snapshotPath+string(os.PathSeparator)); err != nil {
		os.RemoveAll(snapshotPath)
		return "", err
	}

	return snapshotPath, nil
}

// Remove deletes a snapshot directory. Removing a missing snapshot is a
// no-op.
func (m *Manager) Remove(snapshotPath string) error {
	if snapshotPath == "" {
		return nil
	}
	// Refuse to delete anything outside the snapshot base directory.
	rel, err := filepath.Rel(baseDir(), snapshotPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return fmt.Errorf("refusing to remove non-snapshot path: %s", snapshotPath)
	}

	if err := os.RemoveAll(snapshotPath); err != nil {
		return fmt.Errorf("remove snapshot dir: %w", err)
	}
	logging.Info().Str("path", snapshotPath).Msg("cleaned up snapshot")
	return nil
}

// ensureCommit verifies the commit exists locally, fetching with backoff when
// it does not.
func (m *Manager) ensureCommit(ctx context.Context, commitSHA string) error {
	if m.hasCommit(ctx, commitSHA) {
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(500*time.Millisecond),
		backoff.WithMaxElapsedTime(15*time.Second),
	), 2), ctx)

	err := backoff.Retry(func() error {
		if err := m.git(ctx, "", "fetch", "--all", "--quiet"); err != nil {
			return err
		}
		if !m.hasCommit(ctx, commitSHA) {
			return fmt.Errorf("commit %s not found after fetch", commitSHA)
		}
		return nil
	}, policy)
	if err != nil {
		return fmt.Errorf("resolve commit %s: %w", commitSHA, err)
	}
	return nil
}

func (m *Manager) hasCommit(ctx context.Context, commitSHA string) bool {
	cmd := exec.CommandContext(ctx, "git", "-C", m.repoPath, "cat-file", "-e", commitSHA+"^{commit}")
	return cmd.Run() == nil
}

// git runs one git command against the repository, optionally with an
// alternate index file.
func (m *Manager) git(ctx context.Context, indexPath string, args ...string) error {
	full := append([]string{"-C", m.repoPath}, args...)
	cmd := exec.CommandContext(ctx, "git", full...)
	cmd.Env = os.Environ()
	if indexPath != "" {
		cmd.Env = append(cmd.Env, "GIT_INDEX_FILE="+indexPath)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git %s failed: %s: %w", args[0], bytes.TrimSpace(stderr.Bytes()), err)
	}
	return nil
}
