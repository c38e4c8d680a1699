package repolink

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lareview/lareview/internal/storage"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(storage.New(t.TempDir()), nil)
}

func TestLink_AndGet(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	repo, err := s.Link(ctx, "acme/api", t.TempDir(), []string{"git@github.com:acme/api.git"})
	require.NoError(t, err)
	require.NotEmpty(t, repo.ID)
	assert.False(t, repo.AllowSnapshotAccess)

	got, err := s.Get(ctx, repo.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme/api", got.Name)
	assert.Len(t, got.Remotes, 1)
}

func TestLink_InvalidPath(t *testing.T) {
	s := newTestService(t)

	_, err := s.Link(context.Background(), "ghost", "/does/not/exist", nil)
	assert.Error(t, err)
}

func TestList_SortedByName(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Link(ctx, "zeta", t.TempDir(), nil)
	require.NoError(t, err)
	_, err = s.Link(ctx, "alpha", t.TempDir(), nil)
	require.NoError(t, err)

	repos, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, "alpha", repos[0].Name)
	assert.Equal(t, "zeta", repos[1].Name)
}

func TestList_Empty(t *testing.T) {
	s := newTestService(t)

	repos, err := s.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, repos)
	assert.Empty(t, repos)
}

func TestList_SkipsCorruptRecords(t *testing.T) {
	dir := t.TempDir()
	s := NewService(storage.New(dir), nil)
	ctx := context.Background()

	_, err := s.Link(ctx, "good", t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "repo", "broken.json"), []byte("{not json"), 0644))

	repos, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, "good", repos[0].Name)
}

func TestSetSnapshotAccess_Persists(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	repo, err := s.Link(ctx, "acme/api", t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, s.SetSnapshotAccess(ctx, repo.ID, true))

	got, err := s.Get(ctx, repo.ID)
	require.NoError(t, err)
	assert.True(t, got.AllowSnapshotAccess)

	require.NoError(t, s.SetSnapshotAccess(ctx, repo.ID, false))
	got, err = s.Get(ctx, repo.ID)
	require.NoError(t, err)
	assert.False(t, got.AllowSnapshotAccess)
}

func TestSetSnapshotAccess_MissingRepo(t *testing.T) {
	s := newTestService(t)

	err := s.SetSnapshotAccess(context.Background(), "nope", true)
	assert.True(t, errors.Is(err, ErrRepoNotFound))
}

func TestUnlink(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	repo, err := s.Link(ctx, "acme/api", t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, s.Unlink(ctx, repo.ID))

	_, err = s.Get(ctx, repo.ID)
	assert.True(t, errors.Is(err, ErrRepoNotFound))

	assert.Error(t, s.Unlink(ctx, repo.ID))
}
