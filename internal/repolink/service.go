// Package repolink manages locally linked repositories and their remembered
// snapshot-access preference.
package repolink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/lareview/lareview/internal/event"
	"github.com/lareview/lareview/internal/storage"
	"github.com/lareview/lareview/pkg/types"
)

var ErrRepoNotFound = errors.New("repolink: repository not found")

// Service provides linked-repository CRUD over JSON storage.
type Service struct {
	store *storage.Storage
	bus   *event.Bus
}

// NewService creates a repolink service.
// A nil bus disables event publication.
func NewService(store *storage.Storage, bus *event.Bus) *Service {
	return &Service{store: store, bus: bus}
}

func repoPath(id string) []string {
	return []string{"repo", id}
}

// List returns all linked repositories sorted by name.
func (s *Service) List(ctx context.Context) ([]types.LinkedRepo, error) {
	repos := make([]types.LinkedRepo, 0)
	err := s.store.Scan(ctx, []string{"repo"}, func(_ string, data json.RawMessage) error {
		var repo types.LinkedRepo
		if err := json.Unmarshal(data, &repo); err != nil {
			// A record that no longer parses should not take the whole
			// listing down with it.
			return nil
		}
		repos = append(repos, repo)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(repos, func(i, j int) bool { return repos[i].Name < repos[j].Name })
	return repos, nil
}

// Get returns one linked repository by id.
func (s *Service) Get(ctx context.Context, id string) (*types.LinkedRepo, error) {
	var repo types.LinkedRepo
	if err := s.store.Get(ctx, repoPath(id), &repo); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRepoNotFound
		}
		return nil, err
	}
	return &repo, nil
}

// Link registers a local repository. The path must exist on disk.
func (s *Service) Link(ctx context.Context, name, path string, remotes []string) (*types.LinkedRepo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("repolink: invalid path %q: %w", path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("repolink: path %q is not a directory", path)
	}

	repo := &types.LinkedRepo{
		ID:        ulid.Make().String(),
		Name:      name,
		Path:      path,
		Remotes:   remotes,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.store.Put(ctx, repoPath(repo.ID), repo); err != nil {
		return nil, err
	}

	s.publishUpdated(repo)
	return repo, nil
}

// Unlink removes a linked repository.
func (s *Service) Unlink(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, repoPath(id)); err != nil {
		return err
	}

	if s.bus != nil {
		s.bus.Publish(event.Event{
			Type: event.RepoUpdated,
			Data: event.RepoUpdatedData{ID: id},
		})
	}
	return nil
}

// SetSnapshotAccess persists the remembered snapshot-access preference.
func (s *Service) SetSnapshotAccess(ctx context.Context, id string, allow bool) error {
	repo, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	repo.AllowSnapshotAccess = allow
	if err := s.store.Put(ctx, repoPath(id), repo); err != nil {
		return err
	}

	s.publishUpdated(repo)
	return nil
}

func (s *Service) publishUpdated(repo *types.LinkedRepo) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.Event{
		Type: event.RepoUpdated,
		Data: event.RepoUpdatedData{Repo: repo, ID: repo.ID},
	})
}
