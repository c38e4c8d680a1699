package generate

import (
	"context"
	"errors"
	"strings"

	"github.com/lareview/lareview/pkg/types"
)

// cancelMarker is the substring backends use to report cancellation-by-user.
const cancelMarker = "cancelled by user"

// ErrCancelled is returned by a backend when the user stopped the run.
var ErrCancelled = errors.New(cancelMarker)

// IsCancelled reports whether a backend rejection means the user cancelled
// the run, as opposed to a generation failure.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrCancelled) || strings.Contains(err.Error(), cancelMarker)
}

// EmitFunc receives progress events from the backend, in emission order.
// The backend must invoke it sequentially; events are never delivered
// concurrently.
type EmitFunc func(ev types.ProgressEvent)

// Request is the generation request handed to the backend.
type Request struct {
	RunID    string
	ReviewID string
	DiffText string
	AgentID  string
	Command  string
	Args     []string
	Source   *types.ReviewSource
	RepoID   string

	// SnapshotPath is the checked-out source tree for this run, empty when
	// snapshot access was not granted.
	SnapshotPath string
}

// Invoker issues generation requests to the external review backend.
// The emit callback is registered before the request is issued, so no event
// can be lost.
type Invoker interface {
	Generate(ctx context.Context, req Request, emit EmitFunc) (*types.GenerationResult, error)
	Cancel(ctx context.Context, runID string) error
}

// RepoService resolves linked repositories and persists the remembered
// snapshot preference.
type RepoService interface {
	Get(ctx context.Context, id string) (*types.LinkedRepo, error)
	SetSnapshotAccess(ctx context.Context, id string, allow bool) error
}

// Snapshotter creates and removes point-in-time commit checkouts.
type Snapshotter interface {
	Create(ctx context.Context, runID, commitSHA string) (string, error)
	Remove(snapshotPath string) error
}

// SnapshotterFactory builds a Snapshotter for a repository path.
type SnapshotterFactory func(repoPath string) Snapshotter
