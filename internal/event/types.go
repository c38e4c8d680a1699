package event

import "github.com/lareview/lareview/pkg/types"

// MessageAppendedData is the data for message.appended events.
type MessageAppendedData struct {
	Message *types.DisplayMessage `json:"message"`
	Index   int                   `json:"index"`
}

// MessagePatchedData is the data for message.patched events. It covers both
// delta coalescing into an existing row and tool-call completion patches.
type MessagePatchedData struct {
	Message *types.DisplayMessage `json:"message"`
	Index   int                   `json:"index"`
	Delta   string                `json:"delta,omitempty"`
}

// PlanReplacedData is the data for plan.replaced events.
type PlanReplacedData struct {
	Plan *types.Plan `json:"plan"`
}

// TimelineResetData is the data for timeline.reset events.
type TimelineResetData struct {
	RunID string `json:"runID,omitempty"`
}

// GenerationStartedData is the data for generation.started events.
type GenerationStartedData struct {
	RunID   string `json:"runID"`
	AgentID string `json:"agentID"`
	Title   string `json:"title"`
}

// GenerationFinishedData is the data for generation.finished events.
type GenerationFinishedData struct {
	RunID     string `json:"runID"`
	Status    string `json:"status"` // "completed" | "failed" | "cancelled"
	TaskCount int    `json:"taskCount,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SnapshotRequestedData is the data for snapshot.requested events. The UI
// renders a confirmation dialog from this context.
type SnapshotRequestedData struct {
	RequestID string `json:"requestID"`
	RepoName  string `json:"repoName"`
	Commit    string `json:"commit"`
}

// SnapshotResolvedData is the data for snapshot.resolved events.
type SnapshotResolvedData struct {
	RequestID string `json:"requestID"`
	Granted   bool   `json:"granted"`
	Remember  bool   `json:"remember"`
}

// RepoUpdatedData is the data for repo.updated events.
type RepoUpdatedData struct {
	Repo *types.LinkedRepo `json:"repo,omitempty"`
	ID   string            `json:"id"`
}

// NotificationData is the data for transient user-facing notifications.
type NotificationData struct {
	Level   string `json:"level"` // "info" | "error"
	Message string `json:"message"`
}
