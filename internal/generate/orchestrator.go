// Package generate owns the lifecycle of one review generation run:
// single-flight start, snapshot-access pre-flight through the confirmation
// gate, backend invocation, cooperative stop, and exactly-once termination.
package generate

import (
	"context"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/lareview/lareview/internal/agent"
	"github.com/lareview/lareview/internal/event"
	"github.com/lareview/lareview/internal/gate"
	"github.com/lareview/lareview/internal/logging"
	"github.com/lareview/lareview/internal/timeline"
	"github.com/lareview/lareview/pkg/types"
)

// StartRequest describes one generation run.
type StartRequest struct {
	DiffText string              `json:"diffText"`
	AgentID  string              `json:"agentID"`
	RepoID   string              `json:"repoID,omitempty"`
	Source   *types.ReviewSource `json:"source,omitempty"`
}

// RunState is the exposed state of the active run.
type RunState struct {
	RunID         string `json:"runID,omitempty"`
	IsGenerating  bool   `json:"isGenerating"`
	StopRequested bool   `json:"stopRequested,omitempty"`
}

// runState tracks one in-flight run. The channel's terminal event and the
// backend call's return are independent completion signals; finished
// guarantees single-flight state clears exactly once between them.
type runState struct {
	id            string
	stopRequested bool
	finished      bool
}

// Orchestrator coordinates generation runs. One orchestrator exists per
// process; the timeline store has no other writer.
type Orchestrator struct {
	mu     sync.Mutex
	active *runState

	store     *timeline.Store
	gate      *gate.Gate
	repos     RepoService
	agents    *agent.Registry
	invoker   Invoker
	snapshots SnapshotterFactory
	bus       *event.Bus
}

// New creates an orchestrator. repos and snapshots may be nil when no
// repository linking is configured; runs then never get snapshot access.
func New(store *timeline.Store, g *gate.Gate, repos RepoService, agents *agent.Registry, invoker Invoker, snapshots SnapshotterFactory, bus *event.Bus) *Orchestrator {
	return &Orchestrator{
		store:     store,
		gate:      g,
		repos:     repos,
		agents:    agents,
		invoker:   invoker,
		snapshots: snapshots,
		bus:       bus,
	}
}

// Gate returns the orchestrator's confirmation gate.
func (o *Orchestrator) Gate() *gate.Gate {
	return o.gate
}

// Store returns the timeline store runs write into.
func (o *Orchestrator) Store() *timeline.Store {
	return o.store
}

// State returns the current run state.
func (o *Orchestrator) State() RunState {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.active == nil {
		return RunState{}
	}
	return RunState{
		RunID:         o.active.id,
		IsGenerating:  true,
		StopRequested: o.active.stopRequested,
	}
}

// IsGenerating reports whether a run is in flight.
func (o *Orchestrator) IsGenerating() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active != nil
}

// Start runs one generation to completion and reports whether it succeeded.
// When a run is already in flight it returns false immediately, with no side
// effects: no log reset, no second subscription.
func (o *Orchestrator) Start(ctx context.Context, req StartRequest) bool {
	o.mu.Lock()
	if o.active != nil {
		o.mu.Unlock()
		return false
	}
	run := &runState{id: ulid.Make().String()}
	o.active = run
	o.mu.Unlock()

	o.store.Reset(run.id)

	cand, err := o.agents.Resolve(req.AgentID)
	if err != nil {
		o.terminate(run, types.ErrorEvent{Message: err.Error()}, "failed", 0, err.Error())
		return false
	}

	title := req.Source.Title()
	if o.bus != nil {
		o.bus.Publish(event.Event{
			Type: event.GenerationStarted,
			Data: event.GenerationStartedData{RunID: run.id, AgentID: cand.ID, Title: title},
		})
	}
	o.store.Log(fmt.Sprintf("Starting review generation with %s...", cand.Label))

	// The pre-flight happens strictly before the backend subscription is
	// opened: suspending on the gate here cannot lose events.
	snapshotPath, snap := o.preflight(ctx, run, req)
	defer func() {
		if snap != nil && snapshotPath != "" {
			if err := snap.Remove(snapshotPath); err != nil {
				logging.Warn().Err(err).Msg("snapshot cleanup failed")
			}
		}
	}()

	genReq := Request{
		RunID:        run.id,
		ReviewID:     ulid.Make().String(),
		DiffText:     req.DiffText,
		AgentID:      cand.ID,
		Command:      cand.Command,
		Args:         cand.Args,
		Source:       req.Source,
		RepoID:       req.RepoID,
		SnapshotPath: snapshotPath,
	}

	result, err := o.invoker.Generate(ctx, genReq, func(ev types.ProgressEvent) {
		if o.store.Apply(ev) {
			status := "completed"
			var errMsg string
			if e, ok := ev.(types.ErrorEvent); ok {
				status = "failed"
				errMsg = e.Message
			}
			o.finishOnce(run, status, taskCountOf(ev), errMsg)
		}
	})

	if err != nil {
		if IsCancelled(err) {
			o.terminate(run, types.LogLine{Text: "Review generation cancelled"}, "cancelled", 0, "")
		} else {
			o.terminate(run, types.ErrorEvent{Message: fmt.Sprintf("Generation failed: %s", err)}, "failed", 0, err.Error())
		}
		return false
	}

	taskCount := 0
	if result != nil {
		taskCount = result.TaskCount
	}
	o.finishOnce(run, "completed", taskCount, "")
	return true
}

// Stop requests cancellation of the active run. It is advisory: single-flight
// state clears only when the backend acknowledges through the normal
// completion path. Stopping an idle orchestrator is a no-op with no log row.
func (o *Orchestrator) Stop(ctx context.Context) {
	o.mu.Lock()
	run := o.active
	if run != nil {
		run.stopRequested = true
	}
	o.mu.Unlock()

	if run == nil {
		return
	}

	if err := o.invoker.Cancel(ctx, run.id); err != nil {
		logging.Warn().Err(err).Str("runID", run.id).Msg("cancel request failed")
	}
	o.store.Log("Stop signal sent")
}

// preflight decides snapshot access for the run and creates the snapshot
// when granted. It returns the snapshot path (empty when not granted or
// creation failed) and the snapshotter that owns it.
func (o *Orchestrator) preflight(ctx context.Context, run *runState, req StartRequest) (string, Snapshotter) {
	if o.repos == nil || o.snapshots == nil || req.RepoID == "" ||
		!req.Source.IsPullRequest() || req.Source.HeadSHA == "" {
		return "", nil
	}

	repo, err := o.repos.Get(ctx, req.RepoID)
	if err != nil {
		o.store.Log(fmt.Sprintf("Linked repository unavailable: %s", err))
		return "", nil
	}

	granted := repo.AllowSnapshotAccess
	if granted {
		o.store.Log(fmt.Sprintf("Snapshot access previously granted for %s", repo.Name))
	} else {
		decision, err := o.gate.Request(ctx, repo.Name, shortSHA(req.Source.HeadSHA))
		if err != nil {
			o.store.Log(fmt.Sprintf("Snapshot confirmation unavailable: %s", err))
			return "", nil
		}
		granted = decision.Granted
		if decision.Remember {
			// Best effort: a persistence failure never blocks the decision
			// already made for this run.
			go func() {
				if err := o.repos.SetSnapshotAccess(context.Background(), repo.ID, decision.Granted); err != nil {
					logging.Warn().Err(err).Str("repoID", repo.ID).Msg("failed to save snapshot preference")
					o.notify("error", "Failed to save snapshot preference")
				}
			}()
		}
		if !granted {
			o.store.Log("Snapshot access declined; continuing without source access")
		}
	}

	if !granted {
		return "", nil
	}

	snap := o.snapshots(repo.Path)
	o.store.Log(fmt.Sprintf("Creating snapshot for %s at %s...", repo.Name, shortSHA(req.Source.HeadSHA)))

	path, err := snap.Create(ctx, run.id, req.Source.HeadSHA)
	if err != nil {
		o.store.Log(fmt.Sprintf("Snapshot failed: %s; continuing without source access", err))
		return "", nil
	}

	o.store.Log(fmt.Sprintf("Snapshot ready at %s", path))
	return path, snap
}

// terminate appends a terminal row for runs the channel did not already
// close, then clears single-flight state.
func (o *Orchestrator) terminate(run *runState, row types.ProgressEvent, status string, taskCount int, errMsg string) {
	o.mu.Lock()
	alreadyFinished := run.finished
	o.mu.Unlock()

	if !alreadyFinished {
		o.store.Apply(row)
	}
	o.finishOnce(run, status, taskCount, errMsg)
}

// finishOnce clears single-flight state exactly once per run, no matter how
// many completion signals arrive, and publishes the finished event on the
// first call only.
func (o *Orchestrator) finishOnce(run *runState, status string, taskCount int, errMsg string) {
	o.mu.Lock()
	if run.finished {
		o.mu.Unlock()
		return
	}
	run.finished = true
	if o.active == run {
		o.active = nil
	}
	o.mu.Unlock()

	logging.Info().Str("runID", run.id).Str("status", status).Msg("generation finished")

	if o.bus != nil {
		o.bus.Publish(event.Event{
			Type: event.GenerationFinished,
			Data: event.GenerationFinishedData{
				RunID:     run.id,
				Status:    status,
				TaskCount: taskCount,
				Error:     errMsg,
			},
		})
	}

	switch status {
	case "completed":
		o.notify("info", "Review generation completed")
	case "cancelled":
		o.notify("info", "Review generation cancelled")
	default:
		o.notify("error", errMsg)
	}
}

func (o *Orchestrator) notify(level, msg string) {
	if o.bus == nil || msg == "" {
		return
	}
	o.bus.Publish(event.Event{
		Type: event.NotificationCreated,
		Data: event.NotificationData{Level: level, Message: msg},
	})
}

func taskCountOf(ev types.ProgressEvent) int {
	if c, ok := ev.(types.Completed); ok {
		return c.TaskCount
	}
	return 0
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
