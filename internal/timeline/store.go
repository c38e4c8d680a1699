// Package timeline holds the generation timeline: an append/merge-only log of
// display messages and the replace-only task plan, fed by the session-update
// reducer.
package timeline

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/lareview/lareview/internal/event"
	"github.com/lareview/lareview/pkg/types"
)

// Store is the message log and plan store for the active generation run.
// It has a single writer (the orchestrator's apply path); readers go through
// the accessor methods.
type Store struct {
	mu  sync.RWMutex
	bus *event.Bus

	log  []types.DisplayMessage
	plan *types.Plan

	// lastKind is the kind of the most recently appended row. Delta events
	// coalesce into the previous row only when their kind matches it.
	lastKind types.MessageKind

	// toolIndex maps tool call ids to log positions so completion events can
	// patch the originating row without a full scan. The backward scan in
	// patchToolCall remains the authoritative lookup.
	toolIndex map[string]int

	// currentTask is the title of the most recently started task, kept for
	// display only.
	currentTask string
}

// NewStore creates an empty store publishing mutations to bus.
// A nil bus disables event publication.
func NewStore(bus *event.Bus) *Store {
	return &Store{
		bus:       bus,
		toolIndex: make(map[string]int),
	}
}

// Reset clears the log, plan, and coalescing state for a new run.
func (s *Store) Reset(runID string) {
	s.mu.Lock()
	s.log = nil
	s.plan = nil
	s.lastKind = ""
	s.currentTask = ""
	s.toolIndex = make(map[string]int)
	s.mu.Unlock()

	s.publish(event.Event{
		Type: event.TimelineReset,
		Data: event.TimelineResetData{RunID: runID},
	})
}

// Messages returns a copy of the current log.
func (s *Store) Messages() []types.DisplayMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.DisplayMessage, len(s.log))
	copy(out, s.log)
	return out
}

// Len returns the current log length.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.log)
}

// Plan returns the current plan, or nil when no plan has arrived.
func (s *Store) Plan() *types.Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.plan == nil {
		return nil
	}
	cp := *s.plan
	cp.Entries = make([]types.PlanEntry, len(s.plan.Entries))
	copy(cp.Entries, s.plan.Entries)
	return &cp
}

// CurrentTask returns the title of the most recently started task.
func (s *Store) CurrentTask() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentTask
}

// newRow builds a row with a fresh id and timestamp.
func newRow(kind types.MessageKind, body string) types.DisplayMessage {
	return types.DisplayMessage{
		ID:        ulid.Make().String(),
		Kind:      kind,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
}

// append adds a row to the log and updates the coalesce key.
// Callers must hold the write lock.
func (s *Store) append(row types.DisplayMessage) int {
	s.log = append(s.log, row)
	s.lastKind = row.Kind
	return len(s.log) - 1
}

func (s *Store) publish(ev event.Event) {
	if s.bus == nil {
		return
	}
	// Synchronous publication keeps event order aligned with log order.
	s.bus.PublishSync(ev)
}

func (s *Store) publishAppended(idx int, row types.DisplayMessage) {
	s.publish(event.Event{
		Type: event.MessageAppended,
		Data: event.MessageAppendedData{Message: &row, Index: idx},
	})
}

func (s *Store) publishPatched(idx int, row types.DisplayMessage, delta string) {
	s.publish(event.Event{
		Type: event.MessagePatched,
		Data: event.MessagePatchedData{Message: &row, Index: idx, Delta: delta},
	})
}
