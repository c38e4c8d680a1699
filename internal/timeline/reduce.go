package timeline

import (
	"fmt"

	"github.com/lareview/lareview/internal/event"
	"github.com/lareview/lareview/pkg/types"
)

// mutation records one store change so bus events can be published after the
// write lock is released, in mutation order.
type mutation struct {
	typ   event.EventType
	idx   int
	row   types.DisplayMessage
	delta string
	plan  *types.Plan
}

// Apply folds one progress event into the log and plan. It is total over the
// event union: unrecognized events append a diagnostic row instead of being
// dropped. It reports whether the event was terminal for the run.
func (s *Store) Apply(ev types.ProgressEvent) bool {
	s.mu.Lock()
	muts := s.reduce(ev)
	s.mu.Unlock()

	for _, m := range muts {
		switch m.typ {
		case event.MessageAppended:
			s.publishAppended(m.idx, m.row)
		case event.MessagePatched:
			s.publishPatched(m.idx, m.row, m.delta)
		case event.PlanReplaced:
			s.publish(event.Event{
				Type: event.PlanReplaced,
				Data: event.PlanReplacedData{Plan: m.plan},
			})
		}
	}

	return types.IsTerminal(ev)
}

// Log appends a local log row outside the progress stream (orchestrator
// bookkeeping such as snapshot progress and stop acknowledgements).
func (s *Store) Log(text string) {
	s.Apply(types.LogLine{Text: text})
}

// reduce performs the state transition for one event.
// Callers must hold the write lock.
func (s *Store) reduce(ev types.ProgressEvent) []mutation {
	switch e := ev.(type) {
	case types.MessageDelta:
		return s.coalesce(types.KindAgentMessage, e.ID, e.Delta)

	case types.ThoughtDelta:
		return s.coalesce(types.KindAgentThought, e.ID, e.Delta)

	case types.ToolCallStarted:
		row := newRow(types.KindToolCall, e.Title)
		row.CorrelationID = e.ToolCallID
		row.ToolCall = &types.ToolCallRecord{
			ToolCallID: e.ToolCallID,
			Status:     types.ToolRunning,
			Title:      e.Title,
			Kind:       e.Kind,
		}
		idx := s.append(row)
		s.toolIndex[e.ToolCallID] = idx
		return []mutation{{typ: event.MessageAppended, idx: idx, row: row}}

	case types.ToolCallComplete:
		return s.patchToolCall(e)

	case types.PlanUpdate:
		// Wholesale replacement: the previous plan is discarded even when
		// entry contents overlap.
		plan := &types.Plan{Entries: e.Entries}
		s.plan = plan

		row := newRow(types.KindAgentPlan, fmt.Sprintf("Plan updated (%d entries)", len(e.Entries)))
		row.Plan = plan
		idx := s.append(row)

		return []mutation{
			{typ: event.PlanReplaced, plan: plan},
			{typ: event.MessageAppended, idx: idx, row: row},
		}

	case types.LogLine:
		row := newRow(types.KindLog, e.Text)
		idx := s.append(row)
		return []mutation{{typ: event.MessageAppended, idx: idx, row: row}}

	case types.TaskStarted:
		s.currentTask = e.Title
		row := newRow(types.KindTaskStarted, e.Title)
		row.CorrelationID = e.TaskID
		idx := s.append(row)
		return []mutation{{typ: event.MessageAppended, idx: idx, row: row}}

	case types.TaskCompleted:
		// The event carries only the task id; the label stays generic.
		row := newRow(types.KindTaskAdded, "Task completed")
		row.CorrelationID = e.TaskID
		idx := s.append(row)
		return []mutation{{typ: event.MessageAppended, idx: idx, row: row}}

	case types.Completed:
		body := "Review generation completed"
		if e.TaskCount > 0 {
			body = fmt.Sprintf("Review generation completed (%d tasks)", e.TaskCount)
		}
		row := newRow(types.KindCompleted, body)
		idx := s.append(row)
		return []mutation{{typ: event.MessageAppended, idx: idx, row: row}}

	case types.ErrorEvent:
		row := newRow(types.KindError, e.Message)
		idx := s.append(row)
		return []mutation{{typ: event.MessageAppended, idx: idx, row: row}}

	default:
		row := newRow(types.KindDebug, fmt.Sprintf("Unrecognized event: %s", ev.EventType()))
		idx := s.append(row)
		return []mutation{{typ: event.MessageAppended, idx: idx, row: row}}
	}
}

// coalesce merges a text delta into the previous row when its kind matches,
// otherwise starts a new row seeded with the delta. The merge is strictly
// adjacency based: any intervening row of a different kind breaks it.
func (s *Store) coalesce(kind types.MessageKind, id, delta string) []mutation {
	if s.lastKind == kind && len(s.log) > 0 {
		idx := len(s.log) - 1
		s.log[idx].Body += delta
		return []mutation{{typ: event.MessagePatched, idx: idx, row: s.log[idx], delta: delta}}
	}

	row := newRow(kind, delta)
	row.CorrelationID = id
	idx := s.append(row)
	return []mutation{{typ: event.MessageAppended, idx: idx, row: row}}
}

// patchToolCall locates the open tool_call row with a matching id and updates
// it in place, preserving its position. Fast path: the last row. General
// path: backward scan so the most recent match wins. An unknown id is a
// no-op, not an error.
func (s *Store) patchToolCall(e types.ToolCallComplete) []mutation {
	idx := s.findToolCall(e.ToolCallID)
	if idx < 0 {
		return nil
	}

	rec := s.log[idx].ToolCall
	rec.Status = toolStatus(e.Status)
	if e.Title != "" {
		rec.Title = e.Title
		s.log[idx].Body = e.Title
	}
	if e.RawInput != nil {
		rec.RawInput = e.RawInput
	}
	if e.RawOutput != nil {
		rec.RawOutput = e.RawOutput
	}

	return []mutation{{typ: event.MessagePatched, idx: idx, row: s.log[idx]}}
}

// findToolCall returns the log position of the tool_call row with the given
// id, or -1. Fast path: the last row. The id index is consulted next, but the
// backward scan stays authoritative so the most recent match always wins.
func (s *Store) findToolCall(id string) int {
	matches := func(i int) bool {
		return s.log[i].Kind == types.KindToolCall &&
			s.log[i].ToolCall != nil && s.log[i].ToolCall.ToolCallID == id
	}

	if n := len(s.log); n > 0 && matches(n-1) {
		return n - 1
	}
	if i, ok := s.toolIndex[id]; ok && i < len(s.log) && matches(i) {
		return i
	}
	for i := len(s.log) - 1; i >= 0; i-- {
		if matches(i) {
			return i
		}
	}
	return -1
}

func toolStatus(status string) types.ToolCallStatus {
	switch status {
	case "failed", "error":
		return types.ToolFailed
	case "completed", "success":
		return types.ToolCompleted
	default:
		return types.ToolCallStatus(status)
	}
}
