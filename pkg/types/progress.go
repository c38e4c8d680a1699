package types

import (
	"encoding/json"
	"fmt"
)

// Progress event type tags as they appear on the wire.
const (
	EventMessageDelta     = "message_delta"
	EventThoughtDelta     = "thought_delta"
	EventToolCallStarted  = "tool_call_started"
	EventToolCallComplete = "tool_call_complete"
	EventPlan             = "plan"
	EventLog              = "log"
	EventTaskStarted      = "task_started"
	EventTaskCompleted    = "task_completed"
	EventCompleted        = "completed"
	EventError            = "error"
)

// ProgressEvent is one event on a generation run's progress channel. The
// concrete types below form a closed union; consumers switch over them and
// must treat UnknownEvent as the fallback for future tags.
type ProgressEvent interface {
	EventType() string
}

// MessageDelta carries new characters of a growing agent message.
type MessageDelta struct {
	ID    string `json:"id"`
	Delta string `json:"delta"`
}

// ThoughtDelta carries new characters of a growing agent thought.
type ThoughtDelta struct {
	ID    string `json:"id"`
	Delta string `json:"delta"`
}

// ToolCallStarted is phase one of a two-phase tool call update.
type ToolCallStarted struct {
	ToolCallID string `json:"toolCallID"`
	Title      string `json:"title"`
	Kind       string `json:"kind,omitempty"`
}

// ToolCallComplete is phase two: it patches the row started earlier.
type ToolCallComplete struct {
	ToolCallID string `json:"toolCallID"`
	Status     string `json:"status"`
	Title      string `json:"title,omitempty"`
	RawInput   any    `json:"rawInput,omitempty"`
	RawOutput  any    `json:"rawOutput,omitempty"`
}

// PlanUpdate replaces the current plan wholesale.
type PlanUpdate struct {
	Entries []PlanEntry `json:"entries"`
}

// LogLine is local log output from the generation worker.
type LogLine struct {
	Text string `json:"text"`
}

// TaskStarted signals the agent began generating a review task.
type TaskStarted struct {
	TaskID string `json:"taskID"`
	Title  string `json:"title"`
}

// TaskCompleted signals a review task was persisted. The event carries only
// the task id, not the originating title.
type TaskCompleted struct {
	TaskID string `json:"taskID"`
}

// Completed is the terminal event of a successful run.
type Completed struct {
	TaskCount int `json:"taskCount"`
}

// ErrorEvent is the terminal event of a failed run.
type ErrorEvent struct {
	Message string `json:"message"`
}

// UnknownEvent preserves events with unrecognized tags so they surface as
// diagnostics instead of disappearing.
type UnknownEvent struct {
	Tag string
	Raw json.RawMessage
}

func (MessageDelta) EventType() string     { return EventMessageDelta }
func (ThoughtDelta) EventType() string     { return EventThoughtDelta }
func (ToolCallStarted) EventType() string  { return EventToolCallStarted }
func (ToolCallComplete) EventType() string { return EventToolCallComplete }
func (PlanUpdate) EventType() string       { return EventPlan }
func (LogLine) EventType() string          { return EventLog }
func (TaskStarted) EventType() string      { return EventTaskStarted }
func (TaskCompleted) EventType() string    { return EventTaskCompleted }
func (Completed) EventType() string        { return EventCompleted }
func (ErrorEvent) EventType() string       { return EventError }
func (e UnknownEvent) EventType() string   { return e.Tag }

// IsTerminal reports whether an event ends the run's stream.
func IsTerminal(ev ProgressEvent) bool {
	switch ev.(type) {
	case Completed, ErrorEvent:
		return true
	}
	return false
}

// progressEnvelope is the wire framing: {"type": "...", ...payload}.
type progressEnvelope struct {
	Type string `json:"type"`
}

// DecodeProgressEvent validates and decodes one wire event at the channel
// boundary. Unknown tags decode to UnknownEvent rather than erroring, so
// protocol extensions stay observable downstream.
func DecodeProgressEvent(data []byte) (ProgressEvent, error) {
	var env progressEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid progress event: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("invalid progress event: missing type")
	}

	switch env.Type {
	case EventMessageDelta:
		var ev MessageDelta
		return ev, decodeInto(data, env.Type, &ev)
	case EventThoughtDelta:
		var ev ThoughtDelta
		return ev, decodeInto(data, env.Type, &ev)
	case EventToolCallStarted:
		var ev ToolCallStarted
		return ev, decodeInto(data, env.Type, &ev)
	case EventToolCallComplete:
		var ev ToolCallComplete
		return ev, decodeInto(data, env.Type, &ev)
	case EventPlan:
		var ev PlanUpdate
		return ev, decodeInto(data, env.Type, &ev)
	case EventLog:
		var ev LogLine
		return ev, decodeInto(data, env.Type, &ev)
	case EventTaskStarted:
		var ev TaskStarted
		return ev, decodeInto(data, env.Type, &ev)
	case EventTaskCompleted:
		var ev TaskCompleted
		return ev, decodeInto(data, env.Type, &ev)
	case EventCompleted:
		var ev Completed
		return ev, decodeInto(data, env.Type, &ev)
	case EventError:
		var ev ErrorEvent
		return ev, decodeInto(data, env.Type, &ev)
	default:
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		return UnknownEvent{Tag: env.Type, Raw: raw}, nil
	}
}

func decodeInto(data []byte, tag string, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", tag, err)
	}
	return nil
}
