package types

import "time"

// MessageKind identifies what a timeline row displays.
type MessageKind string

const (
	KindAgentMessage MessageKind = "agent_message"
	KindAgentThought MessageKind = "agent_thought"
	KindToolCall     MessageKind = "tool_call"
	KindAgentPlan    MessageKind = "agent_plan"
	KindLog          MessageKind = "log"
	KindTaskStarted  MessageKind = "task_started"
	KindTaskAdded    MessageKind = "task_added"
	KindCompleted    MessageKind = "completed"
	KindError        MessageKind = "error"
	KindDebug        MessageKind = "debug"
)

// ToolCallStatus is the lifecycle state of a tool invocation.
type ToolCallStatus string

const (
	ToolRunning   ToolCallStatus = "running"
	ToolCompleted ToolCallStatus = "completed"
	ToolFailed    ToolCallStatus = "failed"
)

// ToolCallRecord is the structured payload of a tool_call row.
// Identity is ToolCallID; completion events patch the original row by id
// rather than appending a second one.
type ToolCallRecord struct {
	ToolCallID string         `json:"toolCallID"`
	Status     ToolCallStatus `json:"status"`
	Title      string         `json:"title"`
	Kind       string         `json:"kind,omitempty"`
	RawInput   any            `json:"rawInput,omitempty"`
	RawOutput  any            `json:"rawOutput,omitempty"`
}

// DisplayMessage is one row of the generation timeline. Row order is
// insertion order; text deltas of the same kind coalesce into the previous
// row instead of appending.
type DisplayMessage struct {
	ID            string          `json:"id"`
	Kind          MessageKind     `json:"kind"`
	Body          string          `json:"body"`
	ToolCall      *ToolCallRecord `json:"toolCall,omitempty"`
	Plan          *Plan           `json:"plan,omitempty"`
	CorrelationID string          `json:"correlationID,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}
