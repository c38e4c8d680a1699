package types

// PlanEntryStatus is the reported state of a single plan entry.
type PlanEntryStatus string

const (
	PlanPending    PlanEntryStatus = "pending"
	PlanInProgress PlanEntryStatus = "in_progress"
	PlanDone       PlanEntryStatus = "completed"
)

// PlanEntry is one item of the agent's task plan.
type PlanEntry struct {
	Content  string          `json:"content"`
	Status   PlanEntryStatus `json:"status"`
	Priority string          `json:"priority,omitempty"`
}

// Plan is the agent's current task plan. Every plan event replaces the
// previous plan wholesale; entries are never merged across updates.
type Plan struct {
	Entries []PlanEntry `json:"entries"`
}
