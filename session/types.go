package session

type Status string

const (
	StatusIdle       Status = "idle"
	StatusWorking    Status = "working"
	StatusCompacting Status = "compacting"
)

type ModelRef struct {
	ProviderID string `json:"provider_id"`
	ModelID    string `json:"model_id"`
}

// Revert points at the message/part the session has been rolled back to.
type Revert struct {
	MessageID string `json:"message_id"`
	PartID    string `json:"part_id,omitempty"`
	Snapshot  string `json:"snapshot,omitempty"`
	Diff      string `json:"diff,omitempty"`
}

// Session is one conversation thread. ParentID is empty for root sessions
// and set for sub-agent sessions.
type Session struct {
	ID        string   `json:"id"`
	ParentID  string   `json:"parent_id,omitempty"`
	Title     string   `json:"title"`
	Agent     string   `json:"agent,omitempty"`
	Model     ModelRef `json:"model,omitzero"`
	CreatedAt int64    `json:"created_at"`
	UpdatedAt int64    `json:"updated_at"`
	Revert    *Revert  `json:"revert,omitempty"`
	Status    Status   `json:"status"`
}

func (s Session) IsSubAgent() bool {
	return s.ParentID != ""
}
