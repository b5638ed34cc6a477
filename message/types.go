package message

type Role string

const (
	User      Role = "user"
	Assistant Role = "assistant"
)

type Status string

const (
	// Sending marks a locally created optimistic message still waiting for
	// its server-assigned id.
	Sending   Status = "sending"
	Streaming Status = "streaming"
	Complete  Status = "complete"
	Errored   Status = "error"
)

type PartType string

const (
	TextPart      PartType = "text"
	ReasoningPart PartType = "reasoning"
	ToolPart      PartType = "tool"
)

type ToolStatus string

const (
	ToolPending   ToolStatus = "pending"
	ToolRunning   ToolStatus = "running"
	ToolCompleted ToolStatus = "completed"
	ToolError     ToolStatus = "error"
)

// Part is the smallest streamed unit of a message. Text and reasoning
// parts carry Text; tool parts carry the tool fields.
type Part struct {
	ID        string         `json:"id"`
	MessageID string         `json:"message_id"`
	SessionID string         `json:"session_id"`
	Type      PartType       `json:"type"`
	Text      string         `json:"text,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	CallID    string         `json:"call_id,omitempty"`
	ToolState ToolStatus     `json:"tool_state,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	Output    string         `json:"output,omitempty"`
	Title     string         `json:"title,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Message belongs to exactly one session. PartIDs preserves streamed
// arrival order, which is presentation order.
type Message struct {
	ID           string   `json:"id"`
	SessionID    string   `json:"session_id"`
	Role         Role     `json:"role"`
	PartIDs      []string `json:"part_ids"`
	Status       Status   `json:"status"`
	OutputTokens int64    `json:"output_tokens,omitempty"`
	Cost         float64  `json:"cost,omitempty"`
	Error        string   `json:"error,omitempty"`
	CreatedAt    int64    `json:"created_at"`
	UpdatedAt    int64    `json:"updated_at"`
}

// Clone returns a copy safe to hand to subscribers.
func (m Message) Clone() Message {
	out := m
	out.PartIDs = append([]string(nil), m.PartIDs...)
	return out
}
