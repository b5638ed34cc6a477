// Package wire defines the event objects a session host pushes over its
// event stream, and decodes them from their JSON envelope.
package wire

// Event type discriminants.
const (
	TypeMessageUpdated     = "message.updated"
	TypeMessagePartUpdated = "message.part.updated"
	TypeMessageRemoved     = "message.removed"
	TypeMessagePartRemoved = "message.part.removed"
	TypeSessionUpdated     = "session.updated"
	TypeSessionDeleted     = "session.deleted"
	TypeSessionIdle        = "session.idle"
	TypeSessionCompacted   = "session.compacted"
	TypeSessionError       = "session.error"
	TypePermissionUpdated  = "permission.updated"
	TypePermissionReplied  = "permission.replied"
	TypeQuestionAsked      = "question.asked"
	TypeQuestionReplied    = "question.replied"
	TypeQuestionRejected   = "question.rejected"
	TypeToastShow          = "toast.show"
)

// TimeInfo carries unix-millisecond timestamps; zero means unset.
type TimeInfo struct {
	Created   int64 `json:"created,omitempty"`
	Updated   int64 `json:"updated,omitempty"`
	Completed int64 `json:"completed,omitempty"`
}

type Tokens struct {
	Input     int64 `json:"input"`
	Output    int64 `json:"output"`
	Reasoning int64 `json:"reasoning,omitempty"`
	CacheRead int64 `json:"cache_read,omitempty"`
}

type ModelRef struct {
	ProviderID string `json:"provider_id"`
	ModelID    string `json:"model_id"`
}

// Revert points at the message/part a session has been rolled back to.
type Revert struct {
	MessageID string `json:"message_id"`
	PartID    string `json:"part_id,omitempty"`
	Snapshot  string `json:"snapshot,omitempty"`
	Diff      string `json:"diff,omitempty"`
}

type SessionInfo struct {
	ID       string   `json:"id"`
	ParentID string   `json:"parent_id,omitempty"`
	Title    string   `json:"title,omitempty"`
	Agent    string   `json:"agent,omitempty"`
	Model    ModelRef `json:"model,omitzero"`
	Time     TimeInfo `json:"time,omitzero"`
	Revert   *Revert  `json:"revert,omitempty"`
}

type MessageInfo struct {
	ID        string   `json:"id"`
	SessionID string   `json:"session_id"`
	Role      string   `json:"role"`
	Time      TimeInfo `json:"time,omitzero"`
	Tokens    *Tokens  `json:"tokens,omitempty"`
	Cost      float64  `json:"cost,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// ToolState is the lifecycle payload of a tool part.
type ToolState struct {
	Status string         `json:"status"` // pending, running, completed, error
	Input  map[string]any `json:"input,omitempty"`
	Output string         `json:"output,omitempty"`
	Title  string         `json:"title,omitempty"`
	Error  string         `json:"error,omitempty"`
}

type Part struct {
	ID        string     `json:"id"`
	MessageID string     `json:"message_id,omitempty"`
	SessionID string     `json:"session_id,omitempty"`
	Type      string     `json:"type"` // text, reasoning, tool
	Text      string     `json:"text,omitempty"`
	Tool      string     `json:"tool,omitempty"`
	CallID    string     `json:"call_id,omitempty"`
	State     *ToolState `json:"state,omitempty"`
}

type MessageUpdated struct {
	Info MessageInfo `json:"info"`
}

// MessagePartUpdated carries the streamed part; Info duplicates the owning
// message so receivers can resolve ids when the part omits them.
type MessagePartUpdated struct {
	Part Part         `json:"part"`
	Info *MessageInfo `json:"info,omitempty"`
}

type MessageRemoved struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
}

type MessagePartRemoved struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	PartID    string `json:"part_id"`
}

type SessionUpdated struct {
	Info SessionInfo `json:"info"`
}

type SessionDeleted struct {
	SessionID string `json:"session_id"`
}

type SessionIdle struct {
	SessionID string `json:"session_id"`
}

type SessionCompacted struct {
	SessionID string `json:"session_id"`
}

type SessionError struct {
	SessionID string `json:"session_id,omitempty"`
	Error     string `json:"error"`
}

type PermissionUpdated struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	MessageID string         `json:"message_id,omitempty"`
	CallID    string         `json:"call_id,omitempty"`
	Title     string         `json:"title,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Time      TimeInfo       `json:"time,omitzero"`
}

type PermissionReplied struct {
	SessionID    string `json:"session_id"`
	PermissionID string `json:"permission_id"`
	Response     string `json:"response"`
}

type QuestionAsked struct {
	ID        string   `json:"id"`
	SessionID string   `json:"session_id"`
	Text      string   `json:"text"`
	Options   []string `json:"options,omitempty"`
}

type QuestionReplied struct {
	SessionID  string `json:"session_id"`
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer,omitempty"`
}

type QuestionRejected struct {
	SessionID  string `json:"session_id"`
	QuestionID string `json:"question_id"`
}

type ToastShow struct {
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
	Variant string `json:"variant,omitempty"`
}
