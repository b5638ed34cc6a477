// Package normalize translates wire events into store mutations and side
// effects. Handlers are defensive: events missing required fields are
// dropped, side-effect failures degrade rather than propagate, and no
// event can abort processing of the ones after it.
package normalize

import (
	"context"
	"time"

	"github.com/hatcher/sessionhub/filetracker"
	"github.com/hatcher/sessionhub/hostapi"
	"github.com/hatcher/sessionhub/message"
	"github.com/hatcher/sessionhub/metrics"
	"github.com/hatcher/sessionhub/permission"
	"github.com/hatcher/sessionhub/pkg/logs"
	"github.com/hatcher/sessionhub/pkg/safego"
	"github.com/hatcher/sessionhub/pubsub"
	"github.com/hatcher/sessionhub/session"
	"github.com/hatcher/sessionhub/wire"
)

// Host is the slice of the host API the normalizer's side effects need.
type Host interface {
	RespondPermission(ctx context.Context, sessionID, permissionID, response string) error
	ToolInstructions(ctx context.Context, tool string) (string, error)
	ListMessages(ctx context.Context, sessionID string) ([]hostapi.MessageWithParts, error)
}

type Normalizer struct {
	sessions *session.Store
	messages *message.Store
	metrics  *metrics.Tracker
	perms    *permission.Service
	files    *filetracker.Tracker
	host     Host
	toasts   *pubsub.Broker[wire.ToastShow]
}

func New(
	sessions *session.Store,
	messages *message.Store,
	tracker *metrics.Tracker,
	perms *permission.Service,
	files *filetracker.Tracker,
	host Host,
) *Normalizer {
	return &Normalizer{
		sessions: sessions,
		messages: messages,
		metrics:  tracker,
		perms:    perms,
		files:    files,
		host:     host,
		toasts:   pubsub.NewBroker[wire.ToastShow](),
	}
}

// SubscribeToasts exposes the auxiliary toast-display events.
func (n *Normalizer) SubscribeToasts(ctx context.Context) <-chan pubsub.Event[wire.ToastShow] {
	return n.toasts.Subscribe(ctx)
}

// Shutdown closes the toast broker; the stores own their own brokers.
func (n *Normalizer) Shutdown() {
	n.toasts.Shutdown()
}

// Handle applies one decoded wire event. It is meant to be called from a
// single dispatch goroutine; store mutations complete synchronously so
// version counters stay consistent per event.
func (n *Normalizer) Handle(ctx context.Context, event any) {
	defer safego.Recovery(ctx)

	switch ev := event.(type) {
	case *wire.MessageUpdated:
		n.handleMessageUpdated(ev)
	case *wire.MessagePartUpdated:
		n.handlePartUpdated(ctx, ev)
	case *wire.MessageRemoved:
		n.messages.Remove(ev.MessageID)
	case *wire.MessagePartRemoved:
		n.messages.RemovePart(ev.MessageID, ev.PartID)
	case *wire.SessionUpdated:
		n.handleSessionUpdated(ev)
	case *wire.SessionDeleted:
		n.handleSessionDeleted(ev)
	case *wire.SessionIdle:
		n.handleSessionIdle(ev)
	case *wire.SessionCompacted:
		n.handleSessionCompacted(ctx, ev)
	case *wire.SessionError:
		n.handleSessionError(ev)
	case *wire.PermissionUpdated:
		n.handlePermissionUpdated(ctx, ev)
	case *wire.PermissionReplied:
		n.perms.Resolve(ev.PermissionID)
	case *wire.QuestionAsked:
		n.perms.AskQuestion(permission.Question{
			ID:        ev.ID,
			SessionID: ev.SessionID,
			Text:      ev.Text,
			Options:   ev.Options,
		})
	case *wire.QuestionReplied:
		n.perms.CloseQuestion(ev.QuestionID)
	case *wire.QuestionRejected:
		n.perms.CloseQuestion(ev.QuestionID)
	case *wire.ToastShow:
		n.toasts.Publish(pubsub.CreatedEvent, *ev)
	default:
		logs.Debugf("ignoring event of type %T", event)
	}
}

func (n *Normalizer) handleMessageUpdated(ev *wire.MessageUpdated) {
	info := ev.Info
	if info.ID == "" || info.SessionID == "" {
		logs.Debugf("dropping message update without ids")
		return
	}

	_, existed := n.messages.Get(info.ID)
	if !existed {
		// a locally optimistic message may be waiting for this server id
		if pending, ok := n.messages.FindPending(info.SessionID, message.Role(info.Role)); ok {
			n.messages.ReplaceID(pending.ID, info.ID)
			existed = true
		}
	}

	// full message-info events are terminal unless the host says otherwise:
	// an error field means failure, authoritative token counts or a
	// completion stamp mean done, anything else is still streaming
	status := message.Streaming
	switch {
	case info.Error != "":
		status = message.Errored
	case info.Time.Completed != 0 || info.Tokens != nil:
		status = message.Complete
	}

	msg := message.Message{
		ID:        info.ID,
		SessionID: info.SessionID,
		Role:      message.Role(info.Role),
		Status:    status,
		Error:     info.Error,
		Cost:      info.Cost,
		CreatedAt: info.Time.Created,
		UpdatedAt: info.Time.Updated,
	}
	if info.Tokens != nil {
		msg.OutputTokens = info.Tokens.Output
	}
	n.messages.Upsert(msg)

	switch message.Role(info.Role) {
	case message.User:
		if !existed {
			// a new user message marks the start of a turn
			n.metrics.SetRequestSent(info.SessionID)
			n.sessions.SetStatus(info.SessionID, session.StatusWorking)
		}
	case message.Assistant:
		if status == message.Complete && info.Tokens != nil {
			var completedAt time.Time
			if info.Time.Completed != 0 {
				completedAt = time.UnixMilli(info.Time.Completed)
			}
			n.metrics.SetCompleted(info.SessionID, info.Tokens.Output, completedAt)
		}
	}
}

func (n *Normalizer) handlePartUpdated(ctx context.Context, ev *wire.MessagePartUpdated) {
	part := ev.Part
	sessionID := part.SessionID
	messageID := part.MessageID
	role := message.Assistant
	if ev.Info != nil {
		if sessionID == "" {
			sessionID = ev.Info.SessionID
		}
		if messageID == "" {
			messageID = ev.Info.ID
		}
		if ev.Info.Role != "" {
			role = message.Role(ev.Info.Role)
		}
	}
	if sessionID == "" || messageID == "" {
		logs.Debugf("dropping part update without resolvable ids")
		return
	}

	if _, ok := n.messages.Get(messageID); !ok {
		if pending, ok := n.messages.FindPending(sessionID, role); ok {
			n.messages.ReplaceID(pending.ID, messageID)
		} else {
			// parts can outrun their message.updated event
			n.messages.Upsert(message.Message{
				ID:        messageID,
				SessionID: sessionID,
				Role:      role,
				Status:    message.Streaming,
			})
		}
	}

	prevParts := n.messages.Parts(messageID)
	if !n.messages.ApplyPartUpdate(toStorePart(part, messageID, sessionID)) {
		return
	}

	switch part.Type {
	case "text":
		n.metrics.RecordFirstToken(sessionID)
		n.metrics.AddDeltaChars(sessionID, len(n.messages.TextContent(messageID)))
	case "tool":
		n.handleToolPart(ctx, sessionID, part, prevParts)
	}
}

func toStorePart(p wire.Part, messageID, sessionID string) message.Part {
	out := message.Part{
		ID:        p.ID,
		MessageID: messageID,
		SessionID: sessionID,
		Type:      message.PartType(p.Type),
		Text:      p.Text,
		Tool:      p.Tool,
		CallID:    p.CallID,
	}
	if p.State != nil {
		out.ToolState = message.ToolStatus(p.State.Status)
		out.Input = p.State.Input
		out.Output = p.State.Output
		out.Title = p.State.Title
		out.Error = p.State.Error
	}
	return out
}

func (n *Normalizer) handleToolPart(ctx context.Context, sessionID string, part wire.Part, prevParts []message.Part) {
	if part.State == nil {
		return
	}
	if path := toolFilePath(part.State.Input); path != "" {
		switch part.Tool {
		case "view", "read", "grep", "glob":
			n.files.RecordRead(sessionID, path)
		case "write", "edit", "patch", "multiedit":
			if part.State.Status == string(message.ToolCompleted) {
				n.files.RecordWrite(sessionID, path)
			}
		}
	}

	if part.State.Status != string(message.ToolRunning) {
		return
	}
	for _, prev := range prevParts {
		if prev.ID == part.ID && prev.ToolState == message.ToolRunning {
			return // already running, not a transition
		}
	}
	tool := part.Tool
	safego.Go(ctx, func() {
		// best effort, failures swallowed
		if _, err := n.host.ToolInstructions(context.WithoutCancel(ctx), tool); err != nil {
			logs.Debugf("tool instruction fetch failed for %s: %v", tool, err)
		}
	})
}

func toolFilePath(input map[string]any) string {
	for _, key := range []string{"file_path", "path", "filepath"} {
		if v, ok := input[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func (n *Normalizer) handleSessionUpdated(ev *wire.SessionUpdated) {
	info := ev.Info
	if info.ID == "" {
		logs.Debugf("dropping session update without id")
		return
	}
	sess := session.Session{
		ID:        info.ID,
		ParentID:  info.ParentID,
		Title:     info.Title,
		Agent:     info.Agent,
		Model:     session.ModelRef(info.Model),
		CreatedAt: info.Time.Created,
		UpdatedAt: info.Time.Updated,
	}
	if info.Revert != nil {
		sess.Revert = &session.Revert{
			MessageID: info.Revert.MessageID,
			PartID:    info.Revert.PartID,
			Snapshot:  info.Revert.Snapshot,
			Diff:      info.Revert.Diff,
		}
	}
	n.sessions.Upsert(sess)
}

func (n *Normalizer) handleSessionDeleted(ev *wire.SessionDeleted) {
	if ev.SessionID == "" {
		return
	}
	n.messages.ClearSession(ev.SessionID)
	n.metrics.Clear(ev.SessionID)
	n.perms.ClearSession(ev.SessionID)
	n.files.ClearSession(ev.SessionID)
	n.sessions.Delete(ev.SessionID)
}

func (n *Normalizer) handleSessionIdle(ev *wire.SessionIdle) {
	sess, ok := n.sessions.Get(ev.SessionID)
	if !ok {
		logs.Debugf("idle event for unknown session %s", ev.SessionID)
		return
	}
	n.sessions.SetStatus(sess.ID, session.StatusIdle)
	if sess.IsSubAgent() &&
		len(n.messages.SessionMessageIDs(sess.ID)) > 0 &&
		len(n.messages.SessionMessageIDs(sess.ParentID)) > 0 {
		// foldable into the parent pane only once both histories are
		// materialized; teardown itself waits for the pane sweep
		n.sessions.MarkArchivable(sess.ID)
	}

	// badge sessions finishing outside the foreground
	root := sess.ID
	if sess.ParentID != "" {
		root = sess.ParentID
	}
	if active := n.sessions.ActiveParent(); active != "" && root != active {
		n.sessions.MarkUnread(root)
	}
}

func (n *Normalizer) handleSessionCompacted(ctx context.Context, ev *wire.SessionCompacted) {
	sessionID := ev.SessionID
	if sessionID == "" {
		return
	}
	n.sessions.SetStatus(sessionID, session.StatusIdle)

	// history shrank on the host; reload it. Failure keeps prior state.
	safego.Go(ctx, func() {
		msgs, err := n.host.ListMessages(context.WithoutCancel(ctx), sessionID)
		if err != nil {
			logs.Warnf("reload after compaction failed for session %s: %v", sessionID, err)
			return
		}
		n.ReplaceSessionMessages(sessionID, msgs)
	})
}

// ReplaceSessionMessages swaps a session's message history for the listing
// fetched from the host. Also used for pane re-hydration after eviction.
func (n *Normalizer) ReplaceSessionMessages(sessionID string, msgs []hostapi.MessageWithParts) {
	n.messages.ClearSession(sessionID)
	for _, m := range msgs {
		n.handleMessageUpdated(&wire.MessageUpdated{Info: m.Info})
		for _, p := range m.Parts {
			info := m.Info
			n.handlePartUpdated(context.Background(), &wire.MessagePartUpdated{Part: p, Info: &info})
		}
	}
}

func (n *Normalizer) handleSessionError(ev *wire.SessionError) {
	if ev.SessionID == "" {
		logs.Warnf("session host error: %s", ev.Error)
		return
	}
	logs.Warnf("session %s error: %s", ev.SessionID, ev.Error)
	n.sessions.SetStatus(ev.SessionID, session.StatusIdle)
}

func (n *Normalizer) handlePermissionUpdated(ctx context.Context, ev *wire.PermissionUpdated) {
	if ev.ID == "" || ev.SessionID == "" {
		logs.Debugf("dropping permission update without ids")
		return
	}
	req := permission.Request{
		ID:        ev.ID,
		SessionID: ev.SessionID,
		MessageID: ev.MessageID,
		CallID:    ev.CallID,
		Title:     ev.Title,
		Metadata:  ev.Metadata,
		CreatedAt: ev.Time.Created,
	}

	if !n.perms.IsAutoApproved(ev.SessionID) {
		n.perms.Enqueue(req)
		return
	}
	safego.Go(ctx, func() {
		err := n.host.RespondPermission(context.WithoutCancel(ctx), req.SessionID, req.ID, "always")
		if err != nil {
			logs.Warnf("auto-approve failed for permission %s, queuing for manual approval: %v", req.ID, err)
			n.perms.Enqueue(req)
		}
	})
}
