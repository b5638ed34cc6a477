// Package instance wires the stores, normalizer, metrics sampler, and
// pane cache together for one attached session host, and keeps the
// process-wide registry of attached instances.
package instance

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hatcher/sessionhub/csync"
	"github.com/hatcher/sessionhub/filetracker"
	"github.com/hatcher/sessionhub/hostapi"
	"github.com/hatcher/sessionhub/listcache"
	"github.com/hatcher/sessionhub/message"
	"github.com/hatcher/sessionhub/metrics"
	"github.com/hatcher/sessionhub/normalize"
	"github.com/hatcher/sessionhub/panecache"
	"github.com/hatcher/sessionhub/permission"
	"github.com/hatcher/sessionhub/pkg/logs"
	"github.com/hatcher/sessionhub/pkg/safego"
	"github.com/hatcher/sessionhub/pkg/schedule"
	"github.com/hatcher/sessionhub/pubsub"
	"github.com/hatcher/sessionhub/session"
	"github.com/hatcher/sessionhub/stream"
	"github.com/hatcher/sessionhub/wire"
)

// sampleInterval drives periodic tokens-per-second sampling for sessions
// that are actively streaming.
const sampleInterval = 3 * time.Second

type Options struct {
	// ID identifies the instance in the registry; generated when empty.
	ID string
	// BaseURL is the session host's HTTP address.
	BaseURL string
	// WorkingDir keys the persisted session-list fallback cache.
	WorkingDir string
	// CacheDir is where the session-list fallback cache lives; empty
	// disables it.
	CacheDir string
	// PaneCapacity bounds materialized session panes; zero means default.
	PaneCapacity int
	// Classifier overrides sub-agent detection for re-parenting.
	Classifier session.Classifier
}

// Instance is one attached session host: its canonical stores, the
// normalizer feeding them, and the bookkeeping around both.
type Instance struct {
	ID         string
	WorkingDir string

	Sessions    *session.Store
	Messages    *message.Store
	Metrics     *metrics.Tracker
	Permissions *permission.Service
	Files       *filetracker.Tracker
	Panes       *panecache.Controller
	Normalizer  *normalize.Normalizer

	host  *hostapi.Client
	lists *listcache.Cache
	sched *schedule.Scheduler

	// consecutive empty session-list fetches; read and reset from both the
	// caller's goroutine and refresh tasks
	emptyFetches *csync.Value[int]
	cancel       context.CancelFunc
}

func New(opts Options) *Instance {
	if opts.ID == "" {
		opts.ID = uuid.New().String()
	}
	inst := &Instance{
		ID:          opts.ID,
		WorkingDir:  opts.WorkingDir,
		Sessions:    session.NewStore(opts.Classifier),
		Messages:    message.NewStore(),
		Metrics:     metrics.NewTracker(),
		Permissions: permission.NewService(),
		Files:       filetracker.NewTracker(),
		host:        hostapi.NewClient(opts.BaseURL),
		sched:       schedule.NewScheduler(),

		emptyFetches: csync.NewValue(0),
	}
	if opts.CacheDir != "" {
		inst.lists = listcache.New(opts.CacheDir)
	}
	inst.Panes = panecache.NewController(opts.PaneCapacity, inst.evictPane)
	inst.Normalizer = normalize.New(inst.Sessions, inst.Messages, inst.Metrics, inst.Permissions, inst.Files, inst.host)

	inst.sched.AddFixDelayTask(sampleInterval, inst.sampleRates)
	return inst
}

func (in *Instance) evictPane(sessionID string) {
	logs.Debugf("evicting pane for session %s", sessionID)
	in.Messages.ClearSession(sessionID)
	in.Files.ClearSession(sessionID)
}

func (in *Instance) sampleRates() {
	for _, sess := range in.Sessions.List() {
		if sess.Status == session.StatusWorking {
			in.Metrics.SampleCurrentRate(sess.ID)
		}
	}
}

// Run attaches to the host's event stream and dispatches events until ctx
// is cancelled. Dropped streams reconnect with a short backoff; event
// handling itself never stops the loop.
func (in *Instance) Run(ctx context.Context) error {
	ctx, in.cancel = context.WithCancel(ctx)

	// deleted sessions leave the pane bookkeeping too
	sessionEvents := in.Sessions.Subscribe(ctx)
	safego.Go(ctx, func() {
		for ev := range sessionEvents {
			if ev.Type == pubsub.DeletedEvent {
				in.Panes.Drop(ev.Payload.ID)
			}
		}
	})

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		body, err := in.host.OpenEventStream(ctx)
		if err != nil {
			logs.Warnf("instance %s: event stream connect failed: %v", in.ID, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(2 * time.Second):
			}
			continue
		}
		err = stream.Pump(ctx, body, func(event any) {
			in.Normalizer.Handle(ctx, event)
		})
		body.Close()
		if err != nil && ctx.Err() == nil {
			logs.Warnf("instance %s: event stream dropped: %v", in.ID, err)
		}
	}
}

// SetActiveSession records the session the consumer is looking at,
// touches it (and its parent) in the pane cache, trims, and sweeps the
// pending-eviction queue.
func (in *Instance) SetActiveSession(sessionID string) {
	parent := ""
	root := sessionID
	if sess, ok := in.Sessions.Get(sessionID); ok && sess.ParentID != "" {
		parent = sess.ParentID
		root = sess.ParentID
	}
	in.Sessions.SetActiveParent(root)
	in.Sessions.ClearUnread(root)

	in.Panes.SetActive(sessionID, parent)
	in.Panes.Reconcile()
}

// CreateUserMessage inserts an optimistic user message that a later
// server-assigned id will re-key, and marks the turn as started.
func (in *Instance) CreateUserMessage(sessionID, text string) message.Message {
	msg := message.Message{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      message.User,
		Status:    message.Sending,
	}
	in.Messages.Upsert(msg)
	in.Messages.ApplyPartUpdate(message.Part{
		ID:        uuid.New().String(),
		MessageID: msg.ID,
		SessionID: sessionID,
		Type:      message.TextPart,
		Text:      text,
	})
	in.Metrics.SetRequestSent(sessionID)
	in.Sessions.SetStatus(sessionID, session.StatusWorking)
	stored, _ := in.Messages.Get(msg.ID)
	return stored
}

// CompactSession asks the host to compact a session's history. The
// session shows as compacting until the host's completion event flips it
// back to idle; a failed request reverts immediately.
func (in *Instance) CompactSession(ctx context.Context, sessionID string) error {
	in.Sessions.SetStatus(sessionID, session.StatusCompacting)
	if err := in.host.CompactSession(ctx, sessionID); err != nil {
		in.Sessions.SetStatus(sessionID, session.StatusIdle)
		return err
	}
	return nil
}

// LoadSessions fetches the host's session list into the session store.
// When the live fetch returns empty twice in a row, the persisted
// working-directory cache is served instead as a last resort.
func (in *Instance) LoadSessions(ctx context.Context) ([]session.Session, error) {
	infos, err := in.host.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		misses := in.emptyFetches.Get() + 1
		in.emptyFetches.Set(misses)
		if misses >= 2 && in.lists != nil {
			cached, tag, cerr := in.lists.Get(in.WorkingDir)
			if cerr == nil && len(cached) > 0 {
				logs.Infof("instance %s: serving cached session list (etag %s)", in.ID, tag)
				infos = cached
			}
		}
	} else {
		in.emptyFetches.Set(0)
		if in.lists != nil {
			if cerr := in.lists.Store(in.WorkingDir, infos); cerr != nil {
				logs.Warnf("instance %s: session list cache write failed: %v", in.ID, cerr)
			}
		}
	}

	out := make([]session.Session, 0, len(infos))
	for _, info := range infos {
		out = append(out, in.Sessions.Upsert(sessionFromInfo(info)))
	}
	return out, nil
}

func sessionFromInfo(info wire.SessionInfo) session.Session {
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
	return sess
}

// Hydrate reloads message history for the given sessions from the host.
func (in *Instance) Hydrate(ctx context.Context, sessionIDs ...string) error {
	byID, err := in.host.HydrateSessions(ctx, sessionIDs)
	if err != nil {
		return err
	}
	for id, msgs := range byID {
		in.Normalizer.ReplaceSessionMessages(id, msgs)
	}
	return nil
}

// Shutdown tears the instance down: stream loop, sampler, brokers.
func (in *Instance) Shutdown() {
	if in.cancel != nil {
		in.cancel()
	}
	in.sched.Stop()
	in.Normalizer.Shutdown()
	in.Sessions.Broker.Shutdown()
	in.Messages.Broker.Shutdown()
	in.Permissions.Broker.Shutdown()
}
