package session

import (
	"sync"
	"time"

	"github.com/hatcher/sessionhub/pubsub"
)

// Store holds every session record known for one instance. It is mutated
// by the event normalizer only; readers may call accessors from any
// goroutine. Each mutation bumps a version counter and broadcasts the
// affected session so consumers can re-render.
type Store struct {
	*pubsub.Broker[Session]

	mu           sync.RWMutex
	sessions     map[string]Session
	order        []string // insertion order
	unread       map[string]bool
	archivable   map[string]bool
	activeParent string
	version      uint64

	classify Classifier
}

func NewStore(classify Classifier) *Store {
	if classify == nil {
		classify = DefaultClassifier
	}
	return &Store{
		Broker:     pubsub.NewBroker[Session](),
		sessions:   make(map[string]Session),
		unread:     make(map[string]bool),
		archivable: make(map[string]bool),
		classify:   classify,
	}
}

// Upsert creates or merges a session record and returns the stored result.
// Zero-valued incoming fields keep the existing value; a missing update
// timestamp is stamped with the current time. New unparented sessions that
// look like sub-agents are re-parented to the active parent session.
func (s *Store) Upsert(in Session) Session {
	s.mu.Lock()

	prev, exists := s.sessions[in.ID]
	if exists {
		in = mergeSession(prev, in)
	} else {
		if in.UpdatedAt == 0 {
			in.UpdatedAt = time.Now().UnixMilli()
		}
		if in.CreatedAt == 0 {
			in.CreatedAt = in.UpdatedAt
		}
		if in.Status == "" {
			in.Status = StatusIdle
		}
		if in.ParentID == "" && s.activeParent != "" && s.activeParent != in.ID && s.classify(in) {
			in.ParentID = s.activeParent
		}
	}
	// a session can never be its own parent
	if in.ParentID == in.ID {
		in.ParentID = ""
	}

	s.sessions[in.ID] = in
	if !exists {
		s.order = append(s.order, in.ID)
	}
	s.version++
	s.mu.Unlock()

	if exists {
		s.Publish(pubsub.UpdatedEvent, in)
	} else {
		s.Publish(pubsub.CreatedEvent, in)
	}
	return in
}

func mergeSession(prev, in Session) Session {
	out := prev
	if in.Title != "" {
		out.Title = in.Title
	}
	if in.Agent != "" {
		out.Agent = in.Agent
	}
	if in.ParentID != "" {
		out.ParentID = in.ParentID
	}
	if in.Model != (ModelRef{}) {
		out.Model = in.Model
	}
	if in.Status != "" {
		out.Status = in.Status
	}
	if in.CreatedAt != 0 {
		out.CreatedAt = in.CreatedAt
	}
	if in.UpdatedAt != 0 {
		out.UpdatedAt = in.UpdatedAt
	} else {
		out.UpdatedAt = time.Now().UnixMilli()
	}
	if in.Revert != nil {
		out.Revert = in.Revert
	}
	return out
}

func (s *Store) Get(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// List returns sessions in insertion order.
func (s *Store) List() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Session, 0, len(s.order))
	for _, id := range s.order {
		if sess, ok := s.sessions[id]; ok {
			out = append(out, sess)
		}
	}
	return out
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, id)
	delete(s.unread, id)
	delete(s.archivable, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.version++
	s.mu.Unlock()

	s.Publish(pubsub.DeletedEvent, sess)
}

// SetStatus updates a session's status; unknown ids are ignored.
func (s *Store) SetStatus(id string, status Status) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok || sess.Status == status {
		s.mu.Unlock()
		return
	}
	sess.Status = status
	s.sessions[id] = sess
	s.version++
	s.mu.Unlock()

	s.Publish(pubsub.UpdatedEvent, sess)
}

// SetActiveParent records which root session the consumer currently has in
// the foreground; re-parenting and unread tracking key off it.
func (s *Store) SetActiveParent(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeParent = id
}

func (s *Store) ActiveParent() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeParent
}

// MarkUnread flags a session as having completed output the consumer has
// not looked at yet.
func (s *Store) MarkUnread(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread[id] = true
}

func (s *Store) ClearUnread(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.unread, id)
}

func (s *Store) HasUnread(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread[id]
}

// MarkArchivable flags an idle sub-agent session whose pane can be folded
// away once its output has been absorbed by the parent.
func (s *Store) MarkArchivable(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archivable[id] = true
}

func (s *Store) IsArchivable(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.archivable[id]
}

// Version increases monotonically with every mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}
