package message

import (
	"strings"
	"sync"
	"time"

	"github.com/hatcher/sessionhub/pubsub"
)

// Store is the canonical map of sessions to ordered messages to parts for
// one instance. Mutations happen on the normalizer's dispatch goroutine;
// accessors are safe from any goroutine. Every mutation bumps a version
// counter and broadcasts the affected message.
//
// Within a session, updates apply in arrival order; the store never
// reorders by timestamp because tool-call and text-delta ordering is
// presentation-significant.
type Store struct {
	*pubsub.Broker[Message]

	mu       sync.RWMutex
	messages map[string]Message
	parts    map[string]map[string]Part // message id -> part id -> part
	order    map[string][]string        // session id -> message ids, arrival order
	version  uint64
}

func NewStore() *Store {
	return &Store{
		Broker:   pubsub.NewBroker[Message](),
		messages: make(map[string]Message),
		parts:    make(map[string]map[string]Part),
		order:    make(map[string][]string),
	}
}

// Upsert inserts or replaces a message by id. Newly inserted messages are
// appended to their session's ordered id list.
func (s *Store) Upsert(m Message) {
	s.mu.Lock()
	prev, exists := s.messages[m.ID]
	if exists {
		if len(m.PartIDs) == 0 {
			m.PartIDs = prev.PartIDs
		}
		if m.CreatedAt == 0 {
			m.CreatedAt = prev.CreatedAt
		}
	}
	if m.UpdatedAt == 0 {
		m.UpdatedAt = time.Now().UnixMilli()
	}
	if m.CreatedAt == 0 {
		m.CreatedAt = m.UpdatedAt
	}
	s.messages[m.ID] = m
	if !exists {
		s.order[m.SessionID] = append(s.order[m.SessionID], m.ID)
	}
	s.version++
	s.mu.Unlock()

	if exists {
		s.Publish(pubsub.UpdatedEvent, m.Clone())
	} else {
		s.Publish(pubsub.CreatedEvent, m.Clone())
	}
}

// ApplyPartUpdate inserts or replaces a part under its owning message.
// Returns false without mutating anything if the message is unknown; the
// normalizer is expected to upsert the message first.
func (s *Store) ApplyPartUpdate(p Part) bool {
	s.mu.Lock()
	msg, ok := s.messages[p.MessageID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	byID := s.parts[p.MessageID]
	if byID == nil {
		byID = make(map[string]Part)
		s.parts[p.MessageID] = byID
	}
	_, seen := byID[p.ID]
	byID[p.ID] = p
	if !seen {
		msg.PartIDs = append(msg.PartIDs, p.ID)
	}
	msg.UpdatedAt = time.Now().UnixMilli()
	s.messages[p.MessageID] = msg
	s.version++
	s.mu.Unlock()

	s.Publish(pubsub.UpdatedEvent, msg.Clone())
	return true
}

// RemovePart drops one part from a message; unknown ids no-op.
func (s *Store) RemovePart(messageID, partID string) {
	s.mu.Lock()
	msg, ok := s.messages[messageID]
	if !ok {
		s.mu.Unlock()
		return
	}
	if byID, ok := s.parts[messageID]; ok {
		delete(byID, partID)
	}
	for i, id := range msg.PartIDs {
		if id == partID {
			msg.PartIDs = append(msg.PartIDs[:i], msg.PartIDs[i+1:]...)
			break
		}
	}
	s.messages[messageID] = msg
	s.version++
	s.mu.Unlock()

	s.Publish(pubsub.UpdatedEvent, msg.Clone())
}

// Remove drops a message and all its parts.
func (s *Store) Remove(messageID string) {
	s.mu.Lock()
	msg, ok := s.messages[messageID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.messages, messageID)
	delete(s.parts, messageID)
	ids := s.order[msg.SessionID]
	for i, id := range ids {
		if id == messageID {
			s.order[msg.SessionID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	s.version++
	s.mu.Unlock()

	s.Publish(pubsub.DeletedEvent, msg.Clone())
}

// ReplaceID re-keys a message and all its parts from oldID to newID in one
// store update, for the optimistic-id to server-id transition. No
// intermediate state is observable.
func (s *Store) ReplaceID(oldID, newID string) bool {
	s.mu.Lock()
	msg, ok := s.messages[oldID]
	if !ok || oldID == newID {
		s.mu.Unlock()
		return ok
	}
	delete(s.messages, oldID)
	msg.ID = newID

	if byID, ok := s.parts[oldID]; ok {
		delete(s.parts, oldID)
		rekeyed := make(map[string]Part, len(byID))
		for id, p := range byID {
			p.MessageID = newID
			rekeyed[id] = p
		}
		s.parts[newID] = rekeyed
	}

	ids := s.order[msg.SessionID]
	for i, id := range ids {
		if id == oldID {
			ids[i] = newID
			break
		}
	}
	s.messages[newID] = msg
	s.version++
	s.mu.Unlock()

	s.Publish(pubsub.UpdatedEvent, msg.Clone())
	return true
}

// Get returns a message by id; the zero Message and false for unknown ids.
func (s *Store) Get(id string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if ok {
		m = m.Clone()
	}
	return m, ok
}

// Parts returns a message's parts in streamed order.
func (s *Store) Parts(messageID string) []Part {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return nil
	}
	byID := s.parts[messageID]
	out := make([]Part, 0, len(msg.PartIDs))
	for _, id := range msg.PartIDs {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// SessionMessageIDs returns a session's message ids in arrival order.
func (s *Store) SessionMessageIDs(sessionID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order[sessionID]...)
}

// TextContent concatenates a message's text parts.
func (s *Store) TextContent(messageID string) string {
	var sb strings.Builder
	for _, p := range s.Parts(messageID) {
		if p.Type == TextPart {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// FindPending returns the last message of the given role in the session
// that is still awaiting its server id. Last-in-arrival-order matches the
// host's correlation behavior; with several pending messages of one role
// the match is ambiguous.
func (s *Store) FindPending(sessionID string, role Role) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.order[sessionID]
	for i := len(ids) - 1; i >= 0; i-- {
		m, ok := s.messages[ids[i]]
		if ok && m.Role == role && m.Status == Sending {
			return m.Clone(), true
		}
	}
	return Message{}, false
}

// ClearSession removes every message and part record for a session. Used
// by pane eviction and session deletion.
func (s *Store) ClearSession(sessionID string) {
	s.mu.Lock()
	for _, id := range s.order[sessionID] {
		delete(s.messages, id)
		delete(s.parts, id)
	}
	delete(s.order, sessionID)
	s.version++
	s.mu.Unlock()
}

// Version increases monotonically with every mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}
