// Package permission queues governance requests coming from session hosts
// until the consumer (or the auto-approve path) answers them.
package permission

import (
	"sync"

	"github.com/hatcher/sessionhub/pubsub"
)

// Request is one permission asked by a host for a tool call.
type Request struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	MessageID string         `json:"message_id,omitempty"`
	CallID    string         `json:"call_id,omitempty"`
	Title     string         `json:"title,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt int64          `json:"created_at"`
}

// Question is a free-form prompt a host asks the user mid-run.
type Question struct {
	ID        string   `json:"id"`
	SessionID string   `json:"session_id"`
	Text      string   `json:"text"`
	Options   []string `json:"options,omitempty"`
}

// Service tracks the manual-approval queue, open questions, and which
// sessions auto-approve. Queue order is arrival order.
type Service struct {
	*pubsub.Broker[Request]

	mu          sync.RWMutex
	queue       []Request
	queued      map[string]bool
	questions   []Question
	autoApprove map[string]bool
}

func NewService() *Service {
	return &Service{
		Broker:      pubsub.NewBroker[Request](),
		queued:      make(map[string]bool),
		autoApprove: make(map[string]bool),
	}
}

// Enqueue adds a request to the manual-approval queue. A request already
// queued under the same id is not duplicated.
func (s *Service) Enqueue(req Request) {
	if req.ID == "" {
		return
	}
	s.mu.Lock()
	if s.queued[req.ID] {
		s.mu.Unlock()
		return
	}
	s.queued[req.ID] = true
	s.queue = append(s.queue, req)
	s.mu.Unlock()

	s.Publish(pubsub.CreatedEvent, req)
}

// Resolve removes an answered request from the queue; unknown ids no-op.
func (s *Service) Resolve(permissionID string) (Request, bool) {
	s.mu.Lock()
	var req Request
	found := false
	for i, q := range s.queue {
		if q.ID == permissionID {
			req = q
			found = true
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			delete(s.queued, permissionID)
			break
		}
	}
	s.mu.Unlock()

	if found {
		s.Publish(pubsub.DeletedEvent, req)
	}
	return req, found
}

// Pending returns the queued requests in arrival order.
func (s *Service) Pending() []Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Request(nil), s.queue...)
}

// AutoApproveSession turns on auto-approval for a session.
func (s *Service) AutoApproveSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoApprove[sessionID] = true
}

func (s *Service) DisableAutoApprove(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.autoApprove, sessionID)
}

func (s *Service) IsAutoApproved(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.autoApprove[sessionID]
}

// AskQuestion records an open question for the consumer to answer.
func (s *Service) AskQuestion(q Question) {
	if q.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.questions {
		if existing.ID == q.ID {
			return
		}
	}
	s.questions = append(s.questions, q)
}

// CloseQuestion drops a question once it was replied to or rejected.
func (s *Service) CloseQuestion(questionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, q := range s.questions {
		if q.ID == questionID {
			s.questions = append(s.questions[:i], s.questions[i+1:]...)
			return
		}
	}
}

// OpenQuestions returns unanswered questions in arrival order.
func (s *Service) OpenQuestions() []Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Question(nil), s.questions...)
}

// ClearSession drops queued requests and questions for a deleted session.
func (s *Service) ClearSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.queue[:0]
	for _, q := range s.queue {
		if q.SessionID == sessionID {
			delete(s.queued, q.ID)
			continue
		}
		queue = append(queue, q)
	}
	s.queue = queue

	questions := s.questions[:0]
	for _, q := range s.questions {
		if q.SessionID != sessionID {
			questions = append(questions, q)
		}
	}
	s.questions = questions
	delete(s.autoApprove, sessionID)
}
