package app

import (
	"sync"
	"time"

	"medquiz-service/internal/customquiz"
	"medquiz-service/internal/domain"
	"medquiz-service/internal/session"
)

// Result is the outcome of a completed session.
type Result struct {
	SessionID   string             `json:"sessionId"`
	QuizID      string             `json:"quizId,omitempty"`
	Participant domain.Participant `json:"participant"`
	Total       int                `json:"total"`
	Percentage  int                `json:"percentage"`
	// Recorded is false while the participant entry has not been persisted.
	Recorded bool `json:"recorded"`
}

// Session is a live quiz session together with who is taking it.
type Session struct {
	id         string
	user       domain.User
	quizID     string
	total      int
	now        func() time.Time
	controller *session.Controller

	submitMu sync.Mutex

	mu          sync.Mutex
	completedAt time.Time
	final       *domain.SessionState
	recorded    *domain.Participant
}

// NewSession wraps an existing controller. Used by registries and tests
// that build sessions directly.
func NewSession(id string, user domain.User, controller *session.Controller) *Session {
	return &Session{id: id, user: user, now: time.Now, controller: controller}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) User() domain.User {
	return s.user
}

func (s *Session) QuizID() string {
	return s.quizID
}

// Controller exposes the session state machine.
func (s *Session) Controller() *session.Controller {
	return s.controller
}

// Result returns the session outcome once it is complete.
func (s *Session) Result() (Result, bool) {
	return s.pendingResult()
}

func (s *Session) markComplete(state domain.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.final != nil {
		return
	}
	s.completedAt = s.now().UTC()
	s.final = &state
}

func (s *Session) pendingResult() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.final == nil {
		return Result{}, false
	}
	total := s.total
	if total == 0 {
		total = s.final.QuestionIndex
	}
	p := domain.Participant{
		UserID:      s.user.ID,
		DisplayName: s.user.Name,
		Score:       s.final.Score,
		CompletedAt: s.completedAt,
	}
	recorded := false
	if s.recorded != nil {
		p = *s.recorded
		recorded = true
	}
	return Result{
		SessionID:   s.id,
		QuizID:      s.quizID,
		Participant: p,
		Total:       total,
		Percentage:  customquiz.Percentage(p.Score, total),
		Recorded:    recorded,
	}, true
}

func (s *Session) recordResult(p domain.Participant) Result {
	s.mu.Lock()
	s.recorded = &p
	s.mu.Unlock()
	r, _ := s.pendingResult()
	return r
}
