package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"medquiz-service/internal/domain"
)

// DocumentStore is an in-process customquiz.DocumentStore (useful for tests/demos).
type DocumentStore struct {
	mu      sync.RWMutex
	quizzes map[string]domain.CustomQuiz
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{quizzes: make(map[string]domain.CustomQuiz)}
}

func (s *DocumentStore) Insert(_ context.Context, quiz domain.CustomQuiz) (string, error) {
	quiz = cloneQuiz(quiz)
	quiz.ID = uuid.NewString()
	if quiz.Participants == nil {
		quiz.Participants = []domain.Participant{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes[quiz.ID] = quiz
	return quiz.ID, nil
}

func (s *DocumentStore) Get(_ context.Context, id string) (domain.CustomQuiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[id]
	if !ok {
		return domain.CustomQuiz{}, domain.ErrQuizNotFound
	}
	return cloneQuiz(quiz), nil
}

func (s *DocumentStore) AppendParticipant(_ context.Context, id string, p domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[id]
	if !ok {
		return domain.ErrQuizNotFound
	}
	quiz.Participants = append(quiz.Participants, p)
	s.quizzes[id] = quiz
	return nil
}

func (s *DocumentStore) ListByCreator(_ context.Context, creatorID string) ([]domain.CustomQuiz, error) {
	s.mu.RLock()
	out := make([]domain.CustomQuiz, 0)
	for _, quiz := range s.quizzes {
		if quiz.CreatorID == creatorID {
			out = append(out, cloneQuiz(quiz))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func cloneQuiz(q domain.CustomQuiz) domain.CustomQuiz {
	out := q
	out.Questions = make([]domain.Question, len(q.Questions))
	for i, question := range q.Questions {
		out.Questions[i] = question.Clone()
	}
	if q.Participants != nil {
		out.Participants = append([]domain.Participant{}, q.Participants...)
	}
	return out
}
