// Package customquiz validates user-authored quizzes, persists them through
// a DocumentStore and ranks their participants.
package customquiz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"medquiz-service/internal/domain"
)

// DocumentStore is the persistence contract for custom quizzes. The only
// mutation after Insert is AppendParticipant, which must be atomic.
type DocumentStore interface {
	// Insert stores quiz under a newly generated id and returns that id.
	Insert(ctx context.Context, quiz domain.CustomQuiz) (string, error)
	// Get returns domain.ErrQuizNotFound for unknown ids.
	Get(ctx context.Context, id string) (domain.CustomQuiz, error)
	AppendParticipant(ctx context.Context, id string, p domain.Participant) error
	ListByCreator(ctx context.Context, creatorID string) ([]domain.CustomQuiz, error)
}

// Store applies authoring rules on top of a DocumentStore.
type Store struct {
	docs DocumentStore
	now  func() time.Time
}

func NewStore(docs DocumentStore) *Store {
	return NewStoreWithClock(docs, time.Now)
}

// NewStoreWithClock is used by tests that need fixed timestamps.
func NewStoreWithClock(docs DocumentStore, now func() time.Time) *Store {
	return &Store{docs: docs, now: now}
}

// Save validates d and persists it for creator. The returned quiz carries
// the generated id and an empty participant list.
func (s *Store) Save(ctx context.Context, d domain.QuizDraft, creator domain.User) (domain.CustomQuiz, error) {
	d = Normalize(d)
	if err := ValidateDraft(d); err != nil {
		return domain.CustomQuiz{}, err
	}

	name := strings.TrimSpace(creator.Name)
	if creator.Anonymous || name == "" {
		name = domain.AnonymousName
	}
	quiz := domain.CustomQuiz{
		CreatorName:        name,
		Title:              d.Title,
		QuestionCount:      len(d.Questions),
		SecondsPerQuestion: d.SecondsPerQuestion,
		Questions:          d.Questions,
		CreatedAt:          s.now().UTC(),
		Participants:       []domain.Participant{},
	}
	if !creator.Anonymous {
		quiz.CreatorID = creator.ID
	}

	id, err := s.docs.Insert(ctx, quiz)
	if err != nil {
		return domain.CustomQuiz{}, persistenceErr("save quiz", err)
	}
	quiz.ID = id
	return quiz, nil
}

// Get loads a quiz by id.
func (s *Store) Get(ctx context.Context, id string) (domain.CustomQuiz, error) {
	if strings.TrimSpace(id) == "" {
		return domain.CustomQuiz{}, domain.ErrQuizNotFound
	}
	quiz, err := s.docs.Get(ctx, id)
	if err != nil {
		return domain.CustomQuiz{}, persistenceErr("get quiz", err)
	}
	if quiz.Participants == nil {
		quiz.Participants = []domain.Participant{}
	}
	return quiz, nil
}

// RecordAttempt appends a participant to quiz id. The score must lie within
// [0, len(questions)]. Repeated attempts by the same user are kept as
// separate entries.
func (s *Store) RecordAttempt(ctx context.Context, id string, p domain.Participant) (domain.Participant, error) {
	if p.CompletedAt.IsZero() {
		p.CompletedAt = s.now().UTC()
	}
	if strings.TrimSpace(p.DisplayName) == "" {
		p.DisplayName = domain.AnonymousName
	}
	if p.Score < 0 {
		return domain.Participant{}, fmt.Errorf("%w: negative score", domain.ErrInvalidSettings)
	}
	quiz, err := s.docs.Get(ctx, id)
	if err != nil {
		return domain.Participant{}, persistenceErr("record attempt", err)
	}
	if p.Score > len(quiz.Questions) {
		return domain.Participant{}, fmt.Errorf("%w: score %d exceeds %d questions", domain.ErrInvalidSettings, p.Score, len(quiz.Questions))
	}
	if err := s.docs.AppendParticipant(ctx, id, p); err != nil {
		return domain.Participant{}, persistenceErr("record attempt", err)
	}
	return p, nil
}

// ListByCreator returns the quizzes authored by creatorID, newest first as
// ordered by the backend.
func (s *Store) ListByCreator(ctx context.Context, creatorID string) ([]domain.CustomQuiz, error) {
	if strings.TrimSpace(creatorID) == "" {
		return nil, domain.ErrUnauthenticated
	}
	quizzes, err := s.docs.ListByCreator(ctx, creatorID)
	if err != nil {
		return nil, persistenceErr("list quizzes", err)
	}
	return quizzes, nil
}

// Leaderboard loads quiz id and ranks its participants.
func (s *Store) Leaderboard(ctx context.Context, id, currentUserID string) (domain.Leaderboard, error) {
	quiz, err := s.Get(ctx, id)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return BuildLeaderboard(quiz, currentUserID, s.now().UTC()), nil
}

func persistenceErr(op string, err error) error {
	if errors.Is(err, domain.ErrQuizNotFound) || errors.Is(err, domain.ErrPersistenceUnavailable) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrPersistenceUnavailable, err)
}
