package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"medquiz-service/internal/domain"
)

// QuestionProvider generates a question for a scope such as
// "Anatomy - Thorax" at the given difficulty.
type QuestionProvider interface {
	GenerateQuestion(ctx context.Context, scope, difficulty string) (domain.Question, error)
}

// DoubtRequest is everything the doubt service needs to answer a follow-up.
type DoubtRequest struct {
	Doubt        string
	Question     string
	Options      []string
	CorrectLabel domain.Label
	Explanation  string
}

// DoubtResolver answers a doubt about the current question.
type DoubtResolver interface {
	Resolve(ctx context.Context, req DoubtRequest) (string, error)
}

// QuestionSource supplies the question for a 1-based position.
type QuestionSource interface {
	Next(ctx context.Context, index int) (domain.Question, error)
}

// GeneratedSource asks a provider for a new question every time.
type GeneratedSource struct {
	Provider   QuestionProvider
	Scope      string
	Difficulty string
}

func (s GeneratedSource) Next(ctx context.Context, _ int) (domain.Question, error) {
	if s.Provider == nil {
		return domain.Question{}, domain.ErrProviderUnavailable
	}
	q, err := s.Provider.GenerateQuestion(ctx, s.Scope, s.Difficulty)
	if err != nil {
		if errors.Is(err, domain.ErrProviderUnavailable) {
			return domain.Question{}, err
		}
		return domain.Question{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	if err := checkGenerated(q); err != nil {
		return domain.Question{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	if q.Subject == "" {
		q.Subject = s.Scope
	}
	return q.Clone(), nil
}

func checkGenerated(q domain.Question) error {
	if strings.TrimSpace(q.Prompt) == "" {
		return errors.New("generated question has no prompt")
	}
	if len(q.Options) != domain.OptionCount {
		return fmt.Errorf("generated question has %d options", len(q.Options))
	}
	if !q.CorrectLabel.Valid() {
		return fmt.Errorf("generated question has correct label %q", q.CorrectLabel)
	}
	return nil
}

// FixedSource serves the questions of an authored quiz in order.
type FixedSource struct {
	questions []domain.Question
}

func NewFixedSource(questions []domain.Question) FixedSource {
	out := make([]domain.Question, len(questions))
	for i, q := range questions {
		out[i] = q.Clone()
	}
	return FixedSource{questions: out}
}

func (s FixedSource) Next(_ context.Context, index int) (domain.Question, error) {
	if index < 1 || index > len(s.questions) {
		return domain.Question{}, fmt.Errorf("%w: question %d of %d", domain.ErrInvalidPhase, index, len(s.questions))
	}
	return s.questions[index-1].Clone(), nil
}

// Len reports how many questions the source holds.
func (s FixedSource) Len() int {
	return len(s.questions)
}
