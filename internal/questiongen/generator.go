// Package questiongen implements question generation and doubt answering on
// top of an llm.Provider.
package questiongen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"medquiz-service/internal/domain"
	"medquiz-service/internal/llm"
	"medquiz-service/internal/session"
)

// Config bounds model requests.
type Config struct {
	QuestionMaxTokens int
	DoubtMaxTokens    int
	Temperature       float64
	// Timeout applies to each request; 0 leaves the caller's deadline.
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		QuestionMaxTokens: 800,
		DoubtMaxTokens:    600,
		Temperature:       0.7,
		Timeout:           30 * time.Second,
	}
}

// Generator is a session.QuestionProvider and session.DoubtResolver.
type Generator struct {
	provider llm.Provider
	config   Config
}

func New(provider llm.Provider, cfg Config) *Generator {
	return &Generator{provider: provider, config: cfg}
}

type questionOutput struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectLabel string   `json:"correct_label"`
	Explanation  string   `json:"explanation"`
}

// GenerateQuestion asks the model for one question. Every failure, including
// malformed output, is reported as domain.ErrProviderUnavailable.
func (g *Generator) GenerateQuestion(ctx context.Context, scope, difficulty string) (domain.Question, error) {
	ctx, cancel := g.withTimeout(llm.WithPurpose(ctx, "question"))
	defer cancel()

	resp, err := g.provider.Generate(ctx, llm.Request{
		System:      questionSystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: buildQuestionMessage(scope, difficulty)}},
		Schema:      QuestionSchema,
		MaxTokens:   g.config.QuestionMaxTokens,
		Temperature: g.config.Temperature,
	})
	if err != nil {
		return domain.Question{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}

	var out questionOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return domain.Question{}, fmt.Errorf("%w: parse question: %v", domain.ErrProviderUnavailable, err)
	}
	q, err := out.toQuestion(scope)
	if err != nil {
		return domain.Question{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	return q, nil
}

func (o questionOutput) toQuestion(scope string) (domain.Question, error) {
	if strings.TrimSpace(o.Question) == "" {
		return domain.Question{}, errors.New("empty question text")
	}
	if len(o.Options) != domain.OptionCount {
		return domain.Question{}, fmt.Errorf("got %d options", len(o.Options))
	}
	label, err := domain.ParseLabel(o.CorrectLabel)
	if err != nil {
		return domain.Question{}, err
	}
	options := make([]string, len(o.Options))
	for i, opt := range o.Options {
		options[i] = stripLabel(opt)
		if options[i] == "" {
			return domain.Question{}, fmt.Errorf("option %d is empty", i+1)
		}
	}
	return domain.Question{
		Prompt:       strings.TrimSpace(o.Question),
		Options:      options,
		CorrectLabel: label,
		Explanation:  strings.TrimSpace(o.Explanation),
		Subject:      scope,
	}, nil
}

// Resolve answers a doubt. Failures are reported as
// domain.ErrDoubtServiceUnavailable.
func (g *Generator) Resolve(ctx context.Context, req session.DoubtRequest) (string, error) {
	ctx, cancel := g.withTimeout(llm.WithPurpose(ctx, "doubt"))
	defer cancel()

	resp, err := g.provider.Generate(ctx, llm.Request{
		System:      doubtSystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: buildDoubtMessage(req)}},
		MaxTokens:   g.config.DoubtMaxTokens,
		Temperature: g.config.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDoubtServiceUnavailable, err)
	}
	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		return "", fmt.Errorf("%w: empty answer", domain.ErrDoubtServiceUnavailable)
	}
	return answer, nil
}

func (g *Generator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.config.Timeout)
}

// stripLabel removes a leading "A) " or "B. " that models add despite the
// instructions.
func stripLabel(opt string) string {
	s := strings.TrimSpace(opt)
	if len(s) >= 2 && (s[1] == ')' || s[1] == '.') {
		if domain.Label(strings.ToUpper(s[:1])).Valid() {
			s = strings.TrimSpace(s[2:])
		}
	}
	return s
}
