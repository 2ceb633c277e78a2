// Package setup turns practice quiz settings into the scope and limits used
// by a session.
package setup

import (
	"fmt"
	"strconv"
	"strings"

	"medquiz-service/internal/domain"
)

const (
	// WholeSyllabus is the subject that needs no chapter.
	WholeSyllabus = "Complete MBBS"
	// WholeSubject is the chapter that means "the entire subject".
	WholeSubject = "Complete Subject"
	// NoLimit is accepted for question counts and time limits.
	NoLimit = "No Limit"

	DefaultDifficulty = "medium"
)

var difficulties = map[string]bool{"easy": true, "medium": true, "hard": true}

// Raw is settings as they arrive from a form or query string.
type Raw struct {
	Subject       string
	Chapter       string
	Topic         string
	Difficulty    string
	QuestionCount string
	TimeLimit     string
}

// Parse normalises and validates r.
func Parse(r Raw) (domain.QuizSettings, error) {
	count, err := ParseLimit(r.QuestionCount)
	if err != nil {
		return domain.QuizSettings{}, fmt.Errorf("question count: %w", err)
	}
	limit, err := ParseLimit(r.TimeLimit)
	if err != nil {
		return domain.QuizSettings{}, fmt.Errorf("time limit: %w", err)
	}
	s := domain.QuizSettings{
		Subject:          strings.TrimSpace(r.Subject),
		Chapter:          strings.TrimSpace(r.Chapter),
		Topic:            strings.TrimSpace(r.Topic),
		Difficulty:       r.Difficulty,
		QuestionCount:    count,
		TimeLimitSeconds: limit,
	}
	return Normalize(s)
}

// Defaults fill settings the caller left out entirely. An explicit
// "No Limit" is kept as unlimited.
type Defaults struct {
	Difficulty       string
	QuestionCount    int
	TimeLimitSeconds int
}

// ParseWithDefaults is Parse after filling blank fields of r from d.
func ParseWithDefaults(r Raw, d Defaults) (domain.QuizSettings, error) {
	if strings.TrimSpace(r.QuestionCount) == "" && d.QuestionCount > 0 {
		r.QuestionCount = strconv.Itoa(d.QuestionCount)
	}
	if strings.TrimSpace(r.TimeLimit) == "" && d.TimeLimitSeconds > 0 {
		r.TimeLimit = strconv.Itoa(d.TimeLimitSeconds)
	}
	if strings.TrimSpace(r.Difficulty) == "" {
		r.Difficulty = d.Difficulty
	}
	return Parse(r)
}

// Normalize lower-cases the difficulty, applies its default and validates s.
func Normalize(s domain.QuizSettings) (domain.QuizSettings, error) {
	s.Difficulty = strings.ToLower(strings.TrimSpace(s.Difficulty))
	if s.Difficulty == "" {
		s.Difficulty = DefaultDifficulty
	}
	if err := Validate(s); err != nil {
		return domain.QuizSettings{}, err
	}
	return s, nil
}

// Validate checks the rules the setup form enforces.
func Validate(s domain.QuizSettings) error {
	if strings.TrimSpace(s.Subject) == "" {
		return fmt.Errorf("%w: subject is required", domain.ErrInvalidSettings)
	}
	if s.Subject != WholeSyllabus && strings.TrimSpace(s.Chapter) == "" {
		return fmt.Errorf("%w: chapter is required", domain.ErrInvalidSettings)
	}
	if s.Difficulty != "" && !difficulties[s.Difficulty] {
		return fmt.Errorf("%w: unknown difficulty %q", domain.ErrInvalidSettings, s.Difficulty)
	}
	if s.QuestionCount < 0 || s.TimeLimitSeconds < 0 {
		return fmt.Errorf("%w: limits must not be negative", domain.ErrInvalidSettings)
	}
	return nil
}

// Scope builds the subject/chapter/topic string sent to the question provider.
func Scope(s domain.QuizSettings) string {
	if s.Chapter == "" || s.Chapter == WholeSubject {
		return s.Subject
	}
	scope := s.Subject + " - " + s.Chapter
	if s.Topic != "" {
		scope += " - " + s.Topic
	}
	return scope
}

// ParseLimit reads "No Limit" (or empty) as 0 and otherwise a non-negative integer.
func ParseLimit(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, NoLimit) {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q is not a count", domain.ErrInvalidSettings, raw)
	}
	return n, nil
}

// FormatLimit is the inverse of ParseLimit.
func FormatLimit(n int) string {
	if n <= 0 {
		return NoLimit
	}
	return strconv.Itoa(n)
}
