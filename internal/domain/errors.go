package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSessionNotFound is returned when a session id is not registered.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuizNotFound indicates an unknown custom quiz id.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrConfigurationNotFound indicates an unknown saved configuration.
	ErrConfigurationNotFound = errors.New("configuration not found")

	// ErrProviderUnavailable means the question service failed; the session stays in place.
	ErrProviderUnavailable = errors.New("question provider unavailable")
	// ErrDoubtServiceUnavailable means the doubt answer could not be produced.
	ErrDoubtServiceUnavailable = errors.New("doubt service unavailable")
	// ErrPersistenceUnavailable means the document store could not be reached.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")

	// ErrEmptyInput rejects blank doubt text before any call is made.
	ErrEmptyInput = errors.New("empty input")
	// ErrInvalidPhase rejects operations that do not apply to the current phase.
	ErrInvalidPhase = errors.New("operation not valid in current phase")
	// ErrInvalidLabel rejects answers that are not A-D.
	ErrInvalidLabel = errors.New("invalid option label")
	// ErrDoubtInFlight rejects a doubt while the previous one is unresolved.
	ErrDoubtInFlight = errors.New("a doubt is already being resolved")
	// ErrLoadInFlight rejects a load while a question request is outstanding.
	ErrLoadInFlight = errors.New("question request already in flight")
	// ErrInvalidSettings rejects unusable practice settings.
	ErrInvalidSettings = errors.New("invalid quiz settings")
	// ErrUnauthenticated is returned when an operation needs a signed-in user.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrNothingToSubmit means the session has no pending result.
	ErrNothingToSubmit = errors.New("no pending result to submit")

	// ErrValidationFailed is matched by every ValidationError.
	ErrValidationFailed = errors.New("validation failed")
)

// ValidationKind names the authoring defect.
type ValidationKind string

const (
	MissingTitle          ValidationKind = "MissingTitle"
	NoQuestions           ValidationKind = "NoQuestions"
	MissingQuestionText   ValidationKind = "MissingQuestionText"
	EmptyOption           ValidationKind = "EmptyOption"
	MissingExplanation    ValidationKind = "MissingExplanation"
	InvalidCorrectLabel   ValidationKind = "InvalidCorrectLabel"
	WrongOptionCount      ValidationKind = "WrongOptionCount"
	QuestionCountMismatch ValidationKind = "QuestionCountMismatch"
	NegativeTimeLimit     ValidationKind = "NegativeTimeLimit"
)

// ValidationError reports an authoring defect. Index is the 0-based question
// position, or -1 for quiz-level defects.
type ValidationError struct {
	Kind  ValidationKind `json:"kind"`
	Index int            `json:"index"`
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("validation failed: %s", e.Kind)
	}
	return fmt.Sprintf("validation failed: %s (question %d)", e.Kind, e.Index+1)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// ValidationErrors is the collect-all form of draft validation.
type ValidationErrors []*ValidationError

func (es ValidationErrors) Error() string {
	parts := make([]string, 0, len(es))
	for _, e := range es {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "; ")
}

func (es ValidationErrors) Is(target error) bool {
	return target == ErrValidationFailed && len(es) > 0
}

// First returns the first defect, or nil.
func (es ValidationErrors) First() *ValidationError {
	if len(es) == 0 {
		return nil
	}
	return es[0]
}
