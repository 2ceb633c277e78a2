package customquiz

import (
	"strings"

	"medquiz-service/internal/domain"
)

// ValidateDraft reports the first authoring defect in d, or nil. Quiz-level
// defects come first, then questions in order.
func ValidateDraft(d domain.QuizDraft) error {
	if errs := ValidateDraftAll(d); len(errs) > 0 {
		return errs.First()
	}
	return nil
}

// ValidateDraftAll collects every defect in d.
func ValidateDraftAll(d domain.QuizDraft) domain.ValidationErrors {
	var errs domain.ValidationErrors
	add := func(kind domain.ValidationKind, index int) {
		errs = append(errs, &domain.ValidationError{Kind: kind, Index: index})
	}

	if blank(d.Title) {
		add(domain.MissingTitle, -1)
	}
	if len(d.Questions) == 0 {
		add(domain.NoQuestions, -1)
	}
	if d.QuestionCount != 0 && d.QuestionCount != len(d.Questions) {
		add(domain.QuestionCountMismatch, -1)
	}
	if d.SecondsPerQuestion < 0 {
		add(domain.NegativeTimeLimit, -1)
	}

	for i, q := range d.Questions {
		if blank(q.Prompt) {
			add(domain.MissingQuestionText, i)
		}
		if len(q.Options) != domain.OptionCount {
			add(domain.WrongOptionCount, i)
		}
		for _, opt := range q.Options {
			if blank(opt) {
				add(domain.EmptyOption, i)
				break
			}
		}
		if blank(q.Explanation) {
			add(domain.MissingExplanation, i)
		}
		if !q.CorrectLabel.Valid() {
			add(domain.InvalidCorrectLabel, i)
		}
	}
	return errs
}

// Normalize trims the draft's text fields and upper-cases correct labels
// such as "b)" before validation.
func Normalize(d domain.QuizDraft) domain.QuizDraft {
	out := domain.QuizDraft{
		Title:              strings.TrimSpace(d.Title),
		QuestionCount:      d.QuestionCount,
		SecondsPerQuestion: d.SecondsPerQuestion,
		Questions:          make([]domain.Question, len(d.Questions)),
	}
	for i, q := range d.Questions {
		q = q.Clone()
		q.Prompt = strings.TrimSpace(q.Prompt)
		q.Explanation = strings.TrimSpace(q.Explanation)
		q.ImageURL = strings.TrimSpace(q.ImageURL)
		for j := range q.Options {
			q.Options[j] = strings.TrimSpace(q.Options[j])
		}
		if l, err := domain.ParseLabel(string(q.CorrectLabel)); err == nil {
			q.CorrectLabel = l
		}
		out.Questions[i] = q
	}
	return out
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
