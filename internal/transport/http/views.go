package http

import (
	"time"

	"medquiz-service/internal/domain"
)

// questionView is a question as shown to a quiz taker. The answer key and
// explanation are only filled in once they may be revealed.
type questionView struct {
	Prompt         string       `json:"prompt"`
	Options        []string     `json:"options"`
	LabeledOptions []string     `json:"labeledOptions"`
	ImageURL       string       `json:"imageUrl,omitempty"`
	Subject        string       `json:"subject,omitempty"`
	CorrectLabel   domain.Label `json:"correctLabel,omitempty"`
	Explanation    string       `json:"explanation,omitempty"`
}

func newQuestionView(q domain.Question, reveal bool) questionView {
	v := questionView{
		Prompt:         q.Prompt,
		Options:        append([]string(nil), q.Options...),
		LabeledOptions: q.LabeledOptions(),
		ImageURL:       q.ImageURL,
		Subject:        q.Subject,
	}
	if reveal {
		v.CorrectLabel = q.CorrectLabel
		v.Explanation = q.Explanation
	}
	return v
}

type stateView struct {
	SessionID       string              `json:"sessionId"`
	Kind            domain.SessionKind  `json:"kind"`
	QuizID          string              `json:"quizId,omitempty"`
	Title           string              `json:"title,omitempty"`
	Phase           domain.Phase        `json:"phase"`
	Question        *questionView       `json:"question,omitempty"`
	SelectedLabel   domain.Label        `json:"selectedLabel,omitempty"`
	Correct         *bool               `json:"correct,omitempty"`
	Score           int                 `json:"score"`
	QuestionIndex   int                 `json:"questionIndex"`
	QuestionCount   int                 `json:"questionCount"`
	Remaining       *int                `json:"remainingSeconds,omitempty"`
	RemainingClock  string              `json:"remainingClock,omitempty"`
	TimedOut        bool                `json:"timedOut"`
	ShowExplanation bool                `json:"explanationVisible"`
	Transcript      []domain.DoubtEntry `json:"doubtTranscript"`
	DoubtPending    bool                `json:"doubtPending"`
}

func newStateView(s domain.SessionState) stateView {
	v := stateView{
		SessionID:       s.SessionID,
		Kind:            s.Kind,
		QuizID:          s.QuizID,
		Title:           s.Title,
		Phase:           s.Phase,
		SelectedLabel:   s.SelectedLabel,
		Score:           s.Score,
		QuestionIndex:   s.QuestionIndex,
		QuestionCount:   s.QuestionCount,
		Remaining:       s.RemainingSeconds,
		RemainingClock:  s.RemainingClock(),
		TimedOut:        s.TimedOut,
		ShowExplanation: s.ExplanationVisible,
		Transcript:      s.DoubtTranscript,
		DoubtPending:    s.DoubtPending,
	}
	if v.Transcript == nil {
		v.Transcript = []domain.DoubtEntry{}
	}
	if q := s.CurrentQuestion; q != nil {
		qv := newQuestionView(*q, s.HasSelection() || s.TimedOut)
		v.Question = &qv
		if s.HasSelection() {
			correct := q.IsCorrect(s.SelectedLabel)
			v.Correct = &correct
		}
	}
	return v
}

// quizView is a custom quiz without its answer key, as served to takers.
type quizView struct {
	ID                 string         `json:"id"`
	Title              string         `json:"title"`
	CreatorName        string         `json:"creatorName"`
	QuestionCount      int            `json:"questionCount"`
	SecondsPerQuestion int            `json:"secondsPerQuestion"`
	Questions          []questionView `json:"questions,omitempty"`
	Participants       int            `json:"participantCount"`
	CreatedAt          time.Time      `json:"createdAt"`
	SharePath          string         `json:"sharePath"`
}

func newQuizView(q domain.CustomQuiz, withQuestions bool, sharePath string) quizView {
	v := quizView{
		ID:                 q.ID,
		Title:              q.Title,
		CreatorName:        q.CreatorName,
		QuestionCount:      q.QuestionCount,
		SecondsPerQuestion: q.SecondsPerQuestion,
		Participants:       len(q.Participants),
		CreatedAt:          q.CreatedAt,
		SharePath:          sharePath,
	}
	if withQuestions {
		v.Questions = make([]questionView, 0, len(q.Questions))
		for _, question := range q.Questions {
			v.Questions = append(v.Questions, newQuestionView(question, false))
		}
	}
	return v
}
