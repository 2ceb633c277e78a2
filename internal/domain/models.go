package domain

import (
	"fmt"
	"strings"
	"time"
)

// OptionCount is the number of choices every question carries.
const OptionCount = 4

// AnonymousName is shown for users the identity service could not resolve.
const AnonymousName = "Anonymous User"

// Label identifies an answer option by its position (A is the first option).
type Label string

const (
	LabelA Label = "A"
	LabelB Label = "B"
	LabelC Label = "C"
	LabelD Label = "D"
)

// Labels lists the option labels in positional order.
var Labels = [OptionCount]Label{LabelA, LabelB, LabelC, LabelD}

// LabelAt returns the label for a 0-based option position.
func LabelAt(i int) (Label, bool) {
	if i < 0 || i >= OptionCount {
		return "", false
	}
	return Labels[i], true
}

// Index returns the 0-based option position of l, or -1 when l is not a label.
func (l Label) Index() int {
	for i, candidate := range Labels {
		if candidate == l {
			return i
		}
	}
	return -1
}

// Valid reports whether l is one of A-D.
func (l Label) Valid() bool {
	return l.Index() >= 0
}

// ParseLabel accepts "b", " B ", "B)" or "B) text" and returns LabelB.
func ParseLabel(raw string) (Label, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrInvalidLabel
	}
	l := Label(strings.ToUpper(s[:1]))
	if !l.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidLabel, raw)
	}
	if len(s) > 1 && s[1] != ')' && s[1] != '.' && s[1] != ' ' {
		return "", fmt.Errorf("%w: %q", ErrInvalidLabel, raw)
	}
	return l, nil
}

// Question is a four-option multiple choice question. It is never mutated
// after being handed to a session.
type Question struct {
	Prompt       string   `json:"prompt" yaml:"prompt"`
	Options      []string `json:"options" yaml:"options"`
	CorrectLabel Label    `json:"correctLabel" yaml:"correctLabel"`
	Explanation  string   `json:"explanation" yaml:"explanation"`
	// ImageURL is empty when the question has no image.
	ImageURL string `json:"imageUrl,omitempty" yaml:"imageUrl,omitempty"`
	Subject  string `json:"subject,omitempty" yaml:"subject,omitempty"`
}

// HasImage reports whether an image reference is attached.
func (q Question) HasImage() bool {
	return q.ImageURL != ""
}

// Option returns the text of the option carrying label l.
func (q Question) Option(l Label) (string, bool) {
	i := l.Index()
	if i < 0 || i >= len(q.Options) {
		return "", false
	}
	return q.Options[i], true
}

// LabeledOptions renders options as "A) text".
func (q Question) LabeledOptions() []string {
	out := make([]string, 0, len(q.Options))
	for i, opt := range q.Options {
		l, ok := LabelAt(i)
		if !ok {
			break
		}
		out = append(out, fmt.Sprintf("%s) %s", l, opt))
	}
	return out
}

// IsCorrect reports whether l is the correct label.
func (q Question) IsCorrect(l Label) bool {
	return l != "" && l == q.CorrectLabel
}

// Clone returns a copy that shares no slices with q.
func (q Question) Clone() Question {
	out := q
	out.Options = append([]string(nil), q.Options...)
	return out
}

// Phase is the per-question state of a session.
type Phase string

const (
	PhaseLoading   Phase = "loading"
	PhasePresented Phase = "presented"
	PhaseAnswered  Phase = "answered"
	PhaseComplete  Phase = "complete"
)

// SessionKind distinguishes generated practice sessions from authored quiz attempts.
type SessionKind string

const (
	KindPractice SessionKind = "practice"
	KindCustom   SessionKind = "custom"
)

// DoubtRole marks who wrote a transcript entry.
type DoubtRole string

const (
	RoleDoubt  DoubtRole = "doubt"
	RoleAnswer DoubtRole = "answer"
)

// DoubtEntry is one line of the per-question doubt transcript.
type DoubtEntry struct {
	Role DoubtRole `json:"role"`
	Text string    `json:"text"`
}

// SessionState is the observable state of one quiz session.
type SessionState struct {
	SessionID string      `json:"sessionId"`
	Kind      SessionKind `json:"kind"`
	QuizID    string      `json:"quizId,omitempty"`
	Title     string      `json:"title,omitempty"`

	Phase           Phase     `json:"phase"`
	CurrentQuestion *Question `json:"currentQuestion,omitempty"`
	// SelectedLabel is empty until an answer has been locked in.
	SelectedLabel Label `json:"selectedLabel,omitempty"`
	Score         int   `json:"score"`
	QuestionIndex int   `json:"questionIndex"`
	// QuestionCount is 0 for unlimited sessions.
	QuestionCount int `json:"questionCount"`

	// RemainingSeconds is nil when the session has no time limit.
	RemainingSeconds   *int `json:"remainingSeconds,omitempty"`
	TimedOut           bool `json:"timedOut"`
	ExplanationVisible bool `json:"explanationVisible"`

	DoubtTranscript []DoubtEntry `json:"doubtTranscript"`
	DoubtPending    bool         `json:"doubtPending"`

	AdEventCounter int  `json:"adEventCounter"`
	NativeAdShown  bool `json:"nativeAdShown"`
}

// HasSelection reports whether the current question has been answered.
func (s SessionState) HasSelection() bool {
	return s.SelectedLabel != ""
}

// RemainingClock renders the remaining time as m:ss, or "" without a limit.
func (s SessionState) RemainingClock() string {
	if s.RemainingSeconds == nil {
		return ""
	}
	return FormatClock(*s.RemainingSeconds)
}

// FormatClock renders seconds as m:ss.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// User is the identity attached to a request.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Anonymous bool   `json:"anonymous"`
}

// Participant is one completed attempt at a custom quiz.
type Participant struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Score       int       `json:"score"`
	CompletedAt time.Time `json:"completedAt"`
}

// CustomQuiz is a user-authored quiz that can be shared and attempted.
type CustomQuiz struct {
	ID          string `json:"id"`
	CreatorID   string `json:"creatorId,omitempty"`
	CreatorName string `json:"creatorName"`
	Title       string `json:"title"`
	// QuestionCount always equals len(Questions) for persisted quizzes.
	QuestionCount int `json:"questionCount"`
	// SecondsPerQuestion is 0 when answers are not timed.
	SecondsPerQuestion int           `json:"secondsPerQuestion"`
	Questions          []Question    `json:"questions"`
	CreatedAt          time.Time     `json:"createdAt"`
	Participants       []Participant `json:"participants"`
}

// QuizDraft is the authoring input for a custom quiz.
type QuizDraft struct {
	Title              string     `json:"title" yaml:"title"`
	QuestionCount      int        `json:"questionCount" yaml:"questionCount"`
	SecondsPerQuestion int        `json:"secondsPerQuestion" yaml:"secondsPerQuestion"`
	Questions          []Question `json:"questions" yaml:"questions"`
}

// LeaderboardEntry is a ranked view of a participant.
type LeaderboardEntry struct {
	Rank          int       `json:"rank"`
	UserID        string    `json:"userId"`
	DisplayName   string    `json:"displayName"`
	Score         int       `json:"score"`
	Total         int       `json:"total"`
	Percentage    int       `json:"percentage"`
	CompletedAt   time.Time `json:"completedAt"`
	IsCurrentUser bool      `json:"isCurrentUser"`
}

// Leaderboard captures the ordered scoreboard for a custom quiz.
type Leaderboard struct {
	QuizID    string             `json:"quizId"`
	Title     string             `json:"title"`
	Total     int                `json:"total"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// QuizSettings configures a generated practice session.
type QuizSettings struct {
	Subject    string `json:"subject" yaml:"subject"`
	Chapter    string `json:"chapter" yaml:"chapter"`
	Topic      string `json:"topic" yaml:"topic"`
	Difficulty string `json:"difficulty" yaml:"difficulty"`
	// QuestionCount is 0 for "No Limit".
	QuestionCount int `json:"questionCount" yaml:"questionCount"`
	// TimeLimitSeconds is 0 for "No Limit".
	TimeLimitSeconds int `json:"timeLimitSeconds" yaml:"timeLimitSeconds"`
}

// SavedConfiguration is a settings preset stored for a user.
type SavedConfiguration struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	Settings  QuizSettings `json:"settings"`
	CreatedAt time.Time    `json:"createdAt"`
}
