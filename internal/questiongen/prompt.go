package questiongen

import (
	"fmt"
	"strings"

	"medquiz-service/internal/session"
)

const questionSystemPrompt = `You write multiple choice questions for medical students preparing for MBBS university and entrance exams.

Rules:
- Write one question that fits the given scope and difficulty.
- Give exactly four options. Exactly one is correct. Distractors should be plausible and reflect common misconceptions.
- Do not prefix options with letters; labels are assigned from position.
- The explanation should justify the correct option and briefly address the distractors.
- Use standard textbook facts. Do not invent drug doses or statistics.`

const doubtSystemPrompt = `You are a patient medical tutor. A student has just answered a multiple choice question and has a follow-up doubt.

Rules:
- Answer the doubt directly in a few short paragraphs.
- Stay consistent with the stated correct answer and explanation.
- If the doubt is unrelated to the question, answer briefly and steer back to the topic.
- Reply in plain text without markdown headings.`

var difficultyGuidance = map[string]string{
	"easy":   "recall of a single core fact",
	"medium": "application of a concept to a short clinical or experimental scenario",
	"hard":   "multi-step reasoning or integration across topics, at the level of competitive entrance exams",
}

func buildQuestionMessage(scope, difficulty string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scope: %s\n", scope)
	fmt.Fprintf(&b, "Difficulty: %s\n", difficulty)
	if guide, ok := difficultyGuidance[difficulty]; ok {
		fmt.Fprintf(&b, "Difficulty means: %s\n", guide)
	}
	return b.String()
}

func buildDoubtMessage(req session.DoubtRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", req.Question)
	b.WriteString("Options:\n")
	for _, opt := range req.Options {
		fmt.Fprintf(&b, "%s\n", opt)
	}
	fmt.Fprintf(&b, "\nCorrect answer: %s\n", req.CorrectLabel)
	fmt.Fprintf(&b, "Explanation: %s\n\n", req.Explanation)
	fmt.Fprintf(&b, "Student's doubt: %s\n", req.Doubt)
	return b.String()
}
