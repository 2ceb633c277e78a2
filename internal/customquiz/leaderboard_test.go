package customquiz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medquiz-service/internal/domain"
)

func TestBuildLeaderboardOrdering(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Minute)
	t2 := t0.Add(2 * time.Minute)

	quiz := domain.CustomQuiz{
		ID:        "quiz-1",
		Title:     "Ten questions",
		Questions: make([]domain.Question, 10),
		Participants: []domain.Participant{
			{UserID: "a", DisplayName: "A", Score: 8, CompletedAt: t1},
			{UserID: "b", DisplayName: "B", Score: 9, CompletedAt: t2},
			{UserID: "c", DisplayName: "C", Score: 9, CompletedAt: t0},
		},
	}

	lb := BuildLeaderboard(quiz, "b", t2)
	require.Len(t, lb.Entries, 3)

	assert.Equal(t, "c", lb.Entries[0].UserID)
	assert.Equal(t, "b", lb.Entries[1].UserID)
	assert.Equal(t, "a", lb.Entries[2].UserID)
	for i, e := range lb.Entries {
		assert.Equal(t, i+1, e.Rank)
		assert.Equal(t, 10, e.Total)
	}
	assert.Equal(t, 90, lb.Entries[0].Percentage)
	assert.Equal(t, 80, lb.Entries[2].Percentage)
	assert.True(t, lb.Entries[1].IsCurrentUser)
	assert.False(t, lb.Entries[0].IsCurrentUser)

	// Input order is untouched.
	assert.Equal(t, "a", quiz.Participants[0].UserID)
}

func TestBuildLeaderboardEmpty(t *testing.T) {
	lb := BuildLeaderboard(domain.CustomQuiz{ID: "q", Questions: make([]domain.Question, 3)}, "", time.Now())
	assert.Empty(t, lb.Entries)
	assert.Equal(t, 3, lb.Total)
}

func TestPercentageRounds(t *testing.T) {
	assert.Equal(t, 67, Percentage(2, 3))
	assert.Equal(t, 33, Percentage(1, 3))
	assert.Equal(t, 0, Percentage(5, 0))
}
