package customquiz

import (
	"math"
	"sort"
	"time"

	"medquiz-service/internal/domain"
)

// BuildLeaderboard ranks the participants of quiz by score descending, then
// earliest completion. Entries for currentUserID are flagged.
func BuildLeaderboard(quiz domain.CustomQuiz, currentUserID string, now time.Time) domain.Leaderboard {
	total := len(quiz.Questions)
	participants := make([]domain.Participant, len(quiz.Participants))
	copy(participants, quiz.Participants)

	sort.SliceStable(participants, func(i, j int) bool {
		if participants[i].Score != participants[j].Score {
			return participants[i].Score > participants[j].Score
		}
		return participants[i].CompletedAt.Before(participants[j].CompletedAt)
	})

	entries := make([]domain.LeaderboardEntry, 0, len(participants))
	for i, p := range participants {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:          i + 1,
			UserID:        p.UserID,
			DisplayName:   p.DisplayName,
			Score:         p.Score,
			Total:         total,
			Percentage:    Percentage(p.Score, total),
			CompletedAt:   p.CompletedAt,
			IsCurrentUser: currentUserID != "" && p.UserID == currentUserID,
		})
	}

	return domain.Leaderboard{
		QuizID:    quiz.ID,
		Title:     quiz.Title,
		Total:     total,
		Entries:   entries,
		UpdatedAt: now,
	}
}

// Percentage is round(score/total*100), or 0 for an empty quiz.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(total) * 100))
}
