package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medquiz-service/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "medquiz.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleQuiz(creator string, createdAt time.Time) domain.CustomQuiz {
	return domain.CustomQuiz{
		CreatorID:     creator,
		CreatorName:   "Dr. Rao",
		Title:         "Biochemistry",
		QuestionCount: 1,
		Questions: []domain.Question{{
			Prompt:       "Rate-limiting enzyme of glycolysis?",
			Options:      []string{"Hexokinase", "PFK-1", "Pyruvate kinase", "Aldolase"},
			CorrectLabel: domain.LabelB,
			Explanation:  "Phosphofructokinase-1.",
			ImageURL:     "https://img.example/pfk.png",
		}},
		CreatedAt: createdAt,
	}
}

func TestDocumentStoreInsertAndGet(t *testing.T) {
	docs := openTestDB(t).Documents()
	ctx := context.Background()

	id, err := docs.Insert(ctx, sampleQuiz("author", time.Now().UTC()))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	quiz, err := docs.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, quiz.ID)
	assert.Equal(t, domain.LabelB, quiz.Questions[0].CorrectLabel)
	assert.Equal(t, "https://img.example/pfk.png", quiz.Questions[0].ImageURL)
	assert.Empty(t, quiz.Participants)

	_, err = docs.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrQuizNotFound)
}

func TestDocumentStoreConcurrentAppends(t *testing.T) {
	docs := openTestDB(t).Documents()
	ctx := context.Background()

	id, err := docs.Insert(ctx, sampleQuiz("author", time.Now().UTC()))
	require.NoError(t, err)

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- docs.AppendParticipant(ctx, id, domain.Participant{
				UserID:      fmt.Sprintf("u%d", i),
				DisplayName: fmt.Sprintf("User %d", i),
				Score:       i % 2,
				CompletedAt: time.Now().UTC(),
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	quiz, err := docs.Get(ctx, id)
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, p := range quiz.Participants {
		seen[p.UserID] = true
	}
	assert.Len(t, quiz.Participants, n)
	assert.Len(t, seen, n)

	assert.ErrorIs(t, docs.AppendParticipant(ctx, "missing", domain.Participant{UserID: "x"}), domain.ErrQuizNotFound)
}

func TestDocumentStoreListByCreator(t *testing.T) {
	docs := openTestDB(t).Documents()
	ctx := context.Background()
	base := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)

	older, err := docs.Insert(ctx, sampleQuiz("author", base))
	require.NoError(t, err)
	newer, err := docs.Insert(ctx, sampleQuiz("author", base.Add(time.Hour)))
	require.NoError(t, err)
	_, err = docs.Insert(ctx, sampleQuiz("", base))
	require.NoError(t, err)

	quizzes, err := docs.ListByCreator(ctx, "author")
	require.NoError(t, err)
	require.Len(t, quizzes, 2)
	assert.Equal(t, newer, quizzes[0].ID)
	assert.Equal(t, older, quizzes[1].ID)

	none, err := docs.ListByCreator(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestConfigurationStore(t *testing.T) {
	configs := openTestDB(t).Configurations()
	ctx := context.Background()
	base := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)

	first, err := configs.SaveConfiguration(ctx, domain.SavedConfiguration{
		UserID:    "u1",
		Settings:  domain.QuizSettings{Subject: "Anatomy", Chapter: "Thorax", Difficulty: "easy", QuestionCount: 10},
		CreatedAt: base,
	})
	require.NoError(t, err)
	second, err := configs.SaveConfiguration(ctx, domain.SavedConfiguration{
		UserID:    "u1",
		Settings:  domain.QuizSettings{Subject: "Complete MBBS", Difficulty: "hard", TimeLimitSeconds: 60},
		CreatedAt: base.Add(time.Minute),
	})
	require.NoError(t, err)

	list, err := configs.ListConfigurations(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.Equal(t, 60, list[0].Settings.TimeLimitSeconds)
	assert.True(t, list[1].CreatedAt.Equal(base))

	other, err := configs.ListConfigurations(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, other)
}
