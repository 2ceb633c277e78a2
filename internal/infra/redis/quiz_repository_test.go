package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"medquiz-service/internal/customquiz"
	"medquiz-service/internal/domain"
	"medquiz-service/internal/infra/memory"
)

func TestQuizRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := &countingStore{DocumentStore: memory.NewDocumentStore()}
	id := insertSample(t, store)
	repo := NewQuizRepository(newClient(mr), store, time.Minute)

	quiz, err := repo.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if quiz.Title != "Microbiology" || len(quiz.Questions) != 1 {
		t.Fatalf("unexpected quiz %+v", quiz)
	}
	if store.getCalls() != 1 {
		t.Fatalf("expected store called once, got %d", store.getCalls())
	}
	if !mr.Exists("quiz:" + id + ":doc") {
		t.Fatalf("expected cached document key")
	}
	if ttl := mr.TTL("quiz:" + id + ":doc"); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("expected ttl within jitter bounds, got %s", ttl)
	}

	// Second call should hit cache, store not called again.
	cached, err := repo.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("cached get: %v", err)
	}
	if store.getCalls() != 1 {
		t.Fatalf("expected cache hit, store calls=%d", store.getCalls())
	}
	if cached.Questions[0].CorrectLabel != domain.LabelC {
		t.Fatalf("cached copy lost the answer key: %+v", cached.Questions[0])
	}
}

func TestQuizRepositoryInvalidatesOnAppend(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := &countingStore{DocumentStore: memory.NewDocumentStore()}
	id := insertSample(t, store)
	repo := NewQuizRepository(newClient(mr), store, time.Minute)
	ctx := context.Background()

	if _, err := repo.Get(ctx, id); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if err := repo.AppendParticipant(ctx, id, domain.Participant{UserID: "u1", DisplayName: "Asha", Score: 1}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if mr.Exists("quiz:" + id + ":doc") {
		t.Fatalf("expected cache entry to be dropped after append")
	}

	quiz, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("get after append: %v", err)
	}
	if len(quiz.Participants) != 1 || store.getCalls() != 2 {
		t.Fatalf("expected reload with participant, got %d participants after %d loads", len(quiz.Participants), store.getCalls())
	}
}

func TestQuizRepositoryDropsFillRacingAppend(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := &gatedStore{DocumentStore: memory.NewDocumentStore(), read: make(chan struct{}), release: make(chan struct{})}
	id := insertSample(t, store)
	repo := NewQuizRepository(newClient(mr), store, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := repo.Get(ctx, id); err != nil {
			t.Errorf("racing get: %v", err)
		}
	}()

	<-store.read
	if err := repo.AppendParticipant(ctx, id, domain.Participant{UserID: "u1", DisplayName: "Asha", Score: 1}); err != nil {
		t.Fatalf("append: %v", err)
	}
	close(store.release)
	wg.Wait()

	if mr.Exists("quiz:" + id + ":doc") {
		t.Fatalf("stale fill must not be cached")
	}
	quiz, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("get after append: %v", err)
	}
	if len(quiz.Participants) != 1 {
		t.Fatalf("expected the recorded attempt, got %d participants", len(quiz.Participants))
	}
}

func TestQuizRepositoryFallsBackWhenRedisIsDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := newClient(mr)
	mr.Close()

	store := &countingStore{DocumentStore: memory.NewDocumentStore()}
	id := insertSample(t, store)
	repo := NewQuizRepository(client, store, time.Minute)

	if _, err := repo.Get(context.Background(), id); err != nil {
		t.Fatalf("expected store fallback, got %v", err)
	}
}

func TestQuizRepositoryNotFound(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	repo := NewQuizRepository(newClient(mr), memory.NewDocumentStore(), time.Minute)
	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

type countingStore struct {
	*memory.DocumentStore
	mu    sync.Mutex
	calls int
}

func (s *countingStore) Get(ctx context.Context, id string) (domain.CustomQuiz, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.DocumentStore.Get(ctx, id)
}

func (s *countingStore) getCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func insertSample(t *testing.T, store customquiz.DocumentStore) string {
	t.Helper()
	id, err := store.Insert(context.Background(), domain.CustomQuiz{
		Title:         "Microbiology",
		CreatorName:   "Dr. Rao",
		QuestionCount: 1,
		Questions: []domain.Question{{
			Prompt:       "Gram-negative diplococcus causing meningitis?",
			Options:      []string{"S. pneumoniae", "H. influenzae", "N. meningitidis", "L. monocytogenes"},
			CorrectLabel: domain.LabelC,
			Explanation:  "Neisseria meningitidis.",
		}},
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return id
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}

// gatedStore pauses the first Get after reading the document.
type gatedStore struct {
	*memory.DocumentStore
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (s *gatedStore) Get(ctx context.Context, id string) (domain.CustomQuiz, error) {
	quiz, err := s.DocumentStore.Get(ctx, id)
	s.once.Do(func() {
		close(s.read)
		<-s.release
	})
	return quiz, err
}
