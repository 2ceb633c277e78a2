package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"medquiz-service/internal/domain"
)

func TestQuizRepositoryCaches(t *testing.T) {
	store := &countingStore{DocumentStore: NewDocumentStore()}
	repo := NewQuizRepository(store, time.Minute)
	ctx := context.Background()

	id, err := repo.Insert(ctx, sampleQuiz("creator-1", time.Now()))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if _, err := repo.Get(ctx, id); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if store.gets != 1 {
		t.Fatalf("expected store once, got %d", store.gets)
	}

	if _, err := repo.Get(ctx, id); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if store.gets != 1 {
		t.Fatalf("expected cache hit, store calls %d", store.gets)
	}
}

func TestQuizRepositoryInvalidatesOnAppend(t *testing.T) {
	store := &countingStore{DocumentStore: NewDocumentStore()}
	repo := NewQuizRepository(store, time.Minute)
	ctx := context.Background()

	id, _ := repo.Insert(ctx, sampleQuiz("creator-1", time.Now()))
	if _, err := repo.Get(ctx, id); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if err := repo.AppendParticipant(ctx, id, domain.Participant{UserID: "u1", Score: 2}); err != nil {
		t.Fatalf("append: %v", err)
	}

	quiz, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("get after append: %v", err)
	}
	if len(quiz.Participants) != 1 {
		t.Fatalf("expected fresh copy with 1 participant, got %d", len(quiz.Participants))
	}
	if store.gets != 2 {
		t.Fatalf("expected reload after append, store calls %d", store.gets)
	}
}

func TestQuizRepositoryExpires(t *testing.T) {
	store := &countingStore{DocumentStore: NewDocumentStore()}
	repo := NewQuizRepository(store, time.Minute)
	now := time.Now()
	repo.clock = func() time.Time { return now }
	ctx := context.Background()

	id, _ := repo.Insert(ctx, sampleQuiz("creator-1", now))
	_, _ = repo.Get(ctx, id)
	now = now.Add(2 * time.Minute)
	_, _ = repo.Get(ctx, id)
	if store.gets != 2 {
		t.Fatalf("expected reload after ttl, store calls %d", store.gets)
	}
}

type countingStore struct {
	*DocumentStore
	gets int
}

func (s *countingStore) Get(ctx context.Context, id string) (domain.CustomQuiz, error) {
	s.gets++
	return s.DocumentStore.Get(ctx, id)
}

func TestQuizRepositoryDropsFillRacingAppend(t *testing.T) {
	store := &gatedStore{DocumentStore: NewDocumentStore(), read: make(chan struct{}), release: make(chan struct{})}
	repo := NewQuizRepository(store, time.Minute)
	ctx := context.Background()

	id, _ := repo.Insert(ctx, sampleQuiz("creator-1", time.Now()))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := repo.Get(ctx, id); err != nil {
			t.Errorf("racing get: %v", err)
		}
	}()

	// The fill has read the document without participants; record an attempt
	// before it reaches the cache.
	<-store.read
	if err := repo.AppendParticipant(ctx, id, domain.Participant{UserID: "u1", Score: 1}); err != nil {
		t.Fatalf("append: %v", err)
	}
	close(store.release)
	wg.Wait()

	quiz, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("get after append: %v", err)
	}
	if len(quiz.Participants) != 1 {
		t.Fatalf("expected the recorded attempt, got %d participants", len(quiz.Participants))
	}
}

// gatedStore pauses the first Get after reading the document.
type gatedStore struct {
	*DocumentStore
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
