package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"medquiz-service/internal/customquiz"
	"medquiz-service/internal/domain"
)

// QuizRepository caches quizzes with TTL to avoid repeated store hits. It
// wraps a customquiz.DocumentStore and drops the cached copy whenever a
// participant is appended. A fill that raced with an append is not cached.
type QuizRepository struct {
	customquiz.DocumentStore
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedQuiz
	// versions counts invalidations per id.
	versions map[string]uint64
}

type cachedQuiz struct {
	quiz      domain.CustomQuiz
	expiresAt time.Time
}

func NewQuizRepository(store customquiz.DocumentStore, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		DocumentStore: store,
		ttl:           ttl,
		clock:         time.Now,
		rnd:           rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:         make(map[string]cachedQuiz),
		versions:      make(map[string]uint64),
	}
}

func (r *QuizRepository) Get(ctx context.Context, id string) (domain.CustomQuiz, error) {
	if quiz, ok := r.cached(id); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(id, func() (interface{}, error) {
		if quiz, ok := r.cached(id); ok {
			return quiz, nil
		}

		now := r.clock()
		r.mu.RLock()
		version := r.versions[id]
		r.mu.RUnlock()

		quiz, err := r.DocumentStore.Get(ctx, id)
		if err != nil {
			return domain.CustomQuiz{}, err
		}

		r.mu.Lock()
		if r.versions[id] == version {
			r.cache[id] = cachedQuiz{
				quiz:      quiz,
				expiresAt: now.Add(r.ttlWithJitterLocked()),
			}
		}
		r.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.CustomQuiz{}, err
	}
	return cloneQuiz(result.(domain.CustomQuiz)), nil
}

func (r *QuizRepository) AppendParticipant(ctx context.Context, id string, p domain.Participant) error {
	err := r.DocumentStore.AppendParticipant(ctx, id, p)
	r.Invalidate(id)
	return err
}

// Invalidate drops the cached copy of id.
func (r *QuizRepository) Invalidate(id string) {
	r.mu.Lock()
	delete(r.cache, id)
	r.versions[id]++
	r.mu.Unlock()
}

func (r *QuizRepository) cached(id string) (domain.CustomQuiz, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.cache[id]; ok && entry.expiresAt.After(now) {
		return cloneQuiz(entry.quiz), true
	}
	return domain.CustomQuiz{}, false
}

func (r *QuizRepository) ttlWithJitterLocked() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
