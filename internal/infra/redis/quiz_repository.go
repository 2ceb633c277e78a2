package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"medquiz-service/internal/customquiz"
	"medquiz-service/internal/domain"
)

// QuizRepository is a read-through Redis cache in front of a
// customquiz.DocumentStore. Each quiz is stored as one JSON document:
//
//	SET quiz:{quizID}:doc {json} EX ttl
//	INCR quiz:{quizID}:ver
//
// Appending a participant bumps the version and deletes the cached document.
// A fill is written under WATCH on the version key and dropped when the
// version moved while the store was being read.
var errStaleFill = errors.New("quiz changed while loading")

type QuizRepository struct {
	customquiz.DocumentStore
	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuizRepository(client *redis.Client, store customquiz.DocumentStore, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		DocumentStore: store,
		client:        client,
		ttl:           ttl,
		rnd:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) Get(ctx context.Context, id string) (domain.CustomQuiz, error) {
	if quiz, ok := r.cached(ctx, id); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(id, func() (interface{}, error) {
		// Re-check cache in case another caller filled it.
		if quiz, ok := r.cached(ctx, id); ok {
			return quiz, nil
		}

		version, verErr := r.version(ctx, id)
		quiz, err := r.DocumentStore.Get(ctx, id)
		if err != nil {
			return domain.CustomQuiz{}, err
		}
		if verErr != nil {
			glog.Warningf("redis: read version of quiz %s: %v", id, verErr)
			return quiz, nil
		}
		r.fill(ctx, id, version, quiz)
		return quiz, nil
	})
	if err != nil {
		return domain.CustomQuiz{}, err
	}
	return result.(domain.CustomQuiz), nil
}

func (r *QuizRepository) AppendParticipant(ctx context.Context, id string, p domain.Participant) error {
	err := r.DocumentStore.AppendParticipant(ctx, id, p)
	r.Invalidate(ctx, id)
	return err
}

// Invalidate drops the cached document of id and bumps its version so that
// in-flight fills are discarded.
func (r *QuizRepository) Invalidate(ctx context.Context, id string) {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, r.verKey(id))
		pipe.Del(ctx, r.docKey(id))
		return nil
	})
	if err != nil {
		glog.Warningf("redis: invalidate quiz %s: %v", id, err)
	}
}

func (r *QuizRepository) version(ctx context.Context, id string) (int64, error) {
	v, err := r.client.Get(ctx, r.verKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// fill caches quiz unless the version of id is no longer version.
func (r *QuizRepository) fill(ctx context.Context, id string, version int64, quiz domain.CustomQuiz) {
	raw, err := json.Marshal(quiz)
	if err != nil {
		return
	}
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, r.verKey(id)).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.docKey(id), raw, r.ttlWithJitter())
			return nil
		})
		return err
	}, r.verKey(id))
	switch {
	case err == nil:
	case errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		glog.V(2).Infof("redis: skip stale fill of quiz %s", id)
	default:
		glog.Warningf("redis: cache quiz %s: %v", id, err)
	}
}

// cached reads the cached document. Redis failures count as a miss so the
// backing store keeps serving reads.
func (r *QuizRepository) cached(ctx context.Context, id string) (domain.CustomQuiz, bool) {
	raw, err := r.client.Get(ctx, r.docKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			glog.Warningf("redis: read quiz %s: %v", id, err)
		}
		return domain.CustomQuiz{}, false
	}
	var quiz domain.CustomQuiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		glog.Warningf("redis: discard corrupt cache entry for quiz %s: %v", id, err)
		return domain.CustomQuiz{}, false
	}
	return quiz, true
}

func (r *QuizRepository) docKey(id string) string {
	return "quiz:" + id + ":doc"
}

func (r *QuizRepository) verKey(id string) string {
	return "quiz:" + id + ":ver"
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
