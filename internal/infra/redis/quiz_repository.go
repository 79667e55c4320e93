package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
)

// QuizLoader fetches quiz content from a backing store (backend API, Postgres catalogue).
type QuizLoader = memory.QuizLoader

// QuizRepository caches quiz content in Redis and falls back to a loader on miss.
// Content is stored as JSON: SET quiz:{quizID}:content {json} EX ttl
type QuizRepository struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group

	loadTimeout time.Duration

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client:      client,
		loader:      loader,
		ttl:         ttl,
		loadTimeout: memory.DefaultLoadTimeout,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.cached(ctx, quizID); ok {
		return quiz, nil
	}

	led := false
	ch := r.sf.DoChan(quizID, func() (interface{}, error) {
		led = true
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.loadTimeout)
		defer cancel()
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.cached(loadCtx, quizID); ok {
			return quiz, nil
		}
		return r.fetch(loadCtx, quizID)
	})

	select {
	case <-ctx.Done():
		return domain.Quiz{}, ctx.Err()
	case res := <-ch:
		if res.Err == nil {
			return res.Val.(domain.Quiz), nil
		}
		if led {
			return domain.Quiz{}, res.Err
		}
		// The leader's error may come from its own credentials; retry as ourselves.
		return r.fetch(ctx, quizID)
	}
}

func (r *QuizRepository) fetch(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := r.loader.LoadQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if data, err := json.Marshal(quiz); err == nil {
		// best effort: a failed write only costs a reload
		_ = r.client.Set(ctx, r.contentKey(quizID), data, r.ttlWithJitter()).Err()
	}
	return quiz, nil
}

// Invalidate removes the cached copy of a quiz.
func (r *QuizRepository) Invalidate(ctx context.Context, quizID string) error {
	return r.client.Del(ctx, r.contentKey(quizID)).Err()
}

func (r *QuizRepository) cached(ctx context.Context, quizID string) (domain.Quiz, bool) {
	raw, err := r.client.Get(ctx, r.contentKey(quizID)).Bytes()
	if err != nil {
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil || quiz.ID != quizID {
		return domain.Quiz{}, false
	}
	return quiz, true
}

func (r *QuizRepository) contentKey(quizID string) string {
	return "quiz:" + quizID + ":content"
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
