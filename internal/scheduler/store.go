package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/samber/lo"

	"article-video-gen/internal/model"
)

// RedisProcessedKey is the SET holding processed post ids.
const RedisProcessedKey = "article-video-gen:processed"

// ProcessedSet is the persisted processed set plus the time it was last
// cleared.
type ProcessedSet struct {
	IDs     []int64
	ResetAt time.Time
}

// ProcessedStore persists the processed set across restarts.
type ProcessedStore interface {
	Load(ctx context.Context) (ProcessedSet, error)
	Save(ctx context.Context, set ProcessedSet) error
	// Clear empties the set and records at as its reset time.
	Clear(ctx context.Context, at time.Time) error
}

// JSONStore is the slice of the object store the scheduler needs.
type JSONStore interface {
	ReadJSON(ctx context.Context, key string, out any) (bool, error)
	WriteJSON(ctx context.Context, key string, v any) error
}

// JSONProcessedStore keeps the processed set as one JSON object in the bucket.
type JSONProcessedStore struct {
	store JSONStore
	key   string
}

func NewJSONProcessedStore(store JSONStore, key string) *JSONProcessedStore {
	return &JSONProcessedStore{store: store, key: key}
}

func (s *JSONProcessedStore) Load(ctx context.Context) (ProcessedSet, error) {
	var idx model.ProcessedIndex
	found, err := s.store.ReadJSON(ctx, s.key, &idx)
	if err != nil {
		return ProcessedSet{}, fmt.Errorf("read %s: %w", s.key, err)
	}
	if !found {
		return ProcessedSet{}, nil
	}
	return ProcessedSet{IDs: idx.IDs, ResetAt: idx.ResetAt}, nil
}

func (s *JSONProcessedStore) Save(ctx context.Context, set ProcessedSet) error {
	idx := model.ProcessedIndex{UpdatedAt: time.Now(), ResetAt: set.ResetAt, IDs: set.IDs}
	if idx.IDs == nil {
		idx.IDs = []int64{}
	}
	if err := s.store.WriteJSON(ctx, s.key, &idx); err != nil {
		return fmt.Errorf("write %s: %w", s.key, err)
	}
	return nil
}

func (s *JSONProcessedStore) Clear(ctx context.Context, at time.Time) error {
	return s.Save(ctx, ProcessedSet{ResetAt: at})
}

// RedisProcessedStore keeps the processed set as a redis SET and its reset
// time, in unix milliseconds, under "<key>:reset_at".
type RedisProcessedStore struct {
	client   *redis.Client
	key      string
	resetKey string
}

func NewRedisProcessedStore(redisURL, key string) (*RedisProcessedStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisProcessedStore{client: client, key: key, resetKey: key + ":reset_at"}, nil
}

func (s *RedisProcessedStore) Close() error { return s.client.Close() }

func (s *RedisProcessedStore) Load(ctx context.Context) (ProcessedSet, error) {
	members, err := s.client.SMembers(ctx, s.key).Result()
	if err != nil && err != redis.Nil {
		return ProcessedSet{}, fmt.Errorf("redis smembers %s: %w", s.key, err)
	}
	set := ProcessedSet{IDs: make([]int64, 0, len(members))}
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		set.IDs = append(set.IDs, id)
	}

	ms, err := s.client.Get(ctx, s.resetKey).Int64()
	switch {
	case err == redis.Nil:
	case err != nil:
		return ProcessedSet{}, fmt.Errorf("redis get %s: %w", s.resetKey, err)
	default:
		set.ResetAt = time.UnixMilli(ms)
	}
	return set, nil
}

func (s *RedisProcessedStore) Save(ctx context.Context, set ProcessedSet) error {
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.key)
		if len(set.IDs) > 0 {
			p.SAdd(ctx, s.key, lo.ToAnySlice(set.IDs)...)
		}
		if !set.ResetAt.IsZero() {
			p.Set(ctx, s.resetKey, set.ResetAt.UnixMilli(), 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisProcessedStore) Clear(ctx context.Context, at time.Time) error {
	return s.Save(ctx, ProcessedSet{ResetAt: at})
}
