package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"punchcard/internal/model"
)

const (
	// usersKey is the set of known user identities.
	usersKey = "users"

	// casRetries bounds optimistic retries when a concurrent writer
	// touches the same document.
	casRetries = 5
)

func userKey(userID string) string {
	return "user:" + userID
}

// RedisStore keeps one JSON document per user. All read-modify-write
// operations run under WATCH so the whole document is compare-and-swapped;
// a concurrent writer forces a retry instead of an interleaved update.
type RedisStore struct {
	client *redis.Client
	logger *zerolog.Logger
}

// NewRedisStore constructs a store backed by the given client.
func NewRedisStore(client *redis.Client, logger *zerolog.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

// Ping reports whether the store is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Get(ctx context.Context, userID string) (*model.UserRecord, error) {
	raw, err := s.client.Get(ctx, userKey(userID)).Result()
	if err == redis.Nil {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", userKey(userID), err)
	}

	var rec model.UserRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", userKey(userID), err)
	}
	return &rec, nil
}

func (s *RedisStore) Set(ctx context.Context, userID string, rec *model.UserRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", userKey(userID), err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, userKey(userID), data, 0)
		pipe.SAdd(ctx, usersKey, userID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", userKey(userID), err)
	}
	return nil
}

func (s *RedisStore) UpdateFields(ctx context.Context, userID string, fields map[string]any) error {
	return s.mutate(ctx, userID, func(rec *model.UserRecord) error {
		return ApplyFields(rec, fields)
	})
}

func (s *RedisStore) ReplaceShifts(ctx context.Context, userID string, shifts []model.ShiftEntry, lastReset time.Time) error {
	return s.mutate(ctx, userID, func(rec *model.UserRecord) error {
		rec.Shifts = shifts
		rec.LastResetDate = lastReset
		return nil
	})
}

func (s *RedisStore) ListUsers(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, usersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// mutate applies fn to the user's document under WATCH and writes the result
// back in a transaction. Retries on concurrent modification.
func (s *RedisStore) mutate(ctx context.Context, userID string, fn func(*model.UserRecord) error) error {
	key := userKey(userID)

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if err == redis.Nil {
			return ErrRecordNotFound
		}
		if err != nil {
			return err
		}

		var rec model.UserRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		if err := fn(&rec); err != nil {
			return err
		}

		data, err := json.Marshal(&rec)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == redis.TxFailedErr {
			s.logger.Debug().Str("key", key).Int("attempt", attempt+1).Msg("concurrent write, retrying")
			continue
		}
		if err == ErrRecordNotFound {
			return err
		}
		if err != nil {
			return fmt.Errorf("update %s: %w", key, err)
		}
		return nil
	}
	return fmt.Errorf("update %s: %w", key, redis.TxFailedErr)
}
