package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/dkeye/Spaces/internal/core"
	"github.com/dkeye/Spaces/internal/domain"
)

const (
	redisKeyPrefix = "spaces:room:"
	redisIndexKey  = "spaces:rooms"
	redisTxRetries = 5
)

// RedisStore keeps one msgpack blob per room and a set of room ids.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func redisKey(id domain.RoomID) string { return redisKeyPrefix + string(id) }

func (s *RedisStore) Create(ctx context.Context, rec domain.DirectoryRecord) error {
	data, err := msgpack.Marshal(toStored(rec))
	if err != nil {
		return fmt.Errorf("encode room %s: %w", rec.RoomID, err)
	}
	ok, err := s.rdb.SetNX(ctx, redisKey(rec.RoomID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("create room %s: %w", rec.RoomID, err)
	}
	if !ok {
		return fmt.Errorf("room %s: %w", rec.RoomID, core.ErrRoomExists)
	}
	if err := s.rdb.SAdd(ctx, redisIndexKey, string(rec.RoomID)).Err(); err != nil {
		return fmt.Errorf("index room %s: %w", rec.RoomID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id domain.RoomID) (domain.DirectoryRecord, error) {
	data, err := s.rdb.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.DirectoryRecord{}, fmt.Errorf("room %s: %w", id, domain.ErrRoomNotFound)
	}
	if err != nil {
		return domain.DirectoryRecord{}, fmt.Errorf("get room %s: %w", id, err)
	}
	return decodeRecord(data)
}

func (s *RedisStore) AddPlayer(ctx context.Context, id domain.RoomID, p domain.DirectoryPlayer) error {
	return s.update(ctx, id, func(rec *storedRecord) {
		rec.Players = append(dropStoredPlayer(rec.Players, string(p.SessionID)), toStoredPlayer(p))
	})
}

func (s *RedisStore) RemovePlayer(ctx context.Context, id domain.RoomID, sid domain.SessionID) error {
	return s.update(ctx, id, func(rec *storedRecord) {
		rec.Players = dropStoredPlayer(rec.Players, string(sid))
	})
}

// update runs a read-modify-write under WATCH, retrying on concurrent writes.
func (s *RedisStore) update(ctx context.Context, id domain.RoomID, mutate func(*storedRecord)) error {
	key := redisKey(id)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("room %s: %w", id, domain.ErrRoomNotFound)
		}
		if err != nil {
			return err
		}
		var rec storedRecord
		if err := msgpack.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("decode room %s: %w", id, err)
		}
		mutate(&rec)
		out, err := msgpack.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		return err
	}
	for i := 0; i < redisTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update room %s: too many concurrent writes", id)
}

func (s *RedisStore) Delete(ctx context.Context, id domain.RoomID) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisKey(id))
		pipe.SRem(ctx, redisIndexKey, string(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete room %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]domain.DirectoryRecord, error) {
	ids, err := s.rdb.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	if len(ids) == 0 {
		return []domain.DirectoryRecord{}, nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, redisKeyPrefix+id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	out := make([]domain.DirectoryRecord, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := decodeRecord([]byte(str))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *RedisStore) Close() error { return s.rdb.Close() }

func decodeRecord(data []byte) (domain.DirectoryRecord, error) {
	var rec storedRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return domain.DirectoryRecord{}, fmt.Errorf("decode room: %w", err)
	}
	return fromStored(rec), nil
}

func dropStoredPlayer(players []storedPlayer, sid string) []storedPlayer {
	out := players[:0]
	for _, p := range players {
		if p.SessionID != sid {
			out = append(out, p)
		}
	}
	return out
}
