package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/ports"
)

// RedisStore keeps each slot as a JSON string under "threats:<slot>".
type RedisStore struct {
	client   redis.UniversalClient
	capacity int
}

var _ ports.SlotStore = (*RedisStore)(nil)

// NewRedisStore connects to addr; capacity bounds the keys read back by LoadSlots.
func NewRedisStore(addr, password string, db, capacity int) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreWithClient(rdb, capacity)
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client redis.UniversalClient, capacity int) *RedisStore {
	return &RedisStore{client: client, capacity: capacity}
}

func redisKey(slot string) string {
	return domain.SlotNamespace + ":" + slot
}

// ApplySlots sends the batch as one MULTI/EXEC transaction. Slot keys left over from a
// larger capacity are deleted in the same transaction.
func (s *RedisStore) ApplySlots(ctx context.Context, writes []domain.SlotWrite) error {
	stale, err := s.staleKeys(ctx, writes)
	if err != nil {
		return err
	}

	payloads := make([][]byte, len(writes))
	for i, w := range writes {
		if w.Record == nil {
			continue
		}
		raw, err := json.Marshal(w.Record)
		if err != nil {
			return fmt.Errorf("encode slot %s: %w", w.Key, err)
		}
		payloads[i] = raw
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(stale) > 0 {
			pipe.Del(ctx, stale...)
		}
		for i, w := range writes {
			if payloads[i] == nil {
				pipe.Del(ctx, redisKey(w.Key))
				continue
			}
			pipe.Set(ctx, redisKey(w.Key), payloads[i], 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis slot transaction: %w", err)
	}
	return nil
}

// staleKeys lists the stored slot keys that the batch does not mention.
func (s *RedisStore) staleKeys(ctx context.Context, writes []domain.SlotWrite) ([]string, error) {
	inBatch := make(map[string]struct{}, len(writes))
	for _, w := range writes {
		inBatch[redisKey(w.Key)] = struct{}{}
	}

	var stale []string
	iter := s.client.Scan(ctx, 0, redisKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		if _, ok := inBatch[iter.Val()]; !ok {
			stale = append(stale, iter.Val())
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan slots: %w", err)
	}
	return stale, nil
}

// LoadSlots reads every slot key up to capacity and returns the occupied ones.
func (s *RedisStore) LoadSlots(ctx context.Context) ([]domain.Slot, error) {
	if s.capacity <= 0 {
		return nil, nil
	}
	keys := make([]string, s.capacity)
	for i := range keys {
		keys[i] = redisKey(domain.SlotKey(i + 1))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	var slots []domain.Slot
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var rec domain.ThreatRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode slot %s: %w", keys[i], err)
		}
		slots = append(slots, domain.Slot{Key: domain.SlotKey(i + 1), Record: &rec})
	}
	return slots, nil
}

// Close releases the client connections.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
