package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sbtinstruments/cyto/internal/errors"
)

// RedisStore is a Store backed by a Redis server. The outline lives in a
// plain string key and cancellation markers are SET with a TTL, so Redis
// itself expires markers nobody collects.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore from connection parameters. The
// connection is established lazily; a dead server surfaces as
// ErrStoreUnavailable on first use.
func NewRedisStore(addr, password string, db int) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// NewRedisStoreWithClient wraps an existing client. Used by tests.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// PutOutline overwrites the serialized outline for the tree.
func (s *RedisStore) PutOutline(ctx context.Context, treeID string, payload []byte) error {
	key := OutlineKey(treeID)
	if err := s.client.Set(ctx, key, payload, 0).Err(); err != nil {
		return errors.NewStoreError(fmt.Sprintf("redis SET failed: %v", err), errors.ErrStoreUnavailable).
			WithKey(key).WithOp("put_outline")
	}
	return nil
}

// GetOutline returns the latest serialized outline for the tree.
func (s *RedisStore) GetOutline(ctx context.Context, treeID string) ([]byte, error) {
	key := OutlineKey(treeID)
	payload, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		return payload, nil
	case errors.Is(err, redis.Nil):
		return nil, errors.NewStoreError("no outline for tree", errors.ErrNotPublished).
			WithKey(key).WithOp("get_outline").WithRetryable(false)
	default:
		return nil, errors.NewStoreError(fmt.Sprintf("redis GET failed: %v", err), errors.ErrStoreUnavailable).
			WithKey(key).WithOp("get_outline")
	}
}

// MarkCancel writes a cancellation-intent marker with the given expiry.
func (s *RedisStore) MarkCancel(ctx context.Context, treeID, nodeID string, ttl time.Duration) error {
	key := CancelKey(treeID, nodeID)
	if err := s.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return errors.NewStoreError(fmt.Sprintf("redis SET failed: %v", err), errors.ErrStoreUnavailable).
			WithKey(key).WithOp("mark_cancel")
	}
	return nil
}

// PendingCancels scans the tree's cancel namespace and returns the node
// ids with an unexpired marker.
func (s *RedisStore) PendingCancels(ctx context.Context, treeID string) ([]string, error) {
	prefix := cancelPrefix(treeID)
	var ids []string

	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if nodeID, ok := nodeFromCancelKey(treeID, iter.Val()); ok {
			ids = append(ids, nodeID)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, errors.NewStoreError(fmt.Sprintf("redis SCAN failed: %v", err), errors.ErrStoreUnavailable).
			WithKey(prefix + "*").WithOp("pending_cancels")
	}
	return ids, nil
}

// ClearCancel removes the node's cancellation marker, if any.
func (s *RedisStore) ClearCancel(ctx context.Context, treeID, nodeID string) error {
	key := CancelKey(treeID, nodeID)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return errors.NewStoreError(fmt.Sprintf("redis DEL failed: %v", err), errors.ErrStoreUnavailable).
			WithKey(key).WithOp("clear_cancel")
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
