package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNoGuestCart = errors.New("no guest cart for session")

// GuestStore holds unauthenticated carts keyed by session id. Entries
// expire on their own; the TTL is refreshed on every write.
type GuestStore interface {
	Get(ctx context.Context, sessionID string) (Cart, error)
	Set(ctx context.Context, sessionID string, c Cart) error
	Delete(ctx context.Context, sessionID string) error
}

type RedisGuestStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGuestStore(client *redis.Client, ttl time.Duration) *RedisGuestStore {
	return &RedisGuestStore{client: client, ttl: ttl}
}

func (r *RedisGuestStore) Get(ctx context.Context, sessionID string) (Cart, error) {
	data, err := r.client.Get(ctx, guestKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Cart{}, ErrNoGuestCart
	}
	if err != nil {
		return Cart{}, fmt.Errorf("redis get failed: %w", err)
	}

	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return Cart{}, fmt.Errorf("unmarshal guest cart failed: %w", err)
	}
	return c, nil
}

func (r *RedisGuestStore) Set(ctx context.Context, sessionID string, c Cart) error {
	c.Recompute()
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal guest cart failed: %w", err)
	}
	if err := r.client.Set(ctx, guestKey(sessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisGuestStore) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, guestKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func guestKey(sessionID string) string {
	return fmt.Sprintf("cart:guest:%s", sessionID)
}
