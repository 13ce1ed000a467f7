package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"furniture-order-service/internal/domain"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

const (
	OrderHistoryTTL = 10 * time.Second
	IdempotencyTTL  = 24 * time.Hour
)

// Client is the subset of redis commands the caches need.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ Client = (*redis.Client)(nil)

func NewRedisClient(host string, poolSize int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         host + ":6379",
		DB:           0,
		PoolSize:     poolSize,
		MinIdleConns: poolSize / 10,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
}

// OrderHistory caches a user's order list. Redis failures degrade to cache misses.
type OrderHistory struct {
	rdb Client
	ttl time.Duration
}

func NewOrderHistory(rdb Client) *OrderHistory {
	return &OrderHistory{rdb: rdb, ttl: OrderHistoryTTL}
}

func OrderHistoryKey(userID string) string {
	return "orders:user:" + userID
}

func (c *OrderHistory) Get(ctx context.Context, userID string) ([]domain.Order, bool) {
	b, err := c.rdb.Get(ctx, OrderHistoryKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("user_id", userID).Msg("order history cache read failed")
		}
		return nil, false
	}
	var orders []domain.Order
	if err := json.Unmarshal(b, &orders); err != nil {
		return nil, false
	}
	return orders, true
}

func (c *OrderHistory) Set(ctx context.Context, userID string, orders []domain.Order) {
	data, err := json.Marshal(orders)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, OrderHistoryKey(userID), data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("order history cache write failed")
	}
}

func (c *OrderHistory) Invalidate(ctx context.Context, userID string) {
	if err := c.rdb.Del(ctx, OrderHistoryKey(userID)).Err(); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("order history cache invalidate failed")
	}
}

// StoredResponse is a replayable HTTP response.
type StoredResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// Idempotency remembers the first response produced for an Idempotency-Key.
type Idempotency struct {
	rdb Client
	ttl time.Duration
}

func NewIdempotency(rdb Client) *Idempotency {
	return &Idempotency{rdb: rdb, ttl: IdempotencyTTL}
}

func IdempotencyKey(userID, route, key string) string {
	return fmt.Sprintf("idem:%s:%s:%s", userID, route, key)
}

func (s *Idempotency) Lookup(ctx context.Context, key string) (*StoredResponse, bool, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var resp StoredResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		return nil, false, err
	}
	return &resp, true, nil
}

// Save keeps the first stored response; later saves under the same key are ignored.
func (s *Idempotency) Save(ctx context.Context, key string, resp StoredResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.rdb.SetNX(ctx, key, data, s.ttl).Err()
}
