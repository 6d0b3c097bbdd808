// Package cache keeps finalized auction receipts in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/floroz/bazaar/internal/domain/auction"
)

// ErrCacheMiss is returned when no receipt is cached for an auction
var ErrCacheMiss = errors.New("receipt not cached")

const keyPrefix = "market:receipt:"

// RedisReceiptCache stores receipts as JSON with a TTL
type RedisReceiptCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisReceiptCache creates a receipt cache; a zero ttl keeps entries forever
func NewRedisReceiptCache(client *redis.Client, ttl time.Duration) *RedisReceiptCache {
	return &RedisReceiptCache{client: client, ttl: ttl}
}

func key(auctionID uuid.UUID) string {
	return keyPrefix + auctionID.String()
}

// Put caches a finalized receipt
func (c *RedisReceiptCache) Put(ctx context.Context, receipt auction.Receipt) error {
	body, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("failed to encode receipt: %w", err)
	}
	if err := c.client.Set(ctx, key(receipt.AuctionID), body, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache receipt %s: %w", receipt.AuctionID, err)
	}
	return nil
}

// Get returns the cached receipt or ErrCacheMiss
func (c *RedisReceiptCache) Get(ctx context.Context, auctionID uuid.UUID) (auction.Receipt, error) {
	body, err := c.client.Get(ctx, key(auctionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return auction.Receipt{}, ErrCacheMiss
	}
	if err != nil {
		return auction.Receipt{}, fmt.Errorf("failed to read receipt %s: %w", auctionID, err)
	}
	var receipt auction.Receipt
	if err := json.Unmarshal(body, &receipt); err != nil {
		return auction.Receipt{}, fmt.Errorf("failed to decode receipt %s: %w", auctionID, err)
	}
	return receipt, nil
}
