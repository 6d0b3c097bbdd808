// Package carts stores user carts for checkout.
package carts

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/floroz/bazaar/internal/domain/checkout"
	"github.com/floroz/bazaar/internal/domain/goods"
)

const keyPrefix = "market:cart:"

// RedisCartStore keeps each cart in a hash of "shop/item" -> quantity
type RedisCartStore struct {
	client *redis.Client
}

func NewRedisCartStore(client *redis.Client) *RedisCartStore {
	return &RedisCartStore{client: client}
}

func cartKey(userID uuid.UUID) string {
	return keyPrefix + userID.String()
}

func field(shopID, itemID uuid.UUID) string {
	return shopID.String() + "/" + itemID.String()
}

// Add increments the quantity of itemID in the user's basket for shopID
func (s *RedisCartStore) Add(ctx context.Context, userID, shopID, itemID uuid.UUID, qty int) error {
	if err := s.client.HIncrBy(ctx, cartKey(userID), field(shopID, itemID), int64(qty)).Err(); err != nil {
		return fmt.Errorf("failed to add to cart: %w", err)
	}
	return nil
}

// Cart reads the user's cart
func (s *RedisCartStore) Cart(ctx context.Context, userID uuid.UUID) (checkout.Cart, error) {
	fields, err := s.client.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	cart := checkout.Cart{}
	for f, v := range fields {
		shopID, itemID, err := parseField(f)
		if err != nil {
			return nil, err
		}
		qty, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid cart quantity %q: %w", v, err)
		}
		if qty <= 0 {
			continue
		}
		if cart[shopID] == nil {
			cart[shopID] = goods.Basket{}
		}
		cart[shopID][itemID] = qty
	}
	return cart, nil
}

// Clear removes the baskets of the given shops
func (s *RedisCartStore) Clear(ctx context.Context, userID uuid.UUID, shopIDs []uuid.UUID) error {
	key := cartKey(userID)
	fields, err := s.client.HKeys(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to read cart: %w", err)
	}
	prefixes := make([]string, len(shopIDs))
	for i, id := range shopIDs {
		prefixes[i] = id.String() + "/"
	}
	var drop []string
	for _, f := range fields {
		for _, p := range prefixes {
			if strings.HasPrefix(f, p) {
				drop = append(drop, f)
				break
			}
		}
	}
	if len(drop) == 0 {
		return nil
	}
	if err := s.client.HDel(ctx, key, drop...).Err(); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// Restore replaces the whole cart atomically
func (s *RedisCartStore) Restore(ctx context.Context, userID uuid.UUID, cart checkout.Cart) error {
	key := cartKey(userID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		values := make([]any, 0, 2*len(cart))
		for shopID, basket := range cart {
			for itemID, qty := range basket {
				values = append(values, field(shopID, itemID), qty)
			}
		}
		if len(values) > 0 {
			pipe.HSet(ctx, key, values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to restore cart: %w", err)
	}
	return nil
}

func parseField(f string) (uuid.UUID, uuid.UUID, error) {
	shopPart, itemPart, ok := strings.Cut(f, "/")
	if !ok {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid cart field %q", f)
	}
	shopID, err := uuid.Parse(shopPart)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid shop id in cart: %w", err)
	}
	itemID, err := uuid.Parse(itemPart)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid item id in cart: %w", err)
	}
	return shopID, itemID, nil
}
