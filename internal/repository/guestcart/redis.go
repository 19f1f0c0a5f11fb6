package guestcart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"lavenderlily/internal/domain"
)

const (
	keyPrefix = "guest_cart:"
	// Abandoned guest carts expire on their own; the TTL is refreshed
	// on every write.
	slotTTL = 30 * 24 * time.Hour
)

type redisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) Read(ctx context.Context, guestID string) ([]domain.CartLine, error) {
	raw, err := s.client.Get(ctx, keyPrefix+guestID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read guest cart: %w", err)
	}

	var lines []domain.CartLine
	if err := json.Unmarshal(raw, &lines); err != nil {
		// A corrupt slot is unrecoverable; treat it as empty rather
		// than wedge the guest's cart forever.
		return nil, nil
	}
	return lines, nil
}

func (s *redisStore) Write(ctx context.Context, guestID string, lines []domain.CartLine) error {
	if len(lines) == 0 {
		return s.Clear(ctx, guestID)
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encode guest cart: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+guestID, raw, slotTTL).Err(); err != nil {
		return fmt.Errorf("write guest cart: %w", err)
	}
	return nil
}

func (s *redisStore) Clear(ctx context.Context, guestID string) error {
	if err := s.client.Del(ctx, keyPrefix+guestID).Err(); err != nil {
		return fmt.Errorf("clear guest cart: %w", err)
	}
	return nil
}
