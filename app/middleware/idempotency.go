package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/publora/publora/utils"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyPrefix = "idempotency:"

	// idempotencyPendingMarker is what a reserved key holds while the first
	// request is still executing. Stored records are JSON objects, so the
	// marker never collides with a real record.
	idempotencyPendingMarker = "pending"
)

// idempotencyRecord is the stored outcome of the first execution for a key.
// Replays return it byte-identical, regardless of the replayed request body.
type idempotencyRecord struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// IdempotencyStore is the persistence the idempotency middleware needs: an
// atomic reserve-if-absent plus plain get/set/delete on the reserved key.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Store(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// redisIdempotencyStore backs IdempotencyStore with redis. Reserve maps to
// SET NX so exactly one of any concurrent first requests wins the key.
type redisIdempotencyStore struct {
	rc *redis.Client
}

func (s redisIdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.rc.SetNX(ctx, key, idempotencyPendingMarker, ttl).Result()
}

func (s redisIdempotencyStore) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.rc.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return raw, err
}

func (s redisIdempotencyStore) Store(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.rc.Set(ctx, key, value, ttl).Err()
}

func (s redisIdempotencyStore) Release(ctx context.Context, key string) error {
	return s.rc.Del(ctx, key).Err()
}

// Idempotency returns a middleware that makes mutating endpoints safe to retry.
func Idempotency(rc *redis.Client) fiber.Handler {
	if rc == nil {
		return func(c fiber.Ctx) error {
			return c.Next()
		}
	}
	return IdempotencyWithStore(redisIdempotencyStore{rc: rc})
}

// IdempotencyWithStore implements the retry guarantee on any IdempotencyStore.
// The key is reserved before the handler runs, so two concurrent requests
// carrying the same key execute the handler at most once: the loser either
// replays the recorded response or is told to retry while the winner is still
// in flight. Keys are scoped to the authenticated organization and the route
// so the same client key on different endpoints does not collide.
func IdempotencyWithStore(store IdempotencyStore) fiber.Handler {
	return func(c fiber.Ctx) error {
		key := c.Get("Idempotency-Key")
		if key == "" {
			return c.Next()
		}
		if len(key) > 128 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Idempotency-Key must be at most 128 characters",
			})
		}

		organizationID, _ := GetOrganizationIDFromContext(c)
		storageKey := fmt.Sprintf("%s%d:%s:%s:%s", idempotencyKeyPrefix, organizationID, c.Method(), c.Path(), key)

		ctx := c.Context()
		fresh, err := store.Reserve(ctx, storageKey, utils.IdempotencyPendingTTL)
		if err != nil {
			// Store unavailable: execute without the idempotency guarantee
			// rather than failing the request.
			log.Println("idempotency reserve failed", err)
			return c.Next()
		}

		if !fresh {
			raw, err := store.Get(ctx, storageKey)
			if err != nil {
				log.Println("idempotency lookup failed", err)
				return c.Next()
			}
			if raw == nil || string(raw) == idempotencyPendingMarker {
				// The first request holds the reservation but has not
				// recorded its outcome yet
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"success": false,
					"message": "A request with this Idempotency-Key is still in flight, retry shortly",
				})
			}
			var record idempotencyRecord
			if err := json.Unmarshal(raw, &record); err != nil {
				log.Println("idempotency record corrupt", err)
				return c.Next()
			}
			if record.ContentType != "" {
				c.Set("Content-Type", record.ContentType)
			}
			c.Set("Idempotency-Replayed", "true")
			return c.Status(record.Status).Send(record.Body)
		}

		if err := c.Next(); err != nil {
			releaseReservation(ctx, store, storageKey)
			return err
		}

		status := c.Response().StatusCode()
		// Only successful outcomes are replayable; errors may be retried.
		if status < 200 || status >= 300 {
			releaseReservation(ctx, store, storageKey)
			return nil
		}

		record := idempotencyRecord{
			Status:      status,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        append([]byte(nil), c.Response().Body()...),
		}
		encoded, err := json.Marshal(record)
		if err != nil {
			releaseReservation(ctx, store, storageKey)
			return nil
		}
		if err := store.Store(ctx, storageKey, encoded, utils.IdempotencyRecordTTL); err != nil {
			log.Println("idempotency record save failed", err)
			releaseReservation(ctx, store, storageKey)
		}
		return nil
	}
}

func releaseReservation(ctx context.Context, store IdempotencyStore, key string) {
	if err := store.Release(ctx, key); err != nil {
		log.Println("idempotency release failed", err)
	}
}
