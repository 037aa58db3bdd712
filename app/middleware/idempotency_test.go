package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryIdempotencyStore is an in-process IdempotencyStore with the same
// reserve-if-absent semantics as the redis-backed one.
type memoryIdempotencyStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{data: make(map[string][]byte)}
}

func (s *memoryIdempotencyStore) Reserve(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = []byte(idempotencyPendingMarker)
	return true, nil
}

func (s *memoryIdempotencyStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), raw...), nil
}

func (s *memoryIdempotencyStore) Store(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *memoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func newIdempotencyTestApp(store IdempotencyStore, executions *int) *fiber.App {
	app := fiber.New()
	app.Post("/items", IdempotencyWithStore(store), func(c fiber.Ctx) error {
		*executions++
		body := string(c.Body())
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"execution": *executions,
			"echo":      body,
		})
	})
	return app
}

func postItems(t *testing.T, app *fiber.App, key, body string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func TestIdempotencyMiddleware(t *testing.T) {
	t.Run("ReplayReturnsFirstResponseByteIdentical", func(t *testing.T) {
		store := newMemoryIdempotencyStore()
		executions := 0
		app := newIdempotencyTestApp(store, &executions)

		first, firstBody := postItems(t, app, "order-42", `{"title":"first"}`)
		// Same key, different body: the recorded response wins regardless
		second, secondBody := postItems(t, app, "order-42", `{"title":"second"}`)

		assert.Equal(t, 1, executions)
		assert.Equal(t, first.StatusCode, second.StatusCode)
		assert.Equal(t, firstBody, secondBody)
		assert.Contains(t, firstBody, `"first"`)
		assert.Equal(t, "true", second.Header.Get("Idempotency-Replayed"))
		assert.Empty(t, first.Header.Get("Idempotency-Replayed"))
	})

	t.Run("DistinctKeysExecuteIndependently", func(t *testing.T) {
		store := newMemoryIdempotencyStore()
		executions := 0
		app := newIdempotencyTestApp(store, &executions)

		postItems(t, app, "key-a", `{}`)
		postItems(t, app, "key-b", `{}`)
		assert.Equal(t, 2, executions)
	})

	t.Run("MissingKeySkipsTheGuard", func(t *testing.T) {
		store := newMemoryIdempotencyStore()
		executions := 0
		app := newIdempotencyTestApp(store, &executions)

		postItems(t, app, "", `{}`)
		postItems(t, app, "", `{}`)
		assert.Equal(t, 2, executions)
	})

	t.Run("InFlightKeyConflictsInsteadOfExecutingTwice", func(t *testing.T) {
		store := newMemoryIdempotencyStore()
		executions := 0
		app := newIdempotencyTestApp(store, &executions)

		// A concurrent first request holds the reservation but has not
		// recorded its outcome yet
		storageKey := fmt.Sprintf("%s%d:%s:%s:%s", idempotencyKeyPrefix, 0, http.MethodPost, "/items", "order-42")
		fresh, err := store.Reserve(context.Background(), storageKey, time.Minute)
		require.NoError(t, err)
		require.True(t, fresh)

		resp, body := postItems(t, app, "order-42", `{}`)
		assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
		assert.Contains(t, body, "still in flight")
		assert.Equal(t, 0, executions)
	})

	t.Run("FailedExecutionsAreRetriable", func(t *testing.T) {
		store := newMemoryIdempotencyStore()
		attempts := 0
		app := fiber.New()
		app.Post("/items", IdempotencyWithStore(store), func(c fiber.Ctx) error {
			attempts++
			if attempts == 1 {
				return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"success": false})
			}
			return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true})
		})

		resp, _ := postItems(t, app, "order-42", `{}`)
		assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)

		// The reservation is released on failure so the retry executes
		resp, _ = postItems(t, app, "order-42", `{}`)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
		assert.Equal(t, 2, attempts)
	})

	t.Run("OversizedKeyRejected", func(t *testing.T) {
		store := newMemoryIdempotencyStore()
		executions := 0
		app := newIdempotencyTestApp(store, &executions)

		resp, _ := postItems(t, app, strings.Repeat("k", 129), `{}`)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, 0, executions)
	})
}
