package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	// IdempotencyHeader is the standard HTTP header for idempotency keys
	IdempotencyHeader = "Idempotency-Key"

	// IdempotencyHitHeader marks a replayed response
	IdempotencyHitHeader = "X-Idempotency-Hit"

	// DefaultCacheTTL defines how long responses are cached in Redis
	DefaultCacheTTL = 24 * time.Hour

	// LockTimeout prevents indefinite locks if a request crashes
	LockTimeout = 10 * time.Second

	// RedisKeyPrefix for namespacing idempotency keys
	RedisKeyPrefix = "transfermap:idempotency:"

	// LockKeyPrefix for namespacing distributed locks
	LockKeyPrefix = "transfermap:lock:"
)

// responseWriterWrapper captures the status code and body for caching.
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (rw *responseWriterWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriterWrapper) Write(b []byte) (int, error) {
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

// cachedResponse is what gets stored under the idempotency key.
type cachedResponse struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// Idempotency replays the stored response for a repeated Idempotency-Key so
// that a retried "add" or "remove" click mutates the store only once.
//
// Flow:
//  1. Requests without a key pass straight through
//  2. A cached 2xx response is replayed with X-Idempotency-Hit
//  3. Otherwise a Redis lock is taken; a concurrent duplicate gets 409
//  4. The cache is checked again under the lock
//  5. Successful responses are cached for ttl
func Idempotency(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			idempotencyKey := r.Header.Get(IdempotencyHeader)
			if idempotencyKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			// Scope keys per route so one key cannot replay a different action.
			scoped := r.Method + ":" + r.URL.Path + ":" + idempotencyKey
			cacheKey := RedisKeyPrefix + scoped
			lockKey := LockKeyPrefix + scoped
			l := logger.With(slog.String("idempotency_key", idempotencyKey), slog.String("path", r.URL.Path))

			if replayed, err := replay(ctx, rdb, cacheKey, w, l); err != nil || replayed {
				return
			}

			acquired, err := rdb.SetNX(ctx, lockKey, "processing", LockTimeout).Result()
			if err != nil {
				l.ErrorContext(ctx, "Lock acquisition error", slog.Any("error", err))
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			if !acquired {
				l.WarnContext(ctx, "Concurrent request detected")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusConflict)
				json.NewEncoder(w).Encode(map[string]string{
					"error":   "conflict",
					"message": "A request with this idempotency key is currently being processed",
				})
				return
			}

			defer func() {
				// Release even if the client went away mid-request.
				if err := rdb.Del(context.WithoutCancel(ctx), lockKey).Err(); err != nil {
					l.ErrorContext(ctx, "Failed to release lock", slog.Any("error", err))
				}
			}()

			// A duplicate that missed the cache may take the lock only after the
			// first request has stored its response and released it.
			if replayed, err := replay(ctx, rdb, cacheKey, w, l); err != nil || replayed {
				return
			}

			wrapper := &responseWriterWrapper{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			next.ServeHTTP(wrapper, r)

			if wrapper.statusCode < 200 || wrapper.statusCode >= 300 {
				return
			}
			payload, err := json.Marshal(cachedResponse{Status: wrapper.statusCode, Body: wrapper.body.String()})
			if err != nil {
				l.ErrorContext(ctx, "Failed to encode response for cache", slog.Any("error", err))
				return
			}
			if err := rdb.Set(ctx, cacheKey, payload, ttl).Err(); err != nil {
				l.ErrorContext(ctx, "Failed to cache response", slog.Any("error", err))
				return
			}
			l.DebugContext(ctx, "Cached response", slog.Duration("ttl", ttl))
		})
	}
}

// replay writes the cached response for cacheKey if there is one. A Redis
// failure is answered with 500 and returned.
func replay(ctx context.Context, rdb *redis.Client, cacheKey string, w http.ResponseWriter, l *slog.Logger) (bool, error) {
	cached, err := rdb.Get(ctx, cacheKey).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		l.ErrorContext(ctx, "Idempotency cache lookup failed", slog.Any("error", err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return false, err
	}

	var resp cachedResponse
	if err := json.Unmarshal([]byte(cached), &resp); err != nil {
		l.WarnContext(ctx, "Discarding unreadable cached response", slog.Any("error", err))
		return false, nil
	}
	l.InfoContext(ctx, "Idempotency cache hit")
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(IdempotencyHitHeader, "true")
	w.WriteHeader(resp.Status)
	w.Write([]byte(resp.Body))
	return true, nil
}
