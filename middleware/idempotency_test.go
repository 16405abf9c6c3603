package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func countingHandler(calls *int32, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(`{"call":` + string(rune('0'+n)) + `}`))
	})
}

func doPost(h http.Handler, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIdempotency_ReplaysCachedResponse(t *testing.T) {
	_, rdb := newTestRedis(t)
	var calls int32
	h := Idempotency(rdb, time.Minute, discardLogger())(countingHandler(&calls, http.StatusCreated))

	first := doPost(h, "/actions/add", "k1")
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(IdempotencyHitHeader))

	second := doPost(h, "/actions/add", "k1")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get(IdempotencyHitHeader))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestIdempotency_KeysAreScopedPerRoute(t *testing.T) {
	_, rdb := newTestRedis(t)
	var calls int32
	h := Idempotency(rdb, time.Minute, discardLogger())(countingHandler(&calls, http.StatusOK))

	doPost(h, "/actions/add", "same")
	rec := doPost(h, "/actions/remove", "same")

	assert.Empty(t, rec.Header().Get(IdempotencyHitHeader))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIdempotency_NoKeyPassesThrough(t *testing.T) {
	_, rdb := newTestRedis(t)
	var calls int32
	h := Idempotency(rdb, time.Minute, discardLogger())(countingHandler(&calls, http.StatusOK))

	doPost(h, "/actions/add", "")
	doPost(h, "/actions/add", "")

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIdempotency_ErrorsAreNotCached(t *testing.T) {
	_, rdb := newTestRedis(t)
	var calls int32
	h := Idempotency(rdb, time.Minute, discardLogger())(countingHandler(&calls, http.StatusConflict))

	doPost(h, "/actions/remove", "k2")
	rec := doPost(h, "/actions/remove", "k2")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, rec.Header().Get(IdempotencyHitHeader))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIdempotency_ConcurrentDuplicateIsRejected(t *testing.T) {
	mr, rdb := newTestRedis(t)
	var calls int32
	h := Idempotency(rdb, time.Minute, discardLogger())(countingHandler(&calls, http.StatusOK))

	// Simulate an in-flight request holding the lock.
	require.NoError(t, mr.Set(LockKeyPrefix+"POST:/actions/add:k3", "processing"))

	rec := doPost(h, "/actions/add", "k3")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"conflict","message":"A request with this idempotency key is currently being processed"}`, rec.Body.String())
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestIdempotency_ReleasesLockAndSetsTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	var calls int32
	h := Idempotency(rdb, 5*time.Minute, discardLogger())(countingHandler(&calls, http.StatusOK))

	doPost(h, "/actions/add", "k4")

	assert.False(t, mr.Exists(LockKeyPrefix+"POST:/actions/add:k4"))
	assert.Equal(t, 5*time.Minute, mr.TTL(RedisKeyPrefix+"POST:/actions/add:k4"))
}

func TestIdempotency_RedisUnavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	var calls int32
	h := Idempotency(rdb, time.Minute, discardLogger())(countingHandler(&calls, http.StatusOK))

	mr.Close()
	rec := doPost(h, "/actions/add", "k5")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

// finishFirstRequestHook stores a response under cacheKey right before the
// lock for lockKey is taken, as if another request with the same key had
// completed between this request's cache miss and its lock.
type finishFirstRequestHook struct {
	mr       *miniredis.Miniredis
	lockKey  string
	cacheKey string
	payload  string
	fired    bool
}

func (h *finishFirstRequestHook) BeforeProcess(ctx context.Context, cmd redis.Cmder) (context.Context, error) {
	args := cmd.Args()
	if !h.fired && len(args) > 1 && args[1] == h.lockKey {
		h.fired = true
		if err := h.mr.Set(h.cacheKey, h.payload); err != nil {
			return ctx, err
		}
	}
	return ctx, nil
}

func (h *finishFirstRequestHook) AfterProcess(ctx context.Context, cmd redis.Cmder) error {
	return nil
}

func (h *finishFirstRequestHook) BeforeProcessPipeline(ctx context.Context, cmds []redis.Cmder) (context.Context, error) {
	return ctx, nil
}

func (h *finishFirstRequestHook) AfterProcessPipeline(ctx context.Context, cmds []redis.Cmder) error {
	return nil
}

func TestIdempotency_RechecksCacheAfterLock(t *testing.T) {
	mr, rdb := newTestRedis(t)
	hook := &finishFirstRequestHook{
		mr:       mr,
		lockKey:  LockKeyPrefix + "POST:/actions/add:k6",
		cacheKey: RedisKeyPrefix + "POST:/actions/add:k6",
		payload:  `{"status":201,"body":"{\"call\":1}"}`,
	}
	rdb.AddHook(hook)

	var calls int32
	h := Idempotency(rdb, time.Minute, discardLogger())(countingHandler(&calls, http.StatusCreated))

	rec := doPost(h, "/actions/add", "k6")

	require.True(t, hook.fired)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "true", rec.Header().Get(IdempotencyHitHeader))
	assert.Equal(t, `{"call":1}`, rec.Body.String())
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	assert.False(t, mr.Exists(hook.lockKey))
}
