package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/library-catalog/internal/apperror"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := chimiddleware.RequestID(Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})))

	req := httptest.NewRequest(http.MethodGet, "/books/page/1", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))

	assert.Equal(t, "request completed", line["msg"])
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "GET", line["method"])
	assert.Equal(t, "/books/page/1", line["path"])
	assert.EqualValues(t, http.StatusTeapot, line["status"])
	assert.EqualValues(t, len("short and stout"), line["bytes"])
	assert.NotEmpty(t, line["request_id"])
}

func TestLogger_DefaultStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "INFO", line["level"])
	assert.EqualValues(t, http.StatusOK, line["status"])
}

// recordLimit is an ErrorFunc that remembers what it was given.
type recordLimit struct {
	calls int
	err   error
}

func (rec *recordLimit) respond(w http.ResponseWriter, r *http.Request, err error) {
	rec.calls++
	rec.err = err
	w.WriteHeader(apperror.StatusCode(err))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/books/page/1", nil)
	req.RemoteAddr = addr
	return req
}

func TestRateLimiter_Burst(t *testing.T) {
	rec := &recordLimit{}
	rl := NewRateLimiter(1, 2, rec.respond)
	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return frozen }
	h := rl.Handler(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, requestFrom("10.0.0.1:5000"))
		codes = append(codes, rr.Code)
	}

	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.Equal(t, 1, rec.calls)
	assert.True(t, errors.Is(rec.err, apperror.ErrRateLimited))
}

func TestRateLimiter_PerClient(t *testing.T) {
	rec := &recordLimit{}
	rl := NewRateLimiter(1, 1, rec.respond)
	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return frozen }
	h := rl.Handler(okHandler())

	for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1", "10.0.0.3:1"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, requestFrom(addr))
		assert.Equal(t, http.StatusOK, rr.Code, addr)
	}

	// Same host on a different port is the same client.
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, requestFrom("10.0.0.1:2"))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
}

func TestRateLimiter_Refills(t *testing.T) {
	rec := &recordLimit{}
	rl := NewRateLimiter(1, 1, rec.respond)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	h := rl.Handler(okHandler())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, requestFrom("10.0.0.1:1"))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, requestFrom("10.0.0.1:1"))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)

	now = now.Add(time.Second)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, requestFrom("10.0.0.1:1"))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(1, 1, (&recordLimit{}).respond)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.allow("10.0.0.1")
	rl.allow("10.0.0.2")
	require.Len(t, rl.visitors, 2)

	now = now.Add(rl.idle + time.Second)
	rl.allow("10.0.0.3")
	assert.Len(t, rl.visitors, 1)
	assert.Contains(t, rl.visitors, "10.0.0.3")
}

func TestRecoverer(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	rec := &recordLimit{}

	h := chimiddleware.RequestID(Recoverer(logger, rec.respond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("shelf collapsed")
	})))

	rr := httptest.NewRecorder()
	require.NotPanics(t, func() { h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/books/page/1", nil)) })

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, 1, rec.calls)
	assert.ErrorContains(t, rec.err, "shelf collapsed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "panic recovered", line["msg"])
	assert.Equal(t, "ERROR", line["level"])
	assert.NotEmpty(t, line["request_id"])
	assert.NotEmpty(t, line["stack"])
}

func TestRecoverer_ResponseAlreadyStarted(t *testing.T) {
	rec := &recordLimit{}
	h := Recoverer(testDiscardLogger(), rec.respond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		panic("too late")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Zero(t, rec.calls)
}

func TestRecoverer_AbortHandler(t *testing.T) {
	h := Recoverer(testDiscardLogger(), (&recordLimit{}).respond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func testDiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestRateLimiter_Except(t *testing.T) {
	rec := &recordLimit{}
	rl := NewRateLimiter(1, 1, rec.respond)
	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return frozen }
	h := rl.Except("/health")(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "10.0.0.1:1"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, requestFrom("10.0.0.1:1"))
	assert.Equal(t, http.StatusOK, rr.Code, "exempt requests spent no tokens")

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, requestFrom("10.0.0.1:1"))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}
