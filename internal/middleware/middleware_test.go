package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// =========================================================================
// Logger / Metrics
// =========================================================================

func TestLogger_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := chimiddleware.RequestID(Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("hello"))
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/auth/register", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "request completed", line["msg"])
	assert.Equal(t, "POST", line["method"])
	assert.Equal(t, "/auth/register", line["path"])
	assert.EqualValues(t, 201, line["status"])
	assert.EqualValues(t, 5, line["bytes"])
	assert.NotEmpty(t, line["requestID"])
}

func TestLogger_ServerErrorsAtErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Contains(t, buf.String(), `"level":"ERROR"`)
}

type statusRecorder struct{ statuses []int }

func (s *statusRecorder) RecordBorrow(string)    {}
func (s *statusRecorder) RecordReturn(string)    {}
func (s *statusRecorder) RecordLogin(string)     {}
func (s *statusRecorder) RecordHTTPStatus(c int) { s.statuses = append(s.statuses, c) }

func TestMetrics_RecordsStatus(t *testing.T) {
	rec := &statusRecorder{}
	h := Metrics(rec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("implicit 200"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, []int{200, 404}, rec.statuses)
}

func TestWrap_SharesOneWrapper(t *testing.T) {
	rec := &statusRecorder{}
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := Logger(logger)(Metrics(rec)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK) // superfluous, ignored
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []int{http.StatusTeapot}, rec.statuses)
	assert.Contains(t, buf.String(), `"status":418`)
}

// =========================================================================
// RateLimiter
// =========================================================================

func newRequestFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = addr
	return req
}

func TestRateLimiter_BurstThen429(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 2, CleanupInterval: time.Minute}, discardLogger())
	defer rl.Stop()
	h := rl.Middleware(http.HandlerFunc(okHandler))

	for i := range 2 {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, newRequestFrom("10.0.0.1:1234"))
		assert.Equal(t, http.StatusOK, w.Code, "request %d", i)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, newRequestFrom("10.0.0.1:5678"))
	require.Equal(t, http.StatusTooManyRequests, w.Code, "same IP, different port")
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "rate_limit_exceeded", body["code"])
	assert.NotEmpty(t, body["error"])

	w = httptest.NewRecorder()
	h.ServeHTTP(w, newRequestFrom("10.0.0.2:1234"))
	assert.Equal(t, http.StatusOK, w.Code, "other clients are unaffected")
}

func TestRateLimiter_RetryAfterFromRate(t *testing.T) {
	w := httptest.NewRecorder()
	writeRateLimitResponse(w, PerMinute(6, 1).Rate) // one token every 10s
	assert.Equal(t, "10", w.Header().Get("Retry-After"))
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1, CleanupInterval: time.Hour}, discardLogger())
	defer rl.Stop()

	rl.limiter("a")
	rl.limiter("b")
	require.Equal(t, 2, rl.ClientCount())

	rl.cleanup(time.Now().Add(time.Hour))
	assert.Equal(t, 2, rl.ClientCount(), "not idle long enough")

	rl.cleanup(time.Now().Add(3 * time.Hour))
	assert.Zero(t, rl.ClientCount())
}

func TestRateLimiter_StopTwice(t *testing.T) {
	rl := NewRateLimiter(PerMinute(30, 10), discardLogger())
	rl.Stop()
	assert.NotPanics(t, rl.Stop)
}

func TestClientKey(t *testing.T) {
	assert.Equal(t, "192.0.2.1", clientKey(newRequestFrom("192.0.2.1:80")))
	assert.Equal(t, "192.0.2.1", clientKey(newRequestFrom("192.0.2.1")), "RealIP strips the port")
	assert.Equal(t, "::1", clientKey(newRequestFrom("[::1]:80")))
}

// =========================================================================
// CORS
// =========================================================================

func TestCORS_Headers(t *testing.T) {
	tests := []struct {
		origin          string
		wantCredentials string
	}{
		{"*", ""},
		{"https://library.example", "true"},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			w := httptest.NewRecorder()
			CORS(tt.origin)(http.HandlerFunc(okHandler)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/books/all", nil))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.origin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.True(t, strings.Contains(w.Header().Get("Access-Control-Allow-Headers"), "Authorization"))
			assert.Equal(t, tt.wantCredentials, w.Header().Get("Access-Control-Allow-Credentials"))
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	h := CORS("*")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/books/borrow", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, called)
}
