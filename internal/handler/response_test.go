package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/elibrary/internal/apperror"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriteError_Mapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"validation", apperror.ValidationFailed("x", "Missing parameters"), 400, "validation_error", "Missing parameters"},
		{"not available", apperror.NotAvailable("Book not available"), 400, "not_available", "Book not available"},
		{"unauthenticated", apperror.Unauthenticated("Invalid username or password"), 401, "unauthorized", "Invalid username or password"},
		{"forbidden", apperror.Forbidden("Admin privileges required"), 403, "forbidden", "Admin privileges required"},
		{"not found", apperror.NotFoundMessage("No borrowing record found"), 404, "not_found", "No borrowing record found"},
		{"conflict", apperror.Conflict("username", "Username already exists"), 409, "conflict", "Username already exists"},
		{"wrapped", fmt.Errorf("outer: %w", apperror.NotAvailable("Book not available")), 400, "not_available", "Book not available"},
		{"storage", errors.New("sqldb: disk I/O error at /var/lib/x"), 500, "internal_error", "An internal error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, discardLogger(), tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantMsg, body.Error)
			assert.Equal(t, tt.wantMsg, body.Message)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ana"}`))
	require.NoError(t, decodeJSON(r, &dst))
	assert.Equal(t, "ana", dst.Name)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.NoError(t, decodeJSON(r, &dst), "empty body is not an error")

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{nope"))
	assert.ErrorIs(t, decodeJSON(r, &dst), apperror.ErrValidation)
}

func TestFlexInt(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{`3`, 3, false},
		{`"3"`, 3, false},
		{`null`, 0, false},
		{`""`, 0, false},
		{`"three"`, 0, true},
		{`3.5`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var v struct {
				ID flexInt `json:"id"`
			}
			err := json.Unmarshal([]byte(`{"id":`+tt.in+`}`), &v)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, int64(v.ID))
		})
	}
}

func TestFlexBool(t *testing.T) {
	for in, want := range map[string]bool{`true`: true, `1`: true, `"1"`: true, `false`: false, `0`: false, `null`: false} {
		var v struct {
			B flexBool `json:"b"`
		}
		require.NoError(t, json.Unmarshal([]byte(`{"b":`+in+`}`), &v), in)
		assert.Equal(t, want, bool(v.B), in)
	}

	var v struct {
		B flexBool `json:"b"`
	}
	assert.Error(t, json.Unmarshal([]byte(`{"b":"yes"}`), &v))
}

func TestPathID(t *testing.T) {
	r := chi.NewRouter()
	var got int64
	var gotErr error
	r.Get("/books/{book_id}", func(w http.ResponseWriter, r *http.Request) {
		got, gotErr = pathID(r, "book_id")
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/books/42", nil))
	require.NoError(t, gotErr)
	assert.Equal(t, int64(42), got)

	for _, bad := range []string{"/books/abc", "/books/0", "/books/-1"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, bad, nil))
		assert.ErrorIs(t, gotErr, apperror.ErrValidation, bad)
	}
}
