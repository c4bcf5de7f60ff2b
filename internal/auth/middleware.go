package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// contextKey is an unexported type so no other package can read or shadow
// the values stored here.
type contextKey string

const (
	identityKey contextKey = "identity"
	tokenKey    contextKey = "token"
)

// RequireAuth enforces a valid bearer token on the wrapped routes.
//
// RESPONSES:
//   - no Authorization header (or not "Bearer ..."): 401, code "missing_token"
//   - Verify rejects the token (bad signature, expired, revoked): 401, code "invalid_token"
//   - the revocation store is unreachable: 500
//
// On success the Identity and the raw token are stored in the context. The
// raw token is needed by logout, which revokes exactly the string presented.
func RequireAuth(tokens *TokenService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "missing_token", "Unauthorized", "authentication token is missing")
				return
			}

			id, err := tokens.Verify(r.Context(), raw)
			if err != nil {
				if IsVerifyFailure(err) {
					logger.Debug("rejected bearer token", slog.String("reason", err.Error()))
					writeAuthError(w, http.StatusUnauthorized, "invalid_token", "Unauthorized", "authentication token is invalid")
					return
				}
				logger.Error("token verification failed", slog.String("error", err.Error()))
				writeAuthError(w, http.StatusInternalServerError, "internal_error", "An internal error occurred", "An internal error occurred")
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, id)
			ctx = context.WithValue(ctx, tokenKey, raw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin must run after RequireAuth. Non-admin identities get 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			writeAuthError(w, http.StatusUnauthorized, "missing_token", "Unauthorized", "authentication token is missing")
			return
		}
		if !id.IsAdmin {
			writeAuthError(w, http.StatusForbidden, "forbidden", "Admin privileges required", "Admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IdentityFromContext returns the Identity stored by RequireAuth.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}

// TokenFromContext returns the raw bearer token stored by RequireAuth.
func TokenFromContext(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(tokenKey).(string)
	return tok, ok && tok != ""
}

// bearerToken extracts the credential from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// writeAuthError mirrors the handler package's error body. It lives here
// because handler imports auth, not the other way round.
func writeAuthError(w http.ResponseWriter, status int, code, errText, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    code,
		"error":   errText,
		"message": message,
	})
}
