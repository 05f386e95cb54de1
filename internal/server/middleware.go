package server

import (
	"context"
	"net/http"
)

type ctxKey int

const ctxKeyUserID ctxKey = iota

// authMiddleware requires a valid access token and stores the caller's user
// ID in the request context.
func authMiddleware(tokens tokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "invalid or missing access token")
				return
			}
			userID, err := tokens.verify(raw, tokenTypeAccess)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or missing access token")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyUserID, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func userFrom(r *http.Request) string {
	return r.Context().Value(ctxKeyUserID).(string)
}

// optionalUser returns the caller's user ID when a valid bearer token is
// present; used by routes that serve both anonymous and run-scoped reads.
func optionalUser(r *http.Request, tokens tokenIssuer) (string, bool) {
	raw, ok := bearerToken(r)
	if !ok {
		return "", false
	}
	userID, err := tokens.verify(raw, tokenTypeAccess)
	if err != nil {
		return "", false
	}
	return userID, true
}
