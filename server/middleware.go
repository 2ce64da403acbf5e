package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"MusicPro/core/auth"
	"MusicPro/logger"
)

// sessionCookie is the cookie carrying the session id.
const sessionCookie = "musicpro_session"

// corsMiddleware mirrors what the browser UI needs, including preflight.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
		w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// SessionMiddleware resolves the session cookie into a user identity and
// stores it on the request context. Requests without a valid session
// simply continue as anonymous.
func (h *APIHandler) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err == nil && cookie.Value != "" && h.sessions != nil {
			sess, err := h.sessions.Get(r.Context(), cookie.Value)
			if err == nil {
				ctx := context.WithValue(r.Context(), "userID", sess.UserID)
				ctx = context.WithValue(ctx, "email", sess.Email)
				r = r.WithContext(ctx)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSession rejects anonymous requests. Only wired under the
// session strategy.
func (h *APIHandler) RequireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := GetUserIDFromContext(r.Context()); err != nil {
			logger.Warn("unauthenticated request rejected", logger.String("path", r.URL.Path))
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	}
}

// GetUserIDFromContext extracts the user ID from the request context.
func GetUserIDFromContext(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value("userID").(int64)
	if !ok {
		return 0, fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// credentials gathers whatever the request presented for the active
// authorization strategy: the session identity (if any) and a bearer
// token from the Authorization header.
func credentials(r *http.Request) auth.Credentials {
	creds := auth.Credentials{}
	if userID, err := GetUserIDFromContext(r.Context()); err == nil {
		creds.UserID = userID
	}
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		creds.BearerToken = parts[1]
	}
	return creds
}
