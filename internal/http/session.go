package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"cobranzas/internal/core"
)

// SessionCookieName is the name of the session cookie.
const SessionCookieName = "cobranzas_session"

const userContextKey contextKey = "user"

// userFromContext returns the authenticated user placed on the request
// context by requireAuth.
func userFromContext(ctx context.Context) (core.User, bool) {
	user, ok := ctx.Value(userContextKey).(core.User)
	return user, ok
}

// requireAuth wraps handlers to require a valid session. It also
// implements rolling sessions: a session past the halfway point of its
// lifetime is renewed, so active users stay logged in while inactive
// sessions still expire.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		info, err := s.sessions.GetSession(r.Context(), cookie.Value)
		if err != nil {
			// Invalid or expired session, clear the cookie
			s.clearSessionCookie(w)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		now := time.Now()
		if info.ExpiresAt.Sub(now) < s.sessionTTL/2 {
			newExpiresAt := now.Add(s.sessionTTL)
			if err := s.sessions.RenewSession(r.Context(), cookie.Value, newExpiresAt); err == nil {
				s.setSessionCookie(w, cookie.Value)
			} else {
				// Renewal failure is not fatal, the session is still valid
				slog.WarnContext(r.Context(), "Failed to renew session", "error", err)
			}
		}

		ctx := context.WithValue(r.Context(), userContextKey, *info.User)
		next(w, r.WithContext(ctx))
	}
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
