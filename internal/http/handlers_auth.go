package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"cobranzas/internal/auth"
	"cobranzas/internal/core"
)

// AuthViewModel holds data for the login and register pages.
type AuthViewModel struct {
	Error    string
	Flash    string
	Username string
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.loginForm(w, r)
	case http.MethodPost:
		s.login(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, r, "register.html", AuthViewModel{})
	case http.MethodPost:
		s.register(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// loginForm renders the login page. An already authenticated visitor is
// sent straight to the dashboard.
func (s *Server) loginForm(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if _, err := s.sessions.GetSession(r.Context(), cookie.Value); err == nil {
			http.Redirect(w, r, "/dashboard", http.StatusFound)
			return
		}
	}
	s.render(w, r, "login.html", AuthViewModel{Flash: s.popFlash(w, r)})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	username := sanitizeInput(r.FormValue("username"))
	password := r.FormValue("password")

	user, err := s.accounts.Authenticate(r.Context(), username, password)
	if err != nil {
		// Unknown user and wrong password produce the same message so
		// the form does not leak which usernames exist.
		slog.InfoContext(r.Context(), "Login failed", "username", core.NormalizeUsername(username))
		s.render(w, r, "login.html", AuthViewModel{
			Error:    "Invalid username or password",
			Username: username,
		})
		return
	}

	token, err := auth.GenerateSessionToken()
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to generate session token", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	expiresAt := time.Now().Add(s.sessionTTL)
	if err := s.sessions.CreateSession(r.Context(), token, user.ID, expiresAt); err != nil {
		slog.ErrorContext(r.Context(), "Failed to create session", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.setSessionCookie(w, token)
	slog.InfoContext(r.Context(), "User logged in", "user_id", user.ID)
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	username := sanitizeInput(r.FormValue("username"))
	password := r.FormValue("password")

	userID, err := s.accounts.Register(r.Context(), username, password)
	if err != nil {
		var msg string
		var verr *core.ValidationError
		switch {
		case errors.As(err, &verr):
			msg = verr.Error()
		case errors.Is(err, core.ErrDuplicateUser):
			msg = "Username is already taken"
		default:
			slog.ErrorContext(r.Context(), "Registration failed", "error", err)
			msg = "Registration failed. Please try again."
		}
		s.render(w, r, "register.html", AuthViewModel{Error: msg, Username: username})
		return
	}

	slog.InfoContext(r.Context(), "User registered", "user_id", userID)
	s.setFlash(w, "Account created. Please log in.")
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if err := s.sessions.DeleteSession(r.Context(), cookie.Value); err != nil {
			slog.WarnContext(r.Context(), "Failed to delete session", "error", err)
		}
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}
