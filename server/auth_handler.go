package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"MusicPro/core/auth"
	"MusicPro/logger"
	"MusicPro/model"
	"MusicPro/repository"
)

// credentialsRequest is the body for both register and login.
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *APIHandler) setSessionCookie(w http.ResponseWriter, id string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// RegisterHandler creates a user and logs them straight in.
func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	if h.userRepo == nil || h.sessions == nil {
		writeError(w, http.StatusInternalServerError, "user store unavailable")
		return
	}

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.Error("failed to hash password", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to process password")
		return
	}

	user := &model.User{
		Email:        req.Email,
		PasswordHash: hashedPassword,
	}
	userID, err := h.userRepo.CreateUser(r.Context(), user)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			logger.Warn("registration with existing email", logger.String("email", req.Email))
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		logger.Error("failed to create user", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	sess, err := h.sessions.Create(r.Context(), userID, req.Email, h.cfg.SessionMaxAge)
	if err != nil {
		logger.Error("failed to create session", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	h.setSessionCookie(w, sess.ID, int(h.cfg.SessionMaxAge.Seconds()))

	logger.Info("user registered", logger.Int64("userId", userID), logger.String("email", req.Email))
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"user": map[string]any{"id": userID, "email": req.Email},
	})
}

// LoginHandler verifies credentials and establishes a session. A failed
// login leaves the requester anonymous.
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if h.userRepo == nil || h.sessions == nil {
		writeError(w, http.StatusInternalServerError, "user store unavailable")
		return
	}

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.userRepo.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		logger.Error("failed to look up user", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		logger.Warn("login failed", logger.String("email", req.Email))
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	sess, err := h.sessions.Create(r.Context(), user.ID, user.Email, h.cfg.SessionMaxAge)
	if err != nil {
		logger.Error("failed to create session", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	h.setSessionCookie(w, sess.ID, int(h.cfg.SessionMaxAge.Seconds()))

	logger.Info("user logged in", logger.Int64("userId", user.ID))
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"user": map[string]any{"id": user.ID, "email": user.Email},
	})
}

// LogoutHandler destroys the current session.
func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" && h.sessions != nil {
		if err := h.sessions.Delete(r.Context(), cookie.Value); err != nil {
			logger.Warn("failed to delete session", logger.ErrorField(err))
		}
	}
	h.setSessionCookie(w, "", -1)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// MeHandler returns the current session's identity, or null.
func (h *APIHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user": nil})
		return
	}
	email, _ := r.Context().Value("email").(string)
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"user": map[string]any{"id": userID, "email": email},
	})
}

// AuthDisabledHandler answers the auth endpoints when the deployment
// runs the token strategy.
func AuthDisabledHandler(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "session auth disabled")
}
