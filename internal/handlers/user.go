package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/taskapp/accounts/internal/services"
	"github.com/taskapp/accounts/internal/store"
)

const (
	avatarFormField   = "avatar"
	avatarContentType = "image/jpeg"
)

var allowedAvatarExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// UserHandler provides the account HTTP endpoints.
type UserHandler struct {
	accounts       *services.AccountService
	avatarMaxBytes int64
}

// NewUserHandler constructs a UserHandler with the provided dependencies.
func NewUserHandler(accounts *services.AccountService, avatarMaxBytes int64) *UserHandler {
	return &UserHandler{
		accounts:       accounts,
		avatarMaxBytes: avatarMaxBytes,
	}
}

// UserRouter registers the account routes on the given router.
func UserRouter(r chi.Router, accounts *services.AccountService, authMiddleware func(http.Handler) http.Handler, avatarMaxBytes int64) {
	handler := NewUserHandler(accounts, avatarMaxBytes)

	r.Post("/", handler.Register)
	r.Post("/login", handler.Login)
	r.With(authMiddleware).Post("/logout", handler.Logout)
	r.With(authMiddleware).Post("/logoutAll", handler.LogoutAll)
	r.Route("/me", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", handler.Me)
		r.Patch("/", handler.UpdateProfile)
		r.Delete("/", handler.DeleteAccount)
		r.Post("/avatar", handler.UploadAvatar)
		r.Delete("/avatar", handler.DeleteAvatar)
	})
	r.Get("/{userID}", handler.GetUser)
	r.Get("/{userID}/avatar", handler.GetAvatar)
}

// Register creates a new account and returns it with a first session token.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = services.NormalizeEmail(req.Email)
	req.Password = strings.TrimSpace(req.Password)
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.accounts.Register(r.Context(), services.RegisterParams{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Age:      req.Age,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			writeError(w, http.StatusBadRequest, "email already taken")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	token, err := h.accounts.IssueSession(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{User: user, Token: token})
}

// Login verifies credentials and issues a new session token.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.accounts.VerifyLogin(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "no account for that email")
		case errors.Is(err, services.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		default:
			writeError(w, http.StatusInternalServerError, "failed to authenticate")
		}
		return
	}

	token, err := h.accounts.IssueSession(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{User: user, Token: token})
}

// Logout revokes exactly the session token presented on this request.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication failed")
		return
	}
	token, err := tokenFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	if err := h.accounts.RevokeSession(r.Context(), user, token); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to log out")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// LogoutAll revokes every session token issued to the caller.
func (h *UserHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	if err := h.accounts.RevokeAllSessions(r.Context(), user); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to log out")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Me returns the caller's profile.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication failed")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GetUser returns the public profile of any user.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.accounts.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateProfile applies an allow-listed partial update to the caller's
// profile. Updates containing any other field are rejected whole.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	update, err := parseProfileUpdate(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.accounts.UpdateProfile(r.Context(), user, update)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateEmail):
			writeError(w, http.StatusBadRequest, "email already taken")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update user")
		}
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteAccount removes the caller's account together with all owned tasks.
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	if err := h.accounts.DeleteAccount(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UploadAvatar stores the caller's avatar from a multipart form upload.
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	// Leave headroom for the multipart framing around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.avatarMaxBytes+(64<<10))
	if err := r.ParseMultipartForm(h.avatarMaxBytes); err != nil {
		writeError(w, http.StatusBadRequest, "avatar must be at most 1MB")
		return
	}

	file, header, err := r.FormFile(avatarFormField)
	if err != nil {
		writeError(w, http.StatusBadRequest, "avatar file is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedAvatarExtensions[ext] {
		writeError(w, http.StatusBadRequest, "avatar must be a jpg, jpeg, or png image")
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.avatarMaxBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read avatar")
		return
	}
	if int64(len(data)) > h.avatarMaxBytes {
		writeError(w, http.StatusBadRequest, "avatar must be at most 1MB")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "avatar file is empty")
		return
	}

	if err := h.accounts.SetAvatar(r.Context(), user.ID, data); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store avatar")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DeleteAvatar clears the caller's avatar.
func (h *UserHandler) DeleteAvatar(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	if err := h.accounts.ClearAvatar(r.Context(), user.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "failed to delete avatar")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetAvatar serves a user's avatar image. Public; 404 when the user or the
// avatar is absent.
func (h *UserHandler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := h.accounts.GetAvatar(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "avatar not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load avatar")
		return
	}

	w.Header().Set("Content-Type", avatarContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
