package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/taskhive/taskhive-be/internal/auth"
	"github.com/taskhive/taskhive-be/internal/avatar"
	"github.com/taskhive/taskhive-be/internal/http/respond"
	"github.com/taskhive/taskhive-be/internal/middleware"
	"github.com/taskhive/taskhive-be/internal/models"
	"github.com/taskhive/taskhive-be/internal/models/dto"
	"github.com/taskhive/taskhive-be/internal/notify"
	"github.com/taskhive/taskhive-be/internal/storage"
)

// allowedUserUpdates is the full set of fields a PATCH may touch. Anything
// else in the body rejects the whole request before any mutation happens.
var allowedUserUpdates = map[string]bool{
	"name":     true,
	"email":    true,
	"age":      true,
	"password": true,
}

// UserHandler owns registration, sessions, profile, and avatar endpoints.
type UserHandler struct {
	users      storage.UserStore
	tasks      storage.TaskStore
	tokens     *auth.TokenManager
	notifier   notify.Notifier
	bcryptCost int
}

// NewUserHandler constructs the handler.
func NewUserHandler(users storage.UserStore, tasks storage.TaskStore, tokens *auth.TokenManager, notifier notify.Notifier, bcryptCost int) *UserHandler {
	return &UserHandler{
		users:      users,
		tasks:      tasks,
		tokens:     tokens,
		notifier:   notifier,
		bcryptCost: bcryptCost,
	}
}

// Register attaches user routes to the mux. requireAuth wraps the routes
// that need a resolved identity.
func (h *UserHandler) Register(mux *http.ServeMux, requireAuth func(http.Handler) http.Handler) {
	mux.HandleFunc("POST /users", h.handleCreate)
	mux.HandleFunc("POST /users/login", h.handleLogin)
	mux.Handle("POST /users/logout", requireAuth(http.HandlerFunc(h.handleLogout)))
	mux.Handle("POST /users/logoutAll", requireAuth(http.HandlerFunc(h.handleLogoutAll)))
	mux.Handle("GET /users/me", requireAuth(http.HandlerFunc(h.handleMe)))
	mux.Handle("PATCH /users/me", requireAuth(http.HandlerFunc(h.handleUpdate)))
	mux.Handle("DELETE /users/me", requireAuth(http.HandlerFunc(h.handleDelete)))
	mux.Handle("POST /users/me/avatar", requireAuth(http.HandlerFunc(h.handleUploadAvatar)))
	mux.Handle("DELETE /users/me/avatar", requireAuth(http.HandlerFunc(h.handleDeleteAvatar)))
	mux.HandleFunc("GET /users/{id}/avatar", h.handleGetAvatar)
}

func (h *UserHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	if req.Name == "" {
		respond.Error(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := validateEmail(req.Email); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Age < 0 {
		respond.Error(w, http.StatusBadRequest, "age must not be negative")
		return
	}
	if err := validatePassword(req.Password); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	passwordHash, err := auth.HashPassword(req.Password, h.bcryptCost)
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user, err := h.users.CreateUser(r.Context(), models.User{
		Name:         req.Name,
		Email:        req.Email,
		Age:          req.Age,
		PasswordHash: passwordHash,
	})
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			respond.Error(w, http.StatusBadRequest, "email already in use")
			return
		}
		log.Printf("create user: %v", err)
		respond.Error(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	token, err := h.issueToken(r.Context(), user.ID)
	if err != nil {
		log.Printf("issue token for new user %s: %v", user.ID, err)
		respond.Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	h.notifier.Welcome(user.Email, user.Name)
	respond.JSON(w, http.StatusCreated, dto.AuthResponse{User: user, Token: token})
}

func (h *UserHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	user, err := auth.FindByCredentials(r.Context(), h.users, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("login lookup: %v", err)
		respond.Error(w, http.StatusInternalServerError, "failed to login")
		return
	}

	token, err := h.issueToken(r.Context(), user.ID)
	if err != nil {
		log.Printf("issue token for user %s: %v", user.ID, err)
		respond.Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	respond.JSON(w, http.StatusOK, dto.AuthResponse{User: user, Token: token})
}

func (h *UserHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())
	token, _ := middleware.TokenFrom(r.Context())

	if err := h.users.RemoveSessionToken(r.Context(), user.ID, token); err != nil {
		log.Printf("logout user %s: %v", user.ID, err)
		respond.Error(w, http.StatusInternalServerError, "failed to logout")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *UserHandler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	if err := h.users.ClearSessionTokens(r.Context(), user.ID); err != nil {
		log.Printf("logout all for user %s: %v", user.ID, err)
		respond.Error(w, http.StatusInternalServerError, "failed to logout")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *UserHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())
	respond.JSON(w, http.StatusOK, user)
}

func (h *UserHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	for key := range fields {
		if !allowedUserUpdates[key] {
			respond.Error(w, http.StatusBadRequest, "invalid update fields")
			return
		}
	}

	update, err := h.buildUserUpdate(fields)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.users.UpdateUser(r.Context(), user.ID, update)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadyExists):
			respond.Error(w, http.StatusBadRequest, "email already in use")
		case errors.Is(err, storage.ErrNotFound):
			respond.Error(w, http.StatusNotFound, "user not found")
		default:
			log.Printf("update user %s: %v", user.ID, err)
			respond.Error(w, http.StatusInternalServerError, "failed to update user")
		}
		return
	}

	respond.JSON(w, http.StatusOK, updated)
}

func (h *UserHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	deleted, err := h.users.DeleteUser(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("delete user %s: %v", user.ID, err)
		respond.Error(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	if err := h.tasks.DeleteTasksByOwner(r.Context(), user.ID); err != nil {
		log.Printf("cascade task delete for user %s: %v", user.ID, err)
	}

	h.notifier.Goodbye(deleted.Email, deleted.Name)
	respond.JSON(w, http.StatusOK, deleted)
}

func (h *UserHandler) handleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	file, header, err := r.FormFile("avatar")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "avatar file is required")
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, avatar.MaxUploadBytes+1))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	normalized, err := avatar.Process(raw, header.Filename, header.Size)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.users.SetAvatar(r.Context(), user.ID, normalized); err != nil {
		log.Printf("set avatar for user %s: %v", user.ID, err)
		respond.Error(w, http.StatusInternalServerError, "failed to store avatar")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *UserHandler) handleDeleteAvatar(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	if err := h.users.ClearAvatar(r.Context(), user.ID); err != nil {
		log.Printf("clear avatar for user %s: %v", user.ID, err)
		respond.Error(w, http.StatusInternalServerError, "failed to delete avatar")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *UserHandler) handleGetAvatar(w http.ResponseWriter, r *http.Request) {
	data, err := h.users.GetAvatar(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "avatar not found")
			return
		}
		log.Printf("get avatar: %v", err)
		respond.Error(w, http.StatusInternalServerError, "failed to load avatar")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Printf("write avatar response: %v", err)
	}
}

// issueToken signs a token for the user and records it as an active session.
func (h *UserHandler) issueToken(ctx context.Context, userID string) (string, error) {
	token, err := h.tokens.Generate(userID)
	if err != nil {
		return "", err
	}
	if err := h.users.AddSessionToken(ctx, userID, token); err != nil {
		return "", err
	}
	return token, nil
}

func (h *UserHandler) buildUserUpdate(fields map[string]json.RawMessage) (storage.UserUpdate, error) {
	var update storage.UserUpdate

	if raw, ok := fields["name"]; ok {
		var name string
		if err := json.Unmarshal(raw, &name); err != nil || strings.TrimSpace(name) == "" {
			return storage.UserUpdate{}, errors.New("name must be a non-empty string")
		}
		name = strings.TrimSpace(name)
		update.Name = &name
	}
	if raw, ok := fields["email"]; ok {
		var email string
		if err := json.Unmarshal(raw, &email); err != nil {
			return storage.UserUpdate{}, errors.New("email must be a string")
		}
		email = normalizeEmail(email)
		if err := validateEmail(email); err != nil {
			return storage.UserUpdate{}, err
		}
		update.Email = &email
	}
	if raw, ok := fields["age"]; ok {
		var age int
		if err := json.Unmarshal(raw, &age); err != nil || age < 0 {
			return storage.UserUpdate{}, errors.New("age must be a non-negative integer")
		}
		update.Age = &age
	}
	if raw, ok := fields["password"]; ok {
		var password string
		if err := json.Unmarshal(raw, &password); err != nil {
			return storage.UserUpdate{}, errors.New("password must be a string")
		}
		if err := validatePassword(password); err != nil {
			return storage.UserUpdate{}, err
		}
		// Plaintext never reaches the store; every password write is hashed.
		hash, err := auth.HashPassword(password, h.bcryptCost)
		if err != nil {
			return storage.UserUpdate{}, errors.New("failed to hash password")
		}
		update.PasswordHash = &hash
	}

	return update, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if strings.Count(email, "@") != 1 {
		return errors.New("invalid email address")
	}
	local, domain, _ := strings.Cut(email, "@")
	if local == "" || domain == "" {
		return errors.New("invalid email address")
	}
	return nil
}

// validatePassword enforces the minimum length and rejects passwords that
// literally contain "password", in any casing.
func validatePassword(password string) error {
	if len(password) < 7 {
		return errors.New("password must be at least 7 characters")
	}
	if strings.Contains(strings.ToLower(password), "password") {
		return errors.New(`password must not contain "password"`)
	}
	return nil
}
