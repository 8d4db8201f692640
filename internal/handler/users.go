package handler

import (
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/propertyhub/internal/domain"
	"github.com/aryan0dhankhar/propertyhub/internal/service"
)

// UserHandler serves account endpoints.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{users: users, logger: logger}
}

type statusRequest struct {
	Status domain.UserStatus `json:"status"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type createUserRequest struct {
	Email         string            `json:"email"`
	Password      string            `json:"password"`
	Role          domain.Role       `json:"role"`
	Status        domain.UserStatus `json:"status"`
	FirstName     string            `json:"first_name"`
	LastName      string            `json:"last_name"`
	EmailVerified bool              `json:"email_verified"`
}

// Me handles GET /users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) error {
	actor, err := actorFrom(r)
	if err != nil {
		return err
	}
	user, err := h.users.Get(r.Context(), actor, actor.ID)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, user)
}

// List handles GET /users?status=&role=&limit=&offset=
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) error {
	actor, err := actorFrom(r)
	if err != nil {
		return err
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		return err
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		return err
	}
	q := r.URL.Query()

	users, err := h.users.List(r.Context(), actor, domain.UserFilter{
		Status: domain.UserStatus(q.Get("status")),
		Role:   domain.Role(q.Get("role")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, users)
}

// Get handles GET /users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) error {
	actor, err := actorFrom(r)
	if err != nil {
		return err
	}
	user, err := h.users.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, user)
}

// Create handles POST /users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) error {
	actor, err := actorFrom(r)
	if err != nil {
		return err
	}
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	user, err := h.users.Create(r.Context(), actor, service.CreateUserInput(req))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, user)
}

// SetStatus handles PATCH /users/{id}/status
func (h *UserHandler) SetStatus(w http.ResponseWriter, r *http.Request) error {
	actor, err := actorFrom(r)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	user, err := h.users.SetStatus(r.Context(), actor, r.PathValue("id"), req.Status)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, user)
}

// ResetPassword handles POST /users/{id}/password
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) error {
	actor, err := actorFrom(r)
	if err != nil {
		return err
	}
	var req passwordRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	if err := h.users.ResetPassword(r.Context(), actor, r.PathValue("id"), req.Password); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// VerifyEmail handles POST /users/{id}/verify-email
func (h *UserHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) error {
	actor, err := actorFrom(r)
	if err != nil {
		return err
	}
	user, err := h.users.VerifyEmail(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, user)
}
