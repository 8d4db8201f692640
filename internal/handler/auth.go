package handler

import (
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/propertyhub/internal/domain"
	"github.com/aryan0dhankhar/propertyhub/internal/service"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *service.AuthService
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// LoginRequest represents login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordRequest represents change password request
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) error {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, result)
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) error {
	var req service.RegisterInput
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	user, err := h.authService.Register(r.Context(), req)
	if err != nil {
		return err
	}

	h.logger.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return writeJSON(w, http.StatusCreated, user)
}

// ChangePassword handles POST /auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) error {
	actor, err := actorFrom(r)
	if err != nil {
		return err
	}

	var req ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if req.CurrentPassword == "" {
		return domain.Invalid("current_password is required")
	}

	if err := h.authService.ChangePassword(r.Context(), actor, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]string{"detail": "Password updated"})
}
