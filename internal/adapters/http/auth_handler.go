package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskvault/core/internal/application/services"
	"github.com/taskvault/core/internal/domain/entities"
	"github.com/taskvault/core/internal/infrastructure/logger"
	"github.com/taskvault/core/internal/infrastructure/token"
	"github.com/taskvault/core/internal/ports"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	authService *services.AuthService
	tokens      *token.Service
	logger      *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService, tokens *token.Service, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		tokens:      tokens,
		logger:      logger,
	}
}

// Register handles user registration. On success the identity cookie is
// set so a fresh registration is already logged in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req ports.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.authService.Register(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, entities.ErrEmailTaken) {
			return echo.NewHTTPError(http.StatusConflict, "Email already registered")
		}
		h.logger.Errorw("Registration failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	if err := h.setIdentityCookie(c, user); err != nil {
		h.logger.Errorw("Failed to issue token", "error", err, "user_id", user.ID)
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	return c.JSON(http.StatusCreated, AuthResponse{
		Message: "Registration successful",
		User:    newUserResponse(user),
	})
}

// Login handles user login. Credential failures return a generic 401
// that never reveals which factor failed.
func (h *AuthHandler) Login(c echo.Context) error {
	var req ports.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.authService.Login(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, entities.ErrInvalidCredentials) {
			h.logger.LogSecurityEvent("login_failed", "", c.RealIP(), map[string]interface{}{
				"email": req.Email,
			})
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
		}
		h.logger.Errorw("Login failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	if err := h.setIdentityCookie(c, user); err != nil {
		h.logger.Errorw("Failed to issue token", "error", err, "user_id", user.ID)
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	return c.JSON(http.StatusOK, AuthResponse{
		Message: "Login successful",
		User:    newUserResponse(user),
	})
}

// Logout clears the identity cookie. The signed token itself stays
// valid until expiry; there is no server-side revocation list.
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(h.tokens.ClearCookie())
	return c.JSON(http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

// Me returns the identity carried by the current token.
func (h *AuthHandler) Me(c echo.Context) error {
	claims, ok := h.tokens.FromRequest(c.Request())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"user": map[string]string{
			"id":    claims.UserID,
			"name":  claims.Name,
			"email": claims.Email,
		},
	})
}

func (h *AuthHandler) setIdentityCookie(c echo.Context, user *entities.User) error {
	signed, err := h.tokens.Issue(user.ID, user.Email, user.Name)
	if err != nil {
		return err
	}
	c.SetCookie(h.tokens.Cookie(signed))
	return nil
}
