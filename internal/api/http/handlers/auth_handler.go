package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-service/internal/api/dto"
	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/service"
)

const bearerTokenType = "Bearer"

// AuthHandler exposes the login, refresh and logout endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Username == "" || req.Password == "" {
		return fiber.NewError(http.StatusBadRequest, "username and password required")
	}

	existingRefresh := c.Cookies(domain.TokenTypeRefresh.CookieName())

	result, err := h.auth.Login(c.Context(), req.Username, req.Password, existingRefresh)
	if err != nil {
		return err
	}

	if result.RefreshCookie != nil {
		c.Cookie(result.RefreshCookie)
	}

	return c.JSON(fiber.Map{
		"data": dto.JwtResponse{
			AccessToken: result.AccessToken,
			TokenType:   bearerTokenType,
			Username:    result.User.Username,
			Email:       result.User.Email,
			ExpiresAt:   result.ExpiresAt,
		},
	})
}

// Refresh handles GET /api/v1/auth/refresh-token.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	refreshCookie := c.Cookies(domain.TokenTypeRefresh.CookieName())

	result, err := h.auth.Refresh(c.Context(), refreshCookie)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": dto.JwtResponse{
			AccessToken: result.AccessToken,
			TokenType:   bearerTokenType,
			ExpiresAt:   result.ExpiresAt,
		},
	})
}

// Logout handles DELETE /api/v1/auth/logout. Always succeeds.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	cookie, err := h.auth.Logout()
	if err != nil {
		return err
	}
	c.Cookie(cookie)

	return c.JSON(fiber.Map{
		"data": dto.LogoutResponse{Status: "SUCCESS"},
	})
}
