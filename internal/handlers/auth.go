package handlers

import (
	"net/http"

	"github.com/anonto42/meta-v/backend/internal/models"
	"github.com/anonto42/meta-v/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	accounts *services.AccountService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(accounts *services.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

// RegisterAuthRoutes registers the public authentication routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	if h.accounts.FirebaseEnabled() {
		g.POST("/firebase-login", h.FirebaseLogin)
	}
}

// RegisterSessionRoutes registers the routes that need a token
func (h *AuthHandler) RegisterSessionRoutes(g *echo.Group) {
	g.GET("/auth/verify", h.Verify)
	g.POST("/auth/logout", h.Logout)
}

// Register handles local user registration with email and password
func (h *AuthHandler) Register(c echo.Context) error {
	var req models.RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	resp, err := h.accounts.Register(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login handles local user authentication with email and password
func (h *AuthHandler) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	resp, err := h.accounts.Login(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return jsonOK(c, resp)
}

// FirebaseLogin handles Firebase ID token verification and issues a local JWT
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	var req models.FirebaseLoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	resp, err := h.accounts.FirebaseLogin(c.Request().Context(), req.IDToken)
	if err != nil {
		return httpError(err)
	}
	return jsonOK(c, resp)
}

// Verify returns the account behind the presented token
func (h *AuthHandler) Verify(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	user, err := h.accounts.Verify(c.Request().Context(), actor)
	if err != nil {
		return httpError(err)
	}
	return jsonOK(c, user)
}

func (h *AuthHandler) Logout(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.accounts.Logout(c.Request().Context(), actor); err != nil {
		return httpError(err)
	}
	return jsonOK(c, echo.Map{"message": "logged out"})
}
