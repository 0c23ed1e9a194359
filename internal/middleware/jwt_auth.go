package middleware

import (
	"net/http"
	"strings"

	"github.com/anonto42/meta-v/backend/internal/services"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// actorKey is the echo context key holding the authenticated user id.
const actorKey = "userID"

// JWTAuthMiddleware checks for a valid JWT and stores the user id it was
// issued for. Browsers cannot set headers on a websocket handshake, so an
// upgrade request may carry the token as the "token" query parameter
// instead. Other requests must use the Authorization header.
func JWTAuthMiddleware(tokens *services.TokenManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := bearerToken(c)
			if err != nil {
				return err
			}

			userID, err := tokens.Verify(tokenString)
			if err != nil {
				return unauthorized("Invalid token")
			}

			c.Set(actorKey, userID)
			return next(c)
		}
	}
}

// Actor returns the authenticated user id set by JWTAuthMiddleware.
func Actor(c echo.Context) (primitive.ObjectID, bool) {
	id, ok := c.Get(actorKey).(primitive.ObjectID)
	return id, ok && !id.IsZero()
}

func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		if c.IsWebSocket() {
			if token := c.QueryParam("token"); token != "" {
				return token, nil
			}
		}
		return "", unauthorized("Missing Authorization header")
	}

	// Expecting "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", unauthorized("Invalid Authorization header format")
	}
	return parts[1], nil
}

func unauthorized(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusUnauthorized, map[string]string{
		"error":   "unauthorized",
		"message": msg,
	})
}
