package middleware

import (
	"context"
	"log"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ActivityRecorder refreshes a user's last activity time.
type ActivityRecorder interface {
	Touch(ctx context.Context, userID primitive.ObjectID) error
}

// ActivityMiddleware refreshes last activity for the authenticated user on
// every request. It must run after JWTAuthMiddleware. A failed touch is
// logged and never fails the request.
func ActivityMiddleware(recorder ActivityRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if id, ok := Actor(c); ok {
				if err := recorder.Touch(c.Request().Context(), id); err != nil {
					log.Printf("Failed to update last activity for %s: %v", id.Hex(), err)
				}
			}
			return next(c)
		}
	}
}
