package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/anonto42/meta-v/backend/internal/apperr"
	"github.com/anonto42/meta-v/backend/internal/middleware"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// httpError converts a core error into the JSON error body
// {"error": kind, "message": msg}.
func httpError(err error) error {
	if he, ok := err.(*echo.HTTPError); ok {
		return he
	}
	kind := apperr.KindOf(err)
	msg := "internal server error"
	var e *apperr.Error
	if errors.As(err, &e) && kind != apperr.KindInternal {
		msg = e.Message
	}
	if kind == apperr.KindInternal || kind == apperr.KindPartialFailure {
		log.Printf("request failed: %v", err)
	}
	if kind == apperr.KindPartialFailure {
		msg = "the change was only partially applied, please retry"
	}
	return echo.NewHTTPError(apperr.HTTPStatus(kind), map[string]string{
		"error":   string(kind),
		"message": msg,
	})
}

func badRequest(msg string) error {
	return httpError(apperr.Validation(msg))
}

// currentUser returns the actor set by the JWT middleware.
func currentUser(c echo.Context) (primitive.ObjectID, error) {
	id, ok := middleware.Actor(c)
	if !ok {
		return primitive.NilObjectID, httpError(apperr.Unauthorized("authentication required"))
	}
	return id, nil
}

func objectIDParam(c echo.Context, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		return primitive.NilObjectID, badRequest("invalid " + name)
	}
	return id, nil
}

// bindAndValidate binds the request body and runs the echo validator.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return badRequest("invalid request payload")
	}
	if err := c.Validate(req); err != nil {
		return httpError(err)
	}
	return nil
}

// maxPage caps the page query so the computed skip stays small and positive.
const maxPage = 10000

// pagination reads page/limit query parameters, defaulting to the first
// page of defaultLimit items.
func pagination(c echo.Context, defaultLimit int) (skip, limit int64, page int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	l, _ := strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if l < 1 || l > 50 {
		l = defaultLimit
	}
	return int64((page - 1) * l), int64(l), page
}

func jsonOK(c echo.Context, v interface{}) error {
	return c.JSON(http.StatusOK, v)
}
