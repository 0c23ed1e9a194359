package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/anonto42/meta-v/backend/internal/models"
	"github.com/anonto42/meta-v/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// UserHandler handles HTTP requests related to users
type UserHandler struct {
	profiles *services.ProfileService
	feed     *services.FeedService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(profiles *services.ProfileService, feed *services.FeedService) *UserHandler {
	return &UserHandler{profiles: profiles, feed: feed}
}

// RegisterProfileRoutes registers user profile-related routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/users/search", h.SearchUsers)
	g.GET("/users/:id", h.GetUser)
	g.GET("/users/:id/posts", h.GetUserPosts)
	g.PUT("/profile", h.UpdateProfile)
	g.POST("/profile/avatar", h.UploadAvatar)
	g.PUT("/profile/status", h.UpdateStatus)
	g.POST("/profile/games", h.AddGame)
	g.DELETE("/profile/games/:name", h.RemoveGame)
}

// GetUser returns a profile together with the caller's relation to it
func (h *UserHandler) GetUser(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}
	profile, err := h.profiles.GetProfile(c.Request().Context(), actor, id)
	if err != nil {
		return httpError(err)
	}
	return jsonOK(c, profile)
}

func (h *UserHandler) GetUserPosts(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}
	skip, limit, _ := pagination(c, 10)
	posts, err := h.feed.ListUserPosts(c.Request().Context(), actor, id, skip, limit)
	if err != nil {
		return httpError(err)
	}
	return jsonOK(c, posts)
}

// UpdateProfile updates the authenticated user's profile
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req models.UpdateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.profiles.UpdateProfile(c.Request().Context(), actor, req)
	if err != nil {
		return httpError(err)
	}
	return jsonOK(c, user)
}

// UploadAvatar accepts a multipart "avatar" image
func (h *UserHandler) UploadAvatar(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	upload, closeFn, err := formImage(c, "avatar")
	if err != nil {
		return err
	}
	defer closeFn()

	user, err := h.profiles.UploadAvatar(c.Request().Context(), actor, upload)
	if err != nil {
		return httpError(err)
	}
	return jsonOK(c, user)
}

func (h *UserHandler) UpdateStatus(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req models.UpdateStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.profiles.UpdateStatus(c.Request().Context(), actor, req.Status)
	if err != nil {
		return httpError(err)
	}
	return jsonOK(c, user)
}

func (h *UserHandler) AddGame(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req models.AddGameRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.profiles.AddGame(c.Request().Context(), actor, req.Game)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) RemoveGame(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	name, err := url.PathUnescape(c.Param("name"))
	if err != nil {
		return badRequest("invalid game name")
	}
	user, err := h.profiles.RemoveGame(c.Request().Context(), actor, name)
	if err != nil {
		return httpError(err)
	}
	return jsonOK(c, user)
}

// SearchUsers searches by username or email
func (h *UserHandler) SearchUsers(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	users, err := h.profiles.SearchUsers(c.Request().Context(), actor, c.QueryParam("q"))
	if err != nil {
		return httpError(err)
	}
	return jsonOK(c, users)
}

// formImage opens an optional multipart file. A missing field yields a nil
// upload; the returned func closes the file.
func formImage(c echo.Context, field string) (*services.Upload, func(), error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, func() {}, nil
		}
		return nil, func() {}, badRequest("invalid multipart form")
	}
	if fh.Size > services.MaxImageSize {
		return nil, func() {}, badRequest("image must be at most 5MB")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, badRequest("unreadable " + field)
	}
	upload := &services.Upload{
		Reader:      f,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
	}
	return upload, func() { f.Close() }, nil
}
