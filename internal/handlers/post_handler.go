package handlers

import (
	"net/http"

	"github.com/anonto42/meta-v/backend/internal/events"
	"github.com/anonto42/meta-v/backend/internal/models"
	"github.com/anonto42/meta-v/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	feed   *services.FeedService
	events *events.Dispatcher
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(feed *services.FeedService, dispatcher *events.Dispatcher) *PostHandler {
	return &PostHandler{feed: feed, events: dispatcher}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.GET("/posts", h.GetPosts)
	g.POST("/posts", h.CreatePost)
	g.GET("/posts/:id", h.GetPost)
	g.DELETE("/posts/:id", h.DeletePost)
	g.PUT("/posts/:id/like", h.ToggleLike)
	g.POST("/posts/:id/comments", h.AddComment)
	g.DELETE("/posts/:id/comments/:commentId", h.DeleteComment)
}

// CreatePost accepts a multipart form with "content" and an optional "image"
func (h *PostHandler) CreatePost(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req models.CreatePostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	var image *services.Upload
	closeFn := func() {}
	if form, _ := c.MultipartForm(); form != nil {
		if image, closeFn, err = formImage(c, "image"); err != nil {
			return err
		}
	}
	defer closeFn()

	post, err := h.feed.CreatePost(c.Request().Context(), actor, req.Content, image)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, post)
}

// GetPost retrieves a post by ID
func (h *PostHandler) GetPost(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}
	post, err := h.feed.GetPost(c.Request().Context(), actor, id)
	if err != nil {
		return httpError(err)
	}
	return jsonOK(c, post)
}

// DeletePost deletes a post owned by the caller
func (h *PostHandler) DeletePost(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.feed.DeletePost(c.Request().Context(), actor, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

