package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/anonto42/meta-v/backend/pkg/storage"
	"github.com/labstack/echo/v4"
)

// ImageHandler serves stored post images and avatars by object key.
type ImageHandler struct {
	images storage.ImageStore
}

func NewImageHandler(images storage.ImageStore) *ImageHandler {
	return &ImageHandler{images: images}
}

func (h *ImageHandler) RegisterImageRoutes(g *echo.Group) {
	g.GET("/images/*", h.GetImage)
}

func (h *ImageHandler) GetImage(c echo.Context) error {
	key := strings.TrimPrefix(c.Param("*"), "/")
	if key == "" || strings.Contains(key, "..") {
		return badRequest("invalid image key")
	}
	rc, contentType, err := h.images.Get(c.Request().Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, map[string]string{
				"error":   "not_found",
				"message": "image not found",
			})
		}
		return httpError(err)
	}
	defer rc.Close()

	c.Response().Header().Set("Cache-Control", "public, max-age=86400")
	return c.Stream(http.StatusOK, contentType, rc)
}
