package handlers

import (
	"net/http"

	"github.com/anonto42/meta-v/backend/internal/models"
	"github.com/labstack/echo/v4"
)

func (h *PostHandler) AddComment(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}
	var req models.CreateCommentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	post, evs, err := h.feed.AddComment(ctx, actor, id, req.Content)
	if err != nil {
		return httpError(err)
	}
	h.events.Dispatch(ctx, evs)
	return c.JSON(http.StatusCreated, post)
}

func (h *PostHandler) DeleteComment(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	postID, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}
	commentID, err := objectIDParam(c, "commentId")
	if err != nil {
		return err
	}
	post, err := h.feed.DeleteComment(c.Request().Context(), actor, postID, commentID)
	if err != nil {
		return httpError(err)
	}
	return jsonOK(c, post)
}
