package handlers

import (
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LikeResponse is returned by the like toggle.
type LikeResponse struct {
	Liked     bool                 `json:"liked"`
	Likes     []primitive.ObjectID `json:"likes"`
	LikeCount int                  `json:"like_count"`
}

// ToggleLike likes or unlikes a post for the caller
func (h *PostHandler) ToggleLike(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	post, evs, err := h.feed.ToggleLike(ctx, actor, id)
	if err != nil {
		return httpError(err)
	}
	h.events.Dispatch(ctx, evs)
	return jsonOK(c, LikeResponse{
		Liked:     post.LikedBy(actor),
		Likes:     post.Likes,
		LikeCount: len(post.Likes),
	})
}

