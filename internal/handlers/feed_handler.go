package handlers

import "github.com/labstack/echo/v4"

// GetPosts lists the feed; sort is newest, oldest, popular or trending
func (h *PostHandler) GetPosts(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	skip, limit, page := pagination(c, 10)
	posts, err := h.feed.ListPosts(c.Request().Context(), actor, c.QueryParam("sort"), skip, limit)
	if err != nil {
		return httpError(err)
	}
	return jsonOK(c, echo.Map{
		"posts": posts,
		"page":  page,
		"limit": limit,
	})
}

