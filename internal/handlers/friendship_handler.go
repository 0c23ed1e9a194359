package handlers

import (
	"context"
	"net/http"

	"github.com/anonto42/meta-v/backend/internal/events"
	"github.com/anonto42/meta-v/backend/internal/models"
	"github.com/anonto42/meta-v/backend/internal/services"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FriendshipHandler handles HTTP requests related to friendships
type FriendshipHandler struct {
	relationships *services.RelationshipService
	events        *events.Dispatcher
}

// NewFriendshipHandler creates a new FriendshipHandler
func NewFriendshipHandler(relationships *services.RelationshipService, dispatcher *events.Dispatcher) *FriendshipHandler {
	return &FriendshipHandler{relationships: relationships, events: dispatcher}
}

// RegisterFriendshipRoutes registers friendship-related routes
func (h *FriendshipHandler) RegisterFriendshipRoutes(g *echo.Group) {
	g.GET("/friends", h.GetFriends)
	g.GET("/friends/requests/incoming", h.GetIncomingRequests)
	g.GET("/friends/requests/outgoing", h.GetOutgoingRequests)
	g.POST("/friends/requests/:userId", h.SendFriendRequest)
	g.POST("/friends/requests/:userId/accept", h.AcceptFriendRequest)
	g.POST("/friends/requests/:userId/reject", h.RejectFriendRequest)
	g.DELETE("/friends/requests/:userId", h.CancelFriendRequest)
	g.DELETE("/friends/:userId", h.Unfriend)
}

func (h *FriendshipHandler) SendFriendRequest(c echo.Context) error {
	return h.withEvents(c, http.StatusCreated, h.relationships.SendRequest)
}

func (h *FriendshipHandler) AcceptFriendRequest(c echo.Context) error {
	return h.withEvents(c, http.StatusOK, h.relationships.AcceptRequest)
}

func (h *FriendshipHandler) RejectFriendRequest(c echo.Context) error {
	return h.plain(c, h.relationships.RejectRequest)
}

func (h *FriendshipHandler) CancelFriendRequest(c echo.Context) error {
	return h.plain(c, h.relationships.CancelRequest)
}

// Unfriend removes an accepted friendship from both sides
func (h *FriendshipHandler) Unfriend(c echo.Context) error {
	return h.plain(c, h.relationships.Unfriend)
}

// GetFriends retrieves the list of friends for the authenticated user
func (h *FriendshipHandler) GetFriends(c echo.Context) error {
	return h.list(c, h.relationships.ListFriends)
}

func (h *FriendshipHandler) GetIncomingRequests(c echo.Context) error {
	return h.list(c, h.relationships.ListIncoming)
}

func (h *FriendshipHandler) GetOutgoingRequests(c echo.Context) error {
	return h.list(c, h.relationships.ListOutgoing)
}

type relationOp func(ctx context.Context, actor, other primitive.ObjectID) (*models.RelationshipResult, error)

type relationOpWithEvents func(ctx context.Context, actor, other primitive.ObjectID) (*models.RelationshipResult, []events.Event, error)

func (h *FriendshipHandler) withEvents(c echo.Context, status int, op relationOpWithEvents) error {
	actor, other, err := h.pair(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	res, evs, err := op(ctx, actor, other)
	if err != nil {
		return httpError(err)
	}
	h.events.Dispatch(ctx, evs)
	return c.JSON(status, res)
}

func (h *FriendshipHandler) plain(c echo.Context, op relationOp) error {
	actor, other, err := h.pair(c)
	if err != nil {
		return err
	}
	res, err := op(c.Request().Context(), actor, other)
	if err != nil {
		return httpError(err)
	}
	return jsonOK(c, res)
}

func (h *FriendshipHandler) list(c echo.Context, fn func(ctx context.Context, actor primitive.ObjectID) ([]models.UserCompact, error)) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	users, err := fn(c.Request().Context(), actor)
	if err != nil {
		return httpError(err)
	}
	return jsonOK(c, users)
}

func (h *FriendshipHandler) pair(c echo.Context) (actor, other primitive.ObjectID, err error) {
	if actor, err = currentUser(c); err != nil {
		return
	}
	other, err = objectIDParam(c, "userId")
	return
}
