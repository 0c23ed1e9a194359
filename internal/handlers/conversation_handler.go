package handlers

import (
	"net/http"

	"github.com/anonto42/meta-v/backend/internal/events"
	"github.com/anonto42/meta-v/backend/internal/models"
	"github.com/anonto42/meta-v/backend/internal/services"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ConversationHandler handles direct messaging
type ConversationHandler struct {
	messaging *services.MessagingService
	events    *events.Dispatcher
}

func NewConversationHandler(messaging *services.MessagingService, dispatcher *events.Dispatcher) *ConversationHandler {
	return &ConversationHandler{messaging: messaging, events: dispatcher}
}

// RegisterConversationRoutes registers conversation and message routes
func (h *ConversationHandler) RegisterConversationRoutes(g *echo.Group) {
	g.GET("/conversations", h.GetConversations)
	g.POST("/conversations", h.CreateConversation)
	g.DELETE("/conversations/:id", h.DeleteConversation)
	g.GET("/conversations/:id/messages", h.GetMessages)
	g.POST("/conversations/:id/messages", h.SendMessage)
	g.PUT("/conversations/:id/read", h.MarkRead)
}

func (h *ConversationHandler) GetConversations(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	convs, err := h.messaging.ListConversations(c.Request().Context(), actor)
	if err != nil {
		return httpError(err)
	}
	return jsonOK(c, convs)
}

// CreateConversation returns the thread with the recipient, creating it on
// first contact (201) and returning the existing one otherwise (200).
func (h *ConversationHandler) CreateConversation(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req models.CreateConversationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	recipient, err := primitive.ObjectIDFromHex(req.RecipientID)
	if err != nil {
		return badRequest("invalid recipient_id")
	}

	conv, created, err := h.messaging.GetOrCreateConversation(c.Request().Context(), actor, recipient)
	if err != nil {
		return httpError(err)
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, conv)
}

func (h *ConversationHandler) DeleteConversation(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.messaging.DeleteConversation(c.Request().Context(), actor, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetMessages lists the thread oldest first and marks it read
func (h *ConversationHandler) GetMessages(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}
	skip, limit := int64(0), int64(0)
	if c.QueryParam("page") != "" || c.QueryParam("limit") != "" {
		skip, limit, _ = pagination(c, 50)
	}
	msgs, err := h.messaging.ListMessages(c.Request().Context(), actor, id, skip, limit)
	if err != nil {
		return httpError(err)
	}
	return jsonOK(c, msgs)
}

func (h *ConversationHandler) SendMessage(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}
	var req models.SendMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	msg, evs, err := h.messaging.SendMessage(ctx, actor, id, req.Content)
	if err != nil {
		return httpError(err)
	}
	h.events.Dispatch(ctx, evs)
	return c.JSON(http.StatusCreated, msg)
}

func (h *ConversationHandler) MarkRead(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}
	conv, err := h.messaging.MarkRead(c.Request().Context(), actor, id)
	if err != nil {
		return httpError(err)
	}
	return jsonOK(c, conv)
}
