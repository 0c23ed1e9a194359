package handlers

import (
	"github.com/anonto42/meta-v/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notifications *services.NotificationService
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.PUT("/notifications/read-all", h.MarkAllAsRead)
	g.PUT("/notifications/:id/read", h.MarkAsRead)
}

// GetNotifications returns the caller's notifications, newest first
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	list, err := h.notifications.List(c.Request().Context(), actor)
	if err != nil {
		return httpError(err)
	}
	return jsonOK(c, list)
}

func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	count, err := h.notifications.UnreadCount(c.Request().Context(), actor)
	if err != nil {
		return httpError(err)
	}
	return jsonOK(c, echo.Map{"count": count})
}

func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.notifications.MarkRead(c.Request().Context(), actor, id); err != nil {
		return httpError(err)
	}
	return jsonOK(c, echo.Map{"message": "notification marked as read"})
}

func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.notifications.MarkAllRead(c.Request().Context(), actor); err != nil {
		return httpError(err)
	}
	return jsonOK(c, echo.Map{"message": "all notifications marked as read"})
}
