package services

import (
	"context"
	"log"

	"github.com/anonto42/meta-v/backend/internal/events"
	"github.com/anonto42/meta-v/backend/internal/models"
	"github.com/anonto42/meta-v/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationService is the notification sink: it appends one entry per
// consumed event and serves the per-user log.
type NotificationService struct {
	notifications repositories.NotificationRepository
	users         repositories.UserRepository
}

func NewNotificationService(notifications repositories.NotificationRepository, users repositories.UserRepository) *NotificationService {
	return &NotificationService{notifications: notifications, users: users}
}

// Consume implements events.Consumer.
func (s *NotificationService) Consume(ctx context.Context, evs []events.Event) {
	for _, ev := range evs {
		if err := s.notifications.AppendNotification(ctx, ev.Recipient, ev.Notification()); err != nil {
			log.Printf("Failed to append %s notification for %s: %v", ev.Kind, ev.Recipient.Hex(), err)
		}
	}
}

// List returns the actor's notifications newest first with the source
// user attached.
func (s *NotificationService) List(ctx context.Context, actor primitive.ObjectID) ([]models.NotificationView, error) {
	ns, err := s.notifications.ListNotifications(ctx, actor)
	if err != nil {
		return nil, storeErr(err, "user")
	}

	seen := make(map[primitive.ObjectID]bool)
	var ids []primitive.ObjectID
	for _, n := range ns {
		if !seen[n.From] {
			seen[n.From] = true
			ids = append(ids, n.From)
		}
	}
	actors, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	byID := make(map[primitive.ObjectID]models.UserCompact, len(actors))
	for i := range actors {
		byID[actors[i].ID] = actors[i].ToCompact()
	}

	views := make([]models.NotificationView, 0, len(ns))
	for _, n := range ns {
		actor, ok := byID[n.From]
		if !ok {
			actor = models.UserCompact{ID: n.From}
		}
		views = append(views, models.NotificationView{Notification: n, Actor: actor})
	}
	return views, nil
}

// UnreadCount returns how many of the actor's notifications are unread.
func (s *NotificationService) UnreadCount(ctx context.Context, actor primitive.ObjectID) (int64, error) {
	n, err := s.notifications.UnreadCount(ctx, actor)
	if err != nil {
		return 0, storeErr(err, "user")
	}
	return n, nil
}

// MarkRead flags one notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, actor, notificationID primitive.ObjectID) error {
	return storeErr(s.notifications.MarkAsRead(ctx, actor, notificationID), "notification")
}

// MarkAllRead flags every notification of the actor as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, actor primitive.ObjectID) error {
	return storeErr(s.notifications.MarkAllAsRead(ctx, actor), "user")
}
