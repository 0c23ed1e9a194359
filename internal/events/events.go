// Package events holds the side effects emitted by core operations. Core
// operations never write notifications themselves; they return events and
// the caller hands them to consumers.
package events

import (
	"context"
	"time"

	"github.com/anonto42/meta-v/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Event is a social event directed at one recipient.
type Event struct {
	// ID becomes the id of the notification rendered from the event, so
	// every consumer refers to the same entry.
	ID             primitive.ObjectID
	Kind           models.NotificationKind
	Recipient      primitive.ObjectID
	Source         primitive.ObjectID
	PostID         *primitive.ObjectID
	ConversationID *primitive.ObjectID
	// Message is set for message events so live consumers can push it.
	Message *models.Message
	At      time.Time
}

func FriendRequest(to, from primitive.ObjectID, at time.Time) Event {
	return Event{ID: primitive.NewObjectID(), Kind: models.NotifyFriendRequest, Recipient: to, Source: from, At: at}
}

func FriendAccept(to, from primitive.ObjectID, at time.Time) Event {
	return Event{ID: primitive.NewObjectID(), Kind: models.NotifyFriendAccept, Recipient: to, Source: from, At: at}
}

func Like(to, from, post primitive.ObjectID, at time.Time) Event {
	return Event{ID: primitive.NewObjectID(), Kind: models.NotifyLike, Recipient: to, Source: from, PostID: &post, At: at}
}

func Comment(to, from, post primitive.ObjectID, at time.Time) Event {
	return Event{ID: primitive.NewObjectID(), Kind: models.NotifyComment, Recipient: to, Source: from, PostID: &post, At: at}
}

func Message(to primitive.ObjectID, msg *models.Message) Event {
	conv := msg.ConversationID
	return Event{
		ID:             primitive.NewObjectID(),
		Kind:           models.NotifyMessage,
		Recipient:      to,
		Source:         msg.SenderID,
		ConversationID: &conv,
		Message:        msg,
		At:             msg.CreatedAt,
	}
}

// Notification renders the event as a log entry for its recipient.
func (e Event) Notification() models.Notification {
	return models.Notification{
		ID:             e.ID,
		Kind:           e.Kind,
		From:           e.Source,
		PostID:         e.PostID,
		ConversationID: e.ConversationID,
		Read:           false,
		CreatedAt:      e.At,
	}
}

// Consumer receives events after the operation that produced them has
// committed. Consumers are best-effort and never fail the operation.
type Consumer interface {
	Consume(ctx context.Context, evs []Event)
}

// Dispatcher fans events out to every registered consumer in order.
type Dispatcher struct {
	consumers []Consumer
}

func NewDispatcher(consumers ...Consumer) *Dispatcher {
	return &Dispatcher{consumers: consumers}
}

// Add registers another consumer.
func (d *Dispatcher) Add(c Consumer) {
	d.consumers = append(d.consumers, c)
}

// Dispatch hands evs to each consumer.
func (d *Dispatcher) Dispatch(ctx context.Context, evs []Event) {
	if d == nil || len(evs) == 0 {
		return
	}
	for _, c := range d.consumers {
		c.Consume(ctx, evs)
	}
}
