package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationKind enumerates the social events a user is notified about.
type NotificationKind string

const (
	NotifyFriendRequest NotificationKind = "friend_request"
	NotifyFriendAccept  NotificationKind = "friend_accept"
	NotifyLike          NotificationKind = "like"
	NotifyComment       NotificationKind = "comment"
	NotifyMessage       NotificationKind = "message"
)

// Notification is an entry of the append-only log embedded in the user
// document. Only Read ever changes after creation.
type Notification struct {
	ID             primitive.ObjectID  `json:"id" bson:"_id"`
	Kind           NotificationKind    `json:"kind" bson:"kind"`
	From           primitive.ObjectID  `json:"from" bson:"from"`
	PostID         *primitive.ObjectID `json:"post_id,omitempty" bson:"post_id,omitempty"`
	ConversationID *primitive.ObjectID `json:"conversation_id,omitempty" bson:"conversation_id,omitempty"`
	Read           bool                `json:"read" bson:"read"`
	CreatedAt      time.Time           `json:"created_at" bson:"created_at"`
}

// NotificationView includes actor info
type NotificationView struct {
	Notification
	Actor UserCompact `json:"actor"`
}
