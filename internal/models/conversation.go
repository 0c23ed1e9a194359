package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation is the unique thread between two participants. PairKey is
// derived from the sorted participant ids and carries a unique index.
type Conversation struct {
	ID            primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	Participants  []primitive.ObjectID `json:"participants" bson:"participants"`
	PairKey       string               `json:"-" bson:"pair_key"`
	UnreadCounts  map[string]int       `json:"-" bson:"unread_counts"`
	LastMessageID *primitive.ObjectID  `json:"last_message_id,omitempty" bson:"last_message_id,omitempty"`
	CreatedAt     time.Time            `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at" bson:"updated_at"`
}

// PairKey returns the order-independent key for two participants.
func PairKey(a, b primitive.ObjectID) string {
	x, y := a.Hex(), b.Hex()
	if y < x {
		x, y = y, x
	}
	return x + ":" + y
}

// HasParticipant reports whether id takes part in the conversation.
func (c *Conversation) HasParticipant(id primitive.ObjectID) bool {
	return containsID(c.Participants, id)
}

// Counterpart returns the participant that is not id.
func (c *Conversation) Counterpart(id primitive.ObjectID) primitive.ObjectID {
	for _, p := range c.Participants {
		if p != id {
			return p
		}
	}
	return primitive.NilObjectID
}

// UnreadFor returns the unread counter of a participant.
func (c *Conversation) UnreadFor(id primitive.ObjectID) int {
	return c.UnreadCounts[id.Hex()]
}

// Message is a single chat message.
type Message struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ConversationID primitive.ObjectID `json:"conversation_id" bson:"conversation_id"`
	SenderID       primitive.ObjectID `json:"sender_id" bson:"sender_id"`
	Content        string             `json:"content" bson:"content"`
	Read           bool               `json:"read" bson:"read"`
	ReadAt         *time.Time         `json:"read_at,omitempty" bson:"read_at,omitempty"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
}

// ConversationView is a conversation from one participant's perspective.
type ConversationView struct {
	Conversation
	OtherUser   UserCompact `json:"other_user"`
	UnreadCount int         `json:"unread_count"`
	LastMessage *Message    `json:"last_message,omitempty"`
}
