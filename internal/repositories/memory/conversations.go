package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/anonto42/meta-v/backend/internal/models"
	"github.com/anonto42/meta-v/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversations implements repositories.ConversationRepository.
type Conversations struct {
	mu     sync.Mutex
	convs  map[primitive.ObjectID]*models.Conversation
	byPair map[string]primitive.ObjectID
}

func NewConversations() *Conversations {
	return &Conversations{
		convs:  make(map[primitive.ObjectID]*models.Conversation),
		byPair: make(map[string]primitive.ObjectID),
	}
}

func (s *Conversations) GetOrCreate(_ context.Context, a, b primitive.ObjectID) (*models.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.PairKey(a, b)
	if id, ok := s.byPair[key]; ok {
		return copyConversation(s.convs[id]), false, nil
	}
	now := time.Now()
	conv := &models.Conversation{
		ID:           primitive.NewObjectID(),
		Participants: []primitive.ObjectID{a, b},
		PairKey:      key,
		UnreadCounts: map[string]int{a.Hex(): 0, b.Hex(): 0},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.convs[conv.ID] = conv
	s.byPair[key] = conv.ID
	return copyConversation(conv), true, nil
}

func (s *Conversations) GetByID(_ context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return copyConversation(c), nil
}

func (s *Conversations) ListByParticipant(_ context.Context, userID primitive.ObjectID) ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Conversation{}
	for _, c := range s.convs {
		if c.HasParticipant(userID) {
			out = append(out, *copyConversation(c))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *Conversations) RecordMessage(_ context.Context, id, recipient, messageID primitive.ObjectID) (*models.Conversation, error) {
	return s.update(id, func(c *models.Conversation) {
		c.UnreadCounts[recipient.Hex()]++
		c.LastMessageID = &messageID
		c.UpdatedAt = time.Now()
	})
}

func (s *Conversations) ResetUnread(_ context.Context, id, userID primitive.ObjectID) (*models.Conversation, error) {
	return s.update(id, func(c *models.Conversation) {
		c.UnreadCounts[userID.Hex()] = 0
	})
}

func (s *Conversations) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[id]
	if !ok {
		return repositories.ErrNotFound
	}
	delete(s.byPair, c.PairKey)
	delete(s.convs, id)
	return nil
}

func (s *Conversations) update(id primitive.ObjectID, fn func(*models.Conversation)) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	next := copyConversation(c)
	fn(next)
	s.convs[id] = next
	return copyConversation(next), nil
}

func copyConversation(c *models.Conversation) *models.Conversation {
	out := *c
	out.Participants = append([]primitive.ObjectID{}, c.Participants...)
	out.UnreadCounts = make(map[string]int, len(c.UnreadCounts))
	for k, v := range c.UnreadCounts {
		out.UnreadCounts[k] = v
	}
	if c.LastMessageID != nil {
		id := *c.LastMessageID
		out.LastMessageID = &id
	}
	return &out
}

// Messages implements repositories.MessageRepository.
type Messages struct {
	mu   sync.Mutex
	msgs []*models.Message
}

func NewMessages() *Messages {
	return &Messages{}
}

func (s *Messages) CreateMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	c := *msg
	s.msgs = append(s.msgs, &c)
	return nil
}

func (s *Messages) GetMessageByID(_ context.Context, id primitive.ObjectID) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.msgs {
		if m.ID == id {
			c := *m
			return &c, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (s *Messages) ListByConversation(_ context.Context, conversationID primitive.ObjectID, skip, limit int64) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Message{}
	for _, m := range s.msgs {
		if m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	return page(out, skip, limit), nil
}

func (s *Messages) MarkReadFrom(_ context.Context, conversationID, senderID primitive.ObjectID, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, m := range s.msgs {
		if m.ConversationID == conversationID && m.SenderID == senderID && !m.Read {
			readAt := at
			m.Read = true
			m.ReadAt = &readAt
			n++
		}
	}
	return n, nil
}

func (s *Messages) DeleteByConversation(_ context.Context, conversationID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.msgs[:0]
	for _, m := range s.msgs {
		if m.ConversationID != conversationID {
			kept = append(kept, m)
		}
	}
	s.msgs = kept
	return nil
}
