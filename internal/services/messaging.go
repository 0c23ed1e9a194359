package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/anonto42/meta-v/backend/internal/apperr"
	"github.com/anonto42/meta-v/backend/internal/events"
	"github.com/anonto42/meta-v/backend/internal/models"
	"github.com/anonto42/meta-v/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MessagingService relays direct messages between two participants.
type MessagingService struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	users         repositories.UserRepository
}

func NewMessagingService(conversations repositories.ConversationRepository, messages repositories.MessageRepository, users repositories.UserRepository) *MessagingService {
	return &MessagingService{conversations: conversations, messages: messages, users: users}
}

// GetOrCreateConversation returns the single conversation between actor and
// other. created reports whether it was opened by this call.
func (s *MessagingService) GetOrCreateConversation(ctx context.Context, actor, other primitive.ObjectID) (*models.ConversationView, bool, error) {
	if actor == other {
		return nil, false, apperr.InvalidOperation("you cannot start a conversation with yourself")
	}
	if _, err := s.users.GetUserByID(ctx, other); err != nil {
		return nil, false, storeErr(err, "user")
	}

	conv, created, err := s.conversations.GetOrCreate(ctx, actor, other)
	if err != nil {
		return nil, false, storeErr(err, "conversation")
	}
	view, err := s.view(ctx, actor, conv)
	if err != nil {
		return nil, false, err
	}
	return view, created, nil
}

// SendMessage stores a message from actor and bumps the other side's
// unread counter.
func (s *MessagingService) SendMessage(ctx context.Context, actor, conversationID primitive.ObjectID, text string) (*models.Message, []events.Event, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil, apperr.Validation("message content is required")
	}
	if utf8.RuneCountInString(text) > models.MaxMessageLength {
		return nil, nil, apperr.Validation("message must be at most 2000 characters")
	}
	conv, err := s.participantConversation(ctx, actor, conversationID)
	if err != nil {
		return nil, nil, err
	}

	msg := &models.Message{
		ID:             primitive.NewObjectID(),
		ConversationID: conv.ID,
		SenderID:       actor,
		Content:        text,
		CreatedAt:      time.Now(),
	}
	if err := s.messages.CreateMessage(ctx, msg); err != nil {
		return nil, nil, storeErr(err, "message")
	}

	recipient := conv.Counterpart(actor)
	if _, err := s.conversations.RecordMessage(ctx, conv.ID, recipient, msg.ID); err != nil {
		return nil, nil, storeErr(err, "conversation")
	}
	return msg, []events.Event{events.Message(recipient, msg)}, nil
}

// MarkRead zeroes the actor's unread counter and flags the counterpart's
// messages as read.
func (s *MessagingService) MarkRead(ctx context.Context, actor, conversationID primitive.ObjectID) (*models.ConversationView, error) {
	conv, err := s.participantConversation(ctx, actor, conversationID)
	if err != nil {
		return nil, err
	}
	if conv, err = s.markRead(ctx, actor, conv); err != nil {
		return nil, err
	}
	return s.view(ctx, actor, conv)
}

// ListConversations returns the actor's conversations, most recent first.
func (s *MessagingService) ListConversations(ctx context.Context, actor primitive.ObjectID) ([]models.ConversationView, error) {
	convs, err := s.conversations.ListByParticipant(ctx, actor)
	if err != nil {
		return nil, storeErr(err, "conversation")
	}

	ids := make([]primitive.ObjectID, 0, len(convs))
	for i := range convs {
		ids = append(ids, convs[i].Counterpart(actor))
	}
	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	byID := make(map[primitive.ObjectID]models.UserCompact, len(users))
	for i := range users {
		byID[users[i].ID] = users[i].ToCompact()
	}

	views := make([]models.ConversationView, 0, len(convs))
	for i := range convs {
		other := convs[i].Counterpart(actor)
		view := models.ConversationView{
			Conversation: convs[i],
			OtherUser:    byID[other],
			UnreadCount:  convs[i].UnreadFor(actor),
		}
		if view.OtherUser.ID.IsZero() {
			view.OtherUser.ID = other
		}
		if last, err := s.lastMessage(ctx, &convs[i]); err == nil {
			view.LastMessage = last
		}
		views = append(views, view)
	}
	return views, nil
}

// ListMessages returns the conversation's messages oldest first. Reading
// the thread marks it read for the actor.
func (s *MessagingService) ListMessages(ctx context.Context, actor, conversationID primitive.ObjectID, skip, limit int64) ([]models.Message, error) {
	conv, err := s.participantConversation(ctx, actor, conversationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.markRead(ctx, actor, conv); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByConversation(ctx, conv.ID, skip, limit)
	if err != nil {
		return nil, storeErr(err, "message")
	}
	return msgs, nil
}

// DeleteConversation removes a conversation and its messages.
func (s *MessagingService) DeleteConversation(ctx context.Context, actor, conversationID primitive.ObjectID) error {
	conv, err := s.participantConversation(ctx, actor, conversationID)
	if err != nil {
		return err
	}
	if err := s.messages.DeleteByConversation(ctx, conv.ID); err != nil {
		return storeErr(err, "message")
	}
	return storeErr(s.conversations.Delete(ctx, conv.ID), "conversation")
}

func (s *MessagingService) markRead(ctx context.Context, actor primitive.ObjectID, conv *models.Conversation) (*models.Conversation, error) {
	updated, err := s.conversations.ResetUnread(ctx, conv.ID, actor)
	if err != nil {
		return nil, storeErr(err, "conversation")
	}
	if _, err := s.messages.MarkReadFrom(ctx, conv.ID, conv.Counterpart(actor), time.Now()); err != nil {
		return nil, storeErr(err, "message")
	}
	return updated, nil
}

func (s *MessagingService) participantConversation(ctx context.Context, actor, conversationID primitive.ObjectID) (*models.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, storeErr(err, "conversation")
	}
	if !conv.HasParticipant(actor) {
		return nil, apperr.Forbidden("you are not a participant of this conversation")
	}
	return conv, nil
}

func (s *MessagingService) lastMessage(ctx context.Context, conv *models.Conversation) (*models.Message, error) {
	if conv.LastMessageID == nil {
		return nil, repositories.ErrNotFound
	}
	return s.messages.GetMessageByID(ctx, *conv.LastMessageID)
}

func (s *MessagingService) view(ctx context.Context, actor primitive.ObjectID, conv *models.Conversation) (*models.ConversationView, error) {
	other := conv.Counterpart(actor)
	view := &models.ConversationView{
		Conversation: *conv,
		OtherUser:    models.UserCompact{ID: other},
		UnreadCount:  conv.UnreadFor(actor),
	}
	if u, err := s.users.GetUserByID(ctx, other); err == nil {
		view.OtherUser = u.ToCompact()
	}
	if last, err := s.lastMessage(ctx, conv); err == nil {
		view.LastMessage = last
	}
	return view, nil
}
