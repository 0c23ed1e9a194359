package repositories

import (
	"context"
	"time"

	"github.com/anonto42/meta-v/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageRepository defines the interface for message data operations
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessageByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error)
	// ListByConversation returns messages oldest first.
	ListByConversation(ctx context.Context, conversationID primitive.ObjectID, skip, limit int64) ([]models.Message, error)
	// MarkReadFrom flags every unread message of sender in the conversation as read.
	MarkReadFrom(ctx context.Context, conversationID, senderID primitive.ObjectID, at time.Time) (int64, error)
	DeleteByConversation(ctx context.Context, conversationID primitive.ObjectID) error
}

// MongoMessageRepository implements MessageRepository for MongoDB
type MongoMessageRepository struct {
	collection *mongo.Collection
}

// NewMongoMessageRepository creates a new MongoMessageRepository
func NewMongoMessageRepository(db *mongo.Database) *MongoMessageRepository {
	return &MongoMessageRepository{collection: db.Collection("messages")}
}

// EnsureIndexes creates the per-conversation timeline index
func (r *MongoMessageRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	return err
}

// CreateMessage inserts a message
func (r *MongoMessageRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	_, err := r.collection.InsertOne(ctx, msg)
	return err
}

// GetMessageByID retrieves a message by ID
func (r *MongoMessageRepository) GetMessageByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	var msg models.Message
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&msg); err != nil {
		return nil, translate(err)
	}
	return &msg, nil
}

// ListByConversation retrieves a page of the conversation's messages
func (r *MongoMessageRepository) ListByConversation(ctx context.Context, conversationID primitive.ObjectID, skip, limit int64) ([]models.Message, error) {
	findOptions := options.Find().SetSkip(skip).SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		findOptions.SetLimit(limit)
	}
	cursor, err := r.collection.Find(ctx, bson.M{"conversation_id": conversationID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	msgs := []models.Message{}
	if err = cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkReadFrom sets read and read_at on the sender's unread messages
func (r *MongoMessageRepository) MarkReadFrom(ctx context.Context, conversationID, senderID primitive.ObjectID, at time.Time) (int64, error) {
	res, err := r.collection.UpdateMany(ctx,
		bson.M{"conversation_id": conversationID, "sender_id": senderID, "read": false},
		bson.M{"$set": bson.M{"read": true, "read_at": at}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// DeleteByConversation removes every message of a conversation
func (r *MongoMessageRepository) DeleteByConversation(ctx context.Context, conversationID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"conversation_id": conversationID})
	return err
}
