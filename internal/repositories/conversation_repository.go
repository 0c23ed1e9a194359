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

// ConversationRepository defines the interface for conversation data operations
type ConversationRepository interface {
	// GetOrCreate returns the conversation of the unordered pair (a, b),
	// creating it with zeroed unread counters if none exists. created
	// reports whether this call inserted it.
	GetOrCreate(ctx context.Context, a, b primitive.ObjectID) (conv *models.Conversation, created bool, err error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error)
	ListByParticipant(ctx context.Context, userID primitive.ObjectID) ([]models.Conversation, error)
	// RecordMessage bumps the recipient's unread counter and moves the
	// last-message pointer in one update.
	RecordMessage(ctx context.Context, id, recipient, messageID primitive.ObjectID) (*models.Conversation, error)
	ResetUnread(ctx context.Context, id, userID primitive.ObjectID) (*models.Conversation, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// MongoConversationRepository implements ConversationRepository for MongoDB
type MongoConversationRepository struct {
	collection *mongo.Collection
}

// NewMongoConversationRepository creates a new MongoConversationRepository
func NewMongoConversationRepository(db *mongo.Database) *MongoConversationRepository {
	return &MongoConversationRepository{collection: db.Collection("conversations")}
}

// EnsureIndexes creates the unique pair index and the participant index
func (r *MongoConversationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "pair_key", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "updated_at", Value: -1}}},
	})
	return err
}

// GetOrCreate upserts on the pair key. Two concurrent upserts can race on the
// unique index; the loser reads the winner's document.
func (r *MongoConversationRepository) GetOrCreate(ctx context.Context, a, b primitive.ObjectID) (*models.Conversation, bool, error) {
	key := models.PairKey(a, b)
	id := primitive.NewObjectID()
	now := time.Now()

	update := bson.M{"$setOnInsert": bson.M{
		"_id":          id,
		"participants": []primitive.ObjectID{a, b},
		"pair_key":     key,
		"unread_counts": bson.M{
			a.Hex(): 0,
			b.Hex(): 0,
		},
		"created_at": now,
		"updated_at": now,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var conv models.Conversation
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"pair_key": key}, update, opts).Decode(&conv)
	if err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			return nil, false, translate(err)
		}
		if err = r.collection.FindOne(ctx, bson.M{"pair_key": key}).Decode(&conv); err != nil {
			return nil, false, translate(err)
		}
		return &conv, false, nil
	}
	return &conv, conv.ID == id, nil
}

// GetByID retrieves a conversation by ID
func (r *MongoConversationRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&conv); err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}

// ListByParticipant retrieves the user's conversations, most recently active first
func (r *MongoConversationRepository) ListByParticipant(ctx context.Context, userID primitive.ObjectID) ([]models.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	convs := []models.Conversation{}
	if err = cursor.All(ctx, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// RecordMessage increments the recipient's unread counter
func (r *MongoConversationRepository) RecordMessage(ctx context.Context, id, recipient, messageID primitive.ObjectID) (*models.Conversation, error) {
	return r.findOneAndUpdate(ctx, id, bson.M{
		"$inc": bson.M{"unread_counts." + recipient.Hex(): 1},
		"$set": bson.M{"last_message_id": messageID, "updated_at": time.Now()},
	})
}

// ResetUnread zeroes the user's unread counter
func (r *MongoConversationRepository) ResetUnread(ctx context.Context, id, userID primitive.ObjectID) (*models.Conversation, error) {
	return r.findOneAndUpdate(ctx, id, bson.M{
		"$set": bson.M{"unread_counts." + userID.Hex(): 0},
	})
}

// Delete removes a conversation document
func (r *MongoConversationRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoConversationRepository) findOneAndUpdate(ctx context.Context, id primitive.ObjectID, update bson.M) (*models.Conversation, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var conv models.Conversation
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&conv); err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}
