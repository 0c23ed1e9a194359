package repositories

import (
	"context"

	"github.com/anonto42/meta-v/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NotificationRepository defines the interface for notification operations.
// Notifications live inside the recipient's user document.
type NotificationRepository interface {
	AppendNotification(ctx context.Context, userID primitive.ObjectID, n models.Notification) error
	// ListNotifications returns the log newest first.
	ListNotifications(ctx context.Context, userID primitive.ObjectID) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error)
	MarkAsRead(ctx context.Context, userID, notificationID primitive.ObjectID) error
	MarkAllAsRead(ctx context.Context, userID primitive.ObjectID) error
}

// MongoNotificationRepository implements NotificationRepository on the users collection
type MongoNotificationRepository struct {
	collection *mongo.Collection
}

// NewMongoNotificationRepository creates a new MongoNotificationRepository
func NewMongoNotificationRepository(db *mongo.Database) *MongoNotificationRepository {
	return &MongoNotificationRepository{collection: db.Collection("users")}
}

// AppendNotification pushes an entry onto the user's notification log
func (r *MongoNotificationRepository) AppendNotification(ctx context.Context, userID primitive.ObjectID, n models.Notification) error {
	return r.updateOne(ctx, bson.M{"_id": userID}, bson.M{"$push": bson.M{"notifications": n}})
}

// ListNotifications retrieves the user's notifications
func (r *MongoNotificationRepository) ListNotifications(ctx context.Context, userID primitive.ObjectID) ([]models.Notification, error) {
	var doc struct {
		Notifications []models.Notification `bson:"notifications"`
	}
	opts := options.FindOne().SetProjection(bson.M{"notifications": 1})
	if err := r.collection.FindOne(ctx, bson.M{"_id": userID}, opts).Decode(&doc); err != nil {
		return nil, translate(err)
	}

	out := make([]models.Notification, 0, len(doc.Notifications))
	for i := len(doc.Notifications) - 1; i >= 0; i-- {
		out = append(out, doc.Notifications[i])
	}
	return out, nil
}

// UnreadCount counts unread entries server-side
func (r *MongoNotificationRepository) UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": userID}}},
		{{Key: "$project", Value: bson.M{"unread": bson.M{"$size": bson.M{"$filter": bson.M{
			"input": bson.M{"$ifNull": bson.A{"$notifications", bson.A{}}},
			"as":    "n",
			"cond":  bson.M{"$eq": bson.A{"$$n.read", false}},
		}}}}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Unread int64 `bson:"unread"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, ErrNotFound
	}
	return rows[0].Unread, nil
}

// MarkAsRead flips the read flag of one notification
func (r *MongoNotificationRepository) MarkAsRead(ctx context.Context, userID, notificationID primitive.ObjectID) error {
	return r.updateOne(ctx,
		bson.M{"_id": userID, "notifications._id": notificationID},
		bson.M{"$set": bson.M{"notifications.$.read": true}},
	)
}

// MarkAllAsRead flips the read flag of every notification
func (r *MongoNotificationRepository) MarkAllAsRead(ctx context.Context, userID primitive.ObjectID) error {
	return r.updateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": bson.M{"notifications.$[].read": true}})
}

func (r *MongoNotificationRepository) updateOne(ctx context.Context, filter, update bson.M) error {
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
