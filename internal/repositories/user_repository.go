package repositories

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/anonto42/meta-v/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error)
	SetFirebaseUID(ctx context.Context, id primitive.ObjectID, firebaseUID string) error
	UpdateProfile(ctx context.Context, id primitive.ObjectID, update models.ProfileUpdate) (*models.User, error)
	UpdateAvatar(ctx context.Context, id primitive.ObjectID, avatar string) (*models.User, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) (*models.User, error)
	TouchLastActive(ctx context.Context, id primitive.ObjectID, at time.Time) error
	AddGame(ctx context.Context, id primitive.ObjectID, game models.Game) (*models.User, error)
	RemoveGame(ctx context.Context, id primitive.ObjectID, name string) (*models.User, error)
	SearchUsers(ctx context.Context, query string, limit int64) ([]models.User, error)
	// ApplyRelationChange mutates the relationship sets of one user document
	// atomically. It returns ErrNotFound if the user is missing or the
	// change's Require precondition does not hold, and ErrConflict if the
	// counterpart is already in one of the Forbid sets.
	ApplyRelationChange(ctx context.Context, id primitive.ObjectID, change models.RelationChange) error
}

// MongoUserRepository implements UserRepository for MongoDB
type MongoUserRepository struct {
	collection *mongo.Collection
}

// NewMongoUserRepository creates a new MongoUserRepository
func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{collection: db.Collection("users")}
}

// caseInsensitive compares strings ignoring case, so "Alice" and "alice"
// collide on the unique handle index.
var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

func userIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetCollation(caseInsensitive)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetCollation(caseInsensitive)},
		{Keys: bson.D{{Key: "firebase_uid", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "friends", Value: 1}}},
	}
}

// EnsureIndexes creates the unique indexes on handle, email and Firebase UID
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, userIndexes())
	return err
}

// CreateUser inserts a new user document
func (r *MongoUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	initUserSlices(user)
	_, err := r.collection.InsertOne(ctx, user)
	return translate(err)
}

// GetUserByID retrieves a user by ID
func (r *MongoUserRepository) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetUsersByIDs retrieves every user whose ID is listed; missing ids are skipped
func (r *MongoUserRepository) GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	users := []models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	opts := options.Find().SetProjection(bson.M{"notifications": 0, "password": 0})
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUserByEmail retrieves a user by email
func (r *MongoUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// GetUserByFirebaseUID retrieves a user by Firebase UID
func (r *MongoUserRepository) GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"firebase_uid": firebaseUID})
}

// SetFirebaseUID links a local account to a Firebase identity
func (r *MongoUserRepository) SetFirebaseUID(ctx context.Context, id primitive.ObjectID, firebaseUID string) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"firebase_uid": firebaseUID, "updated_at": time.Now()},
	})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile replaces the self-editable profile fields
func (r *MongoUserRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, update models.ProfileUpdate) (*models.User, error) {
	set := bson.M{
		"bio":          update.Bio,
		"location":     update.Location,
		"birth_date":   update.BirthDate,
		"interests":    nonNilStrings(update.Interests),
		"social_links": update.SocialLinks,
		"games":        nonNilGames(update.Games),
		"updated_at":   time.Now(),
	}
	if update.Settings != nil {
		set["settings"] = *update.Settings
	}
	return r.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set})
}

// UpdateAvatar stores the object key of the user's avatar
func (r *MongoUserRepository) UpdateAvatar(ctx context.Context, id primitive.ObjectID, avatar string) (*models.User, error) {
	return r.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"avatar": avatar, "updated_at": time.Now()},
	})
}

// UpdateStatus sets the presence status and refreshes last activity
func (r *MongoUserRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) (*models.User, error) {
	now := time.Now()
	return r.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"status": status, "last_active": now, "updated_at": now},
	})
}

// TouchLastActive records activity at the given time without changing status
func (r *MongoUserRepository) TouchLastActive(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"last_active": at}})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AddGame appends a game to the user's library
func (r *MongoUserRepository) AddGame(ctx context.Context, id primitive.ObjectID, game models.Game) (*models.User, error) {
	return r.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{
		"$push": bson.M{"games": game},
		"$set":  bson.M{"updated_at": time.Now()},
	})
}

// RemoveGame removes every library entry with the given name
func (r *MongoUserRepository) RemoveGame(ctx context.Context, id primitive.ObjectID, name string) (*models.User, error) {
	return r.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{
		"$pull": bson.M{"games": bson.M{"name": name}},
		"$set":  bson.M{"updated_at": time.Now()},
	})
}

// SearchUsers searches for users by username or email (case-insensitive)
func (r *MongoUserRepository) SearchUsers(ctx context.Context, query string, limit int64) ([]models.User, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	filter := bson.M{"$or": []bson.M{{"username": pattern}, {"email": pattern}}}
	opts := options.Find().
		SetLimit(limit).
		SetProjection(bson.M{"notifications": 0, "password": 0}).
		SetSort(bson.D{{Key: "username", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ApplyRelationChange adds/removes the counterpart in the named sets with a
// single UpdateOne, which MongoDB applies atomically per document.
func (r *MongoUserRepository) ApplyRelationChange(ctx context.Context, id primitive.ObjectID, change models.RelationChange) error {
	filter := relationFilter(id, change)
	update := bson.M{"$set": bson.M{"updated_at": time.Now()}}
	if len(change.Add) > 0 {
		add := bson.M{}
		for _, s := range change.Add {
			add[string(s)] = change.Counterpart
		}
		update["$addToSet"] = add
	}
	if len(change.Remove) > 0 {
		pull := bson.M{}
		for _, s := range change.Remove {
			pull[string(s)] = change.Counterpart
		}
		update["$pull"] = pull
	}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return r.unmatched(ctx, id, change)
	}
	return nil
}

// relationFilter matches the user only while the change's preconditions hold.
func relationFilter(id primitive.ObjectID, change models.RelationChange) bson.M {
	filter := bson.M{"_id": id}
	if change.Require != "" {
		filter[string(change.Require)] = change.Counterpart
	}
	for _, s := range change.Forbid {
		if s == change.Require {
			continue
		}
		filter[string(s)] = bson.M{"$ne": change.Counterpart}
	}
	return filter
}

// unmatched tells a missing document or failed Require apart from a Forbid
// rejection after a conditional update matched nothing.
func (r *MongoUserRepository) unmatched(ctx context.Context, id primitive.ObjectID, change models.RelationChange) error {
	if len(change.Forbid) == 0 {
		return ErrNotFound
	}
	user, err := r.findOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if change.Require != "" && !user.InSet(change.Require, change.Counterpart) {
		return ErrNotFound
	}
	if change.Forbidden(user) {
		return ErrConflict
	}
	// The document changed between the update and the read; let the caller retry.
	return fmt.Errorf("relation change on %s raced a concurrent write", id.Hex())
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := r.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *MongoUserRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user models.User
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&user); err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func initUserSlices(user *models.User) {
	if user.Friends == nil {
		user.Friends = []primitive.ObjectID{}
	}
	if user.IncomingRequests == nil {
		user.IncomingRequests = []primitive.ObjectID{}
	}
	if user.OutgoingRequests == nil {
		user.OutgoingRequests = []primitive.ObjectID{}
	}
	if user.Notifications == nil {
		user.Notifications = []models.Notification{}
	}
	user.Games = nonNilGames(user.Games)
	user.Interests = nonNilStrings(user.Interests)
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilGames(g []models.Game) []models.Game {
	if g == nil {
		return []models.Game{}
	}
	return g
}
