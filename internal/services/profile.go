package services

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/anonto42/meta-v/backend/internal/apperr"
	"github.com/anonto42/meta-v/backend/internal/models"
	"github.com/anonto42/meta-v/backend/internal/repositories"
	"github.com/anonto42/meta-v/backend/pkg/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SearchLimit caps user search results.
const SearchLimit = 10

// profilePostLimit caps the posts embedded in a profile.
const profilePostLimit = 50

// ProfileService serves and edits user profiles.
type ProfileService struct {
	users  repositories.UserRepository
	feed   *FeedService
	images storage.ImageStore
}

func NewProfileService(users repositories.UserRepository, feed *FeedService, images storage.ImageStore) *ProfileService {
	return &ProfileService{users: users, feed: feed, images: images}
}

// GetProfile returns a user's profile, the viewer's relation to them and
// their latest posts. Pending request lists are only shown to their owner,
// and the posts of a private profile only to friends.
func (s *ProfileService) GetProfile(ctx context.Context, viewer, userID primitive.ObjectID) (*models.ProfileView, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	relation := user.RelationTo(viewer)
	switch relation {
	case models.RelationPendingSent:
		relation = models.RelationPendingReceived
	case models.RelationPendingReceived:
		relation = models.RelationPendingSent
	}

	if relation != models.RelationSelf {
		user.IncomingRequests = nil
		user.OutgoingRequests = nil
		if !user.Settings.ShowOnlineStatus {
			user.Status = ""
		}
	}

	view := &models.ProfileView{User: user, Relation: relation, Posts: []models.PostView{}}
	if user.Settings.PrivateProfile && relation != models.RelationSelf && relation != models.RelationFriends {
		return view, nil
	}
	posts, err := s.feed.ListUserPosts(ctx, viewer, userID, 0, profilePostLimit)
	if err != nil {
		return nil, err
	}
	view.Posts = posts
	return view, nil
}

// UpdateProfile replaces the actor's editable profile fields.
func (s *ProfileService) UpdateProfile(ctx context.Context, actor primitive.ObjectID, req models.UpdateProfileRequest) (*models.User, error) {
	user, err := s.users.UpdateProfile(ctx, actor, req.ToUpdate())
	return user, storeErr(err, "user")
}

// UploadAvatar stores a new avatar image and drops the previous one.
func (s *ProfileService) UploadAvatar(ctx context.Context, actor primitive.ObjectID, image *Upload) (*models.User, error) {
	if image == nil {
		return nil, apperr.Validation("avatar image is required")
	}
	if err := image.validate(); err != nil {
		return nil, err
	}
	current, err := s.users.GetUserByID(ctx, actor)
	if err != nil {
		return nil, storeErr(err, "user")
	}

	key, err := s.images.Put(ctx, "avatars", image.Reader, image.Size, image.ContentType)
	if err != nil {
		return nil, apperr.Internal("failed to store avatar", err)
	}
	user, err := s.users.UpdateAvatar(ctx, actor, key)
	if err != nil {
		s.dropImage(ctx, key)
		return nil, storeErr(err, "user")
	}
	if current.Avatar != "" {
		s.dropImage(ctx, current.Avatar)
	}
	return user, nil
}

// UpdateStatus sets the actor's presence.
func (s *ProfileService) UpdateStatus(ctx context.Context, actor primitive.ObjectID, status string) (*models.User, error) {
	switch status {
	case models.StatusOnline, models.StatusOffline, models.StatusAway, models.StatusBusy:
	default:
		return nil, apperr.Validation("invalid status")
	}
	user, err := s.users.UpdateStatus(ctx, actor, status)
	return user, storeErr(err, "user")
}

// Touch refreshes the actor's last activity time.
func (s *ProfileService) Touch(ctx context.Context, actor primitive.ObjectID) error {
	return storeErr(s.users.TouchLastActive(ctx, actor, time.Now()), "user")
}

// SearchUsers finds other users by username or email.
func (s *ProfileService) SearchUsers(ctx context.Context, actor primitive.ObjectID, query string) ([]models.UserCompact, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("search query is required")
	}
	users, err := s.users.SearchUsers(ctx, query, SearchLimit+1)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	out := make([]models.UserCompact, 0, len(users))
	for i := range users {
		if users[i].ID == actor || len(out) == SearchLimit {
			continue
		}
		out = append(out, users[i].ToCompact())
	}
	return out, nil
}

// AddGame adds a game to the actor's library. Names are unique per user.
func (s *ProfileService) AddGame(ctx context.Context, actor primitive.ObjectID, game models.Game) (*models.User, error) {
	game.Name = strings.TrimSpace(game.Name)
	if game.Name == "" {
		return nil, apperr.Validation("game name is required")
	}
	user, err := s.users.GetUserByID(ctx, actor)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	for _, g := range user.Games {
		if strings.EqualFold(g.Name, game.Name) {
			return nil, apperr.Conflict("game already in your library")
		}
	}
	user, err = s.users.AddGame(ctx, actor, game)
	return user, storeErr(err, "user")
}

// RemoveGame removes a game from the actor's library by name.
func (s *ProfileService) RemoveGame(ctx context.Context, actor primitive.ObjectID, name string) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, actor)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	found := false
	for _, g := range user.Games {
		if g.Name == name {
			found = true
			break
		}
	}
	if !found {
		return nil, apperr.NotFound("game not found")
	}
	user, err = s.users.RemoveGame(ctx, actor, name)
	return user, storeErr(err, "user")
}

func (s *ProfileService) dropImage(ctx context.Context, key string) {
	if err := s.images.Remove(ctx, key); err != nil {
		log.Printf("Failed to remove image %s: %v", key, err)
	}
}
