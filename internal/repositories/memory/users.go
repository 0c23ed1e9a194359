// Package memory provides in-process repositories with the same
// per-document atomicity as the MongoDB ones. Each document is mutated
// under a single lock and callers always receive copies.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anonto42/meta-v/backend/internal/models"
	"github.com/anonto42/meta-v/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Users stores user documents, including their embedded notification log.
// It implements repositories.UserRepository and
// repositories.NotificationRepository.
type Users struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]*models.User
}

var (
	_ repositories.UserRepository         = (*Users)(nil)
	_ repositories.NotificationRepository = (*Users)(nil)
	_ repositories.PostRepository         = (*Posts)(nil)
	_ repositories.ConversationRepository = (*Conversations)(nil)
	_ repositories.MessageRepository      = (*Messages)(nil)
	_ repositories.RepairRepository       = (*Repairs)(nil)
)

func NewUsers() *Users {
	return &Users{users: make(map[primitive.ObjectID]*models.User)}
}

func (s *Users) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Username, user.Username) || strings.EqualFold(u.Email, user.Email) {
			return repositories.ErrDuplicate
		}
		if user.FirebaseUID != "" && u.FirebaseUID == user.FirebaseUID {
			return repositories.ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = copyUser(user)
	return nil
}

func (s *Users) GetUserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return copyUser(u), nil
}

func (s *Users) GetUsersByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.User{}
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			c := copyUser(u)
			c.Password = ""
			c.Notifications = nil
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *Users) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return s.findFirst(func(u *models.User) bool { return u.Email == email })
}

func (s *Users) GetUserByFirebaseUID(_ context.Context, firebaseUID string) (*models.User, error) {
	return s.findFirst(func(u *models.User) bool { return u.FirebaseUID != "" && u.FirebaseUID == firebaseUID })
}

func (s *Users) SetFirebaseUID(_ context.Context, id primitive.ObjectID, firebaseUID string) error {
	_, err := s.update(id, func(u *models.User) error {
		u.FirebaseUID = firebaseUID
		return nil
	})
	return err
}

func (s *Users) UpdateProfile(_ context.Context, id primitive.ObjectID, update models.ProfileUpdate) (*models.User, error) {
	return s.update(id, func(u *models.User) error {
		u.Bio = update.Bio
		u.Location = update.Location
		u.BirthDate = update.BirthDate
		u.Interests = append([]string{}, update.Interests...)
		u.SocialLinks = update.SocialLinks
		u.Games = append([]models.Game{}, update.Games...)
		if update.Settings != nil {
			u.Settings = *update.Settings
		}
		return nil
	})
}

func (s *Users) UpdateAvatar(_ context.Context, id primitive.ObjectID, avatar string) (*models.User, error) {
	return s.update(id, func(u *models.User) error {
		u.Avatar = avatar
		return nil
	})
}

func (s *Users) TouchLastActive(_ context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := s.update(id, func(u *models.User) error {
		u.LastActive = at
		return nil
	})
	return err
}

func (s *Users) UpdateStatus(_ context.Context, id primitive.ObjectID, status string) (*models.User, error) {
	return s.update(id, func(u *models.User) error {
		u.Status = status
		u.LastActive = time.Now()
		return nil
	})
}

func (s *Users) AddGame(_ context.Context, id primitive.ObjectID, game models.Game) (*models.User, error) {
	return s.update(id, func(u *models.User) error {
		u.Games = append(u.Games, game)
		return nil
	})
}

func (s *Users) RemoveGame(_ context.Context, id primitive.ObjectID, name string) (*models.User, error) {
	return s.update(id, func(u *models.User) error {
		games := []models.Game{}
		for _, g := range u.Games {
			if g.Name != name {
				games = append(games, g)
			}
		}
		u.Games = games
		return nil
	})
}

func (s *Users) SearchUsers(_ context.Context, query string, limit int64) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(query)
	out := []models.User{}
	for _, u := range s.users {
		if strings.Contains(strings.ToLower(u.Username), q) || strings.Contains(strings.ToLower(u.Email), q) {
			c := copyUser(u)
			c.Password = ""
			c.Notifications = nil
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Users) ApplyRelationChange(_ context.Context, id primitive.ObjectID, change models.RelationChange) error {
	_, err := s.update(id, func(u *models.User) error {
		if change.Require != "" && !u.InSet(change.Require, change.Counterpart) {
			return repositories.ErrNotFound
		}
		if change.Forbidden(u) {
			return repositories.ErrConflict
		}
		change.Apply(u)
		return nil
	})
	return err
}

func (s *Users) AppendNotification(_ context.Context, userID primitive.ObjectID, n models.Notification) error {
	_, err := s.update(userID, func(u *models.User) error {
		u.Notifications = append(u.Notifications, n)
		return nil
	})
	return err
}

func (s *Users) ListNotifications(_ context.Context, userID primitive.ObjectID) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := make([]models.Notification, 0, len(u.Notifications))
	for i := len(u.Notifications) - 1; i >= 0; i-- {
		out = append(out, u.Notifications[i])
	}
	return out, nil
}

func (s *Users) UnreadCount(_ context.Context, userID primitive.ObjectID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return 0, repositories.ErrNotFound
	}
	var n int64
	for _, x := range u.Notifications {
		if !x.Read {
			n++
		}
	}
	return n, nil
}

func (s *Users) MarkAsRead(_ context.Context, userID, notificationID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	for i := range u.Notifications {
		if u.Notifications[i].ID == notificationID {
			u.Notifications[i].Read = true
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (s *Users) MarkAllAsRead(_ context.Context, userID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	for i := range u.Notifications {
		u.Notifications[i].Read = true
	}
	return nil
}

func (s *Users) findFirst(match func(*models.User) bool) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if match(u) {
			return copyUser(u), nil
		}
	}
	return nil, repositories.ErrNotFound
}

// update runs fn on the stored document under the write lock. A non-nil
// error from fn leaves the document untouched.
func (s *Users) update(id primitive.ObjectID, fn func(*models.User) error) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	next := copyUser(u)
	if err := fn(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now()
	s.users[id] = next
	return copyUser(next), nil
}

func copyUser(u *models.User) *models.User {
	c := *u
	c.Friends = append([]primitive.ObjectID{}, u.Friends...)
	c.IncomingRequests = append([]primitive.ObjectID{}, u.IncomingRequests...)
	c.OutgoingRequests = append([]primitive.ObjectID{}, u.OutgoingRequests...)
	c.Notifications = append([]models.Notification{}, u.Notifications...)
	c.Games = append([]models.Game{}, u.Games...)
	c.Interests = append([]string{}, u.Interests...)
	return &c
}
