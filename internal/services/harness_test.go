package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/meta-v/backend/internal/apperr"
	"github.com/anonto42/meta-v/backend/internal/events"
	"github.com/anonto42/meta-v/backend/internal/models"
	"github.com/anonto42/meta-v/backend/internal/repositories"
	"github.com/anonto42/meta-v/backend/internal/repositories/memory"
	"github.com/anonto42/meta-v/backend/pkg/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var errFlaky = errors.New("connection reset by peer")

// flakyUsers fails relationship writes on one user document.
type flakyUsers struct {
	repositories.UserRepository

	mu       sync.Mutex
	failFor  primitive.ObjectID
	failures int // remaining failures, -1 fails forever
	calls    int
}

func (f *flakyUsers) ApplyRelationChange(ctx context.Context, id primitive.ObjectID, change models.RelationChange) error {
	f.mu.Lock()
	if id == f.failFor {
		f.calls++
		if f.failures != 0 {
			if f.failures > 0 {
				f.failures--
			}
			f.mu.Unlock()
			return errFlaky
		}
	}
	f.mu.Unlock()
	return f.UserRepository.ApplyRelationChange(ctx, id, change)
}

func (f *flakyUsers) failOn(id primitive.ObjectID, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFor, f.failures, f.calls = id, n, 0
}

type harness struct {
	store    *memory.Users
	users    *flakyUsers
	posts    *memory.Posts
	convs    *memory.Conversations
	msgs     *memory.Messages
	repairs  *memory.Repairs
	images   *storage.MemoryStore
	tokens   *TokenManager
	rel      *RelationshipService
	feed     *FeedService
	notes    *NotificationService
	chat     *MessagingService
	profiles *ProfileService
	accounts *AccountService
	events   *events.Dispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:   memory.NewUsers(),
		posts:   memory.NewPosts(),
		convs:   memory.NewConversations(),
		msgs:    memory.NewMessages(),
		repairs: memory.NewRepairs(),
		images:  storage.NewMemoryStore(),
		tokens:  NewTokenManager("test-secret", time.Hour),
	}
	h.users = &flakyUsers{UserRepository: h.store}
	saga := NewSaga(h.users, h.repairs, SagaConfig{MaxAttempts: 3, RetryInterval: time.Millisecond})
	h.rel = NewRelationshipService(h.users, saga)
	h.feed = NewFeedService(h.posts, h.users, h.images)
	h.notes = NewNotificationService(h.store, h.users)
	h.chat = NewMessagingService(h.convs, h.msgs, h.users)
	h.profiles = NewProfileService(h.users, h.feed, h.images)
	h.accounts = NewAccountService(h.users, h.tokens, nil)
	h.events = events.NewDispatcher(h.notes)
	return h
}

func (h *harness) user(t *testing.T, name string) primitive.ObjectID {
	t.Helper()
	u := &models.User{
		Username: name,
		Email:    name + "@example.com",
		Status:   models.StatusOnline,
		Settings: models.DefaultSettings(),
	}
	if err := h.store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return u.ID
}

func (h *harness) get(t *testing.T, id primitive.ObjectID) *models.User {
	t.Helper()
	u, err := h.store.GetUserByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	return u
}

func (h *harness) notifications(t *testing.T, id primitive.ObjectID) []models.NotificationView {
	t.Helper()
	ns, err := h.notes.List(context.Background(), id)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	return ns
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if !apperr.HasKind(err, kind) {
		t.Fatalf("expected %s error, got %v", kind, err)
	}
}

func ids(xs ...primitive.ObjectID) []primitive.ObjectID { return xs }

func sameIDs(a, b []primitive.ObjectID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
