package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/anonto42/meta-v/backend/internal/apperr"
	"github.com/anonto42/meta-v/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestGetProfileRelationAndPrivacy(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob, carol := h.user(t, "alice"), h.user(t, "bob"), h.user(t, "carol")
	h.feed.CreatePost(ctx, alice, "hello", nil)

	if _, _, err := h.rel.SendRequest(ctx, bob, alice); err != nil {
		t.Fatal(err)
	}

	self, err := h.profiles.GetProfile(ctx, alice, alice)
	if err != nil || self.Relation != models.RelationSelf || len(self.User.IncomingRequests) != 1 {
		t.Fatalf("self view = %+v, %v", self, err)
	}

	view, err := h.profiles.GetProfile(ctx, bob, alice)
	if err != nil {
		t.Fatal(err)
	}
	if view.Relation != models.RelationPendingSent {
		t.Fatalf("bob sees %s", view.Relation)
	}
	if view.User.IncomingRequests != nil || len(view.Posts) != 1 {
		t.Fatalf("bob's view = %+v", view)
	}

	private := models.DefaultSettings()
	private.PrivateProfile = true
	if _, err := h.profiles.UpdateProfile(ctx, alice, models.UpdateProfileRequest{Bio: "pro gamer", Settings: &private}); err != nil {
		t.Fatal(err)
	}
	view, _ = h.profiles.GetProfile(ctx, carol, alice)
	if len(view.Posts) != 0 || view.User.Bio != "pro gamer" {
		t.Fatalf("private profile leaked posts: %+v", view)
	}

	if _, _, err := h.rel.AcceptRequest(ctx, alice, bob); err != nil {
		t.Fatal(err)
	}
	view, _ = h.profiles.GetProfile(ctx, bob, alice)
	if view.Relation != models.RelationFriends || len(view.Posts) != 1 {
		t.Fatalf("friend view = %+v", view)
	}
}

func TestSearchUsers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	me := h.user(t, "player0")
	for i := 1; i <= 12; i++ {
		h.user(t, "player"+strings.Repeat("x", i))
	}
	h.user(t, "other")

	_, err := h.profiles.SearchUsers(ctx, me, "  ")
	wantKind(t, err, apperr.KindValidation)

	got, err := h.profiles.SearchUsers(ctx, me, "PLAYER")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != SearchLimit {
		t.Fatalf("got %d results, want %d", len(got), SearchLimit)
	}
	for _, u := range got {
		if u.ID == me {
			t.Fatal("search must not return the caller")
		}
	}

	got, _ = h.profiles.SearchUsers(ctx, me, "oth")
	if len(got) != 1 || got[0].Username != "other" {
		t.Fatalf("got %+v", got)
	}
}

func TestGamesAndStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	me := h.user(t, "me")

	u, err := h.profiles.AddGame(ctx, me, models.Game{Name: "Valorant", Platform: "PC", Favorite: true})
	if err != nil || len(u.Games) != 1 {
		t.Fatalf("add game: %+v, %v", u, err)
	}
	_, err = h.profiles.AddGame(ctx, me, models.Game{Name: "valorant"})
	wantKind(t, err, apperr.KindConflict)

	_, err = h.profiles.RemoveGame(ctx, me, "Tetris")
	wantKind(t, err, apperr.KindNotFound)
	u, err = h.profiles.RemoveGame(ctx, me, "Valorant")
	if err != nil || len(u.Games) != 0 {
		t.Fatalf("remove game: %+v, %v", u, err)
	}

	_, err = h.profiles.UpdateStatus(ctx, me, "sleeping")
	wantKind(t, err, apperr.KindValidation)
	u, err = h.profiles.UpdateStatus(ctx, me, models.StatusBusy)
	if err != nil || u.Status != models.StatusBusy {
		t.Fatalf("status: %+v, %v", u, err)
	}
}

func TestUploadAvatarReplacesPrevious(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	me := h.user(t, "me")

	_, err := h.profiles.UploadAvatar(ctx, me, &Upload{Reader: strings.NewReader("gif"), Size: 3, ContentType: "text/plain"})
	wantKind(t, err, apperr.KindValidation)

	first, err := h.profiles.UploadAvatar(ctx, me, &Upload{Reader: strings.NewReader("one"), Size: 3, ContentType: "image/png"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := h.profiles.UploadAvatar(ctx, me, &Upload{Reader: strings.NewReader("two"), Size: 3, ContentType: "image/jpeg"})
	if err != nil {
		t.Fatal(err)
	}
	if first.Avatar == second.Avatar || !strings.HasPrefix(second.Avatar, "avatars/") {
		t.Fatalf("avatars %q %q", first.Avatar, second.Avatar)
	}
	if h.images.Len() != 1 {
		t.Fatalf("stored %d objects, want 1", h.images.Len())
	}
}

func TestTouchRefreshesLastActive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")

	before := time.Now()
	if err := h.profiles.Touch(ctx, alice); err != nil {
		t.Fatalf("touch: %v", err)
	}
	u := h.get(t, alice)
	if u.LastActive.Before(before) || u.Status != models.StatusOnline {
		t.Fatalf("last_active=%v status=%s", u.LastActive, u.Status)
	}

	wantKind(t, h.profiles.Touch(ctx, primitive.NewObjectID()), apperr.KindNotFound)
}
