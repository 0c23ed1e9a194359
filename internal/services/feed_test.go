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

func TestLikeScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	carol, dave := h.user(t, "carol"), h.user(t, "dave")

	post, err := h.feed.CreatePost(ctx, carol, "hello", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	liked, evs, err := h.feed.ToggleLike(ctx, dave, post.ID)
	if err != nil {
		t.Fatalf("like: %v", err)
	}
	h.events.Dispatch(ctx, evs)
	if !sameIDs(liked.Likes, ids(dave)) {
		t.Fatalf("likes = %v", liked.Likes)
	}
	ns := h.notifications(t, carol)
	if len(ns) != 1 || ns[0].Kind != models.NotifyLike || ns[0].From != dave || ns[0].Read {
		t.Fatalf("notifications = %+v", ns)
	}
	if ns[0].PostID == nil || *ns[0].PostID != post.ID {
		t.Fatal("like notification should target the post")
	}

	unliked, evs, err := h.feed.ToggleLike(ctx, dave, post.ID)
	if err != nil {
		t.Fatalf("unlike: %v", err)
	}
	h.events.Dispatch(ctx, evs)
	if len(unliked.Likes) != 0 {
		t.Fatalf("likes = %v, want empty", unliked.Likes)
	}
	if len(evs) != 0 || len(h.notifications(t, carol)) != 1 {
		t.Fatal("unlike must not notify")
	}
}

func TestToggleLikeIsInvolution(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user(t, "owner")
	fans := []primitive.ObjectID{h.user(t, "fan1"), h.user(t, "fan2")}

	post, err := h.feed.CreatePost(ctx, owner, "gg", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := h.feed.ToggleLike(ctx, fans[0], post.ID); err != nil {
		t.Fatal(err)
	}
	start, _ := h.posts.GetPostByID(ctx, post.ID)

	for _, u := range append(fans, owner) {
		if _, _, err := h.feed.ToggleLike(ctx, u, post.ID); err != nil {
			t.Fatal(err)
		}
		after, _, err := h.feed.ToggleLike(ctx, u, post.ID)
		if err != nil {
			t.Fatal(err)
		}
		if !sameIDs(after.Likes, start.Likes) {
			t.Fatalf("double toggle by %s changed likes: %v -> %v", u.Hex(), start.Likes, after.Likes)
		}
	}
}

func TestSelfLikeDoesNotNotify(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user(t, "owner")

	post, _ := h.feed.CreatePost(ctx, owner, "mine", nil)
	p, evs, err := h.feed.ToggleLike(ctx, owner, post.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 0 || !p.LikedBy(owner) {
		t.Fatalf("self like: events=%v likes=%v", evs, p.Likes)
	}

	_, _, err = h.feed.ToggleLike(ctx, owner, primitive.NewObjectID())
	wantKind(t, err, apperr.KindNotFound)
}

func TestAddCommentValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner, other := h.user(t, "owner"), h.user(t, "other")
	post, _ := h.feed.CreatePost(ctx, owner, "hello", nil)

	for _, text := range []string{"", "   ", strings.Repeat("x", models.MaxCommentLength+1)} {
		_, _, err := h.feed.AddComment(ctx, other, post.ID, text)
		wantKind(t, err, apperr.KindValidation)
	}
	p, _ := h.posts.GetPostByID(ctx, post.ID)
	if len(p.Comments) != 0 {
		t.Fatalf("comments = %d, want 0", len(p.Comments))
	}

	_, _, err := h.feed.AddComment(ctx, other, primitive.NewObjectID(), "hi")
	wantKind(t, err, apperr.KindNotFound)
}

func TestAddCommentNotifiesOwnerOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner, other := h.user(t, "owner"), h.user(t, "other")
	post, _ := h.feed.CreatePost(ctx, owner, "hello", nil)

	p, evs, err := h.feed.AddComment(ctx, other, post.ID, "  nice shot  ")
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Comments) != 1 || p.Comments[0].Content != "nice shot" || p.Comments[0].UserID != other {
		t.Fatalf("comments = %+v", p.Comments)
	}
	if p.Author.ID != owner || p.CommentCount != 1 {
		t.Fatalf("post view author=%+v comment_count=%d", p.Author, p.CommentCount)
	}
	if len(evs) != 1 || evs[0].Kind != models.NotifyComment || evs[0].Recipient != owner {
		t.Fatalf("events = %+v", evs)
	}

	_, evs, err = h.feed.AddComment(ctx, owner, post.ID, "thanks")
	if err != nil || len(evs) != 0 {
		t.Fatalf("owner comment: events=%v err=%v", evs, err)
	}
}

func TestDeleteCommentPermissions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner, author, stranger := h.user(t, "owner"), h.user(t, "author"), h.user(t, "stranger")
	post, _ := h.feed.CreatePost(ctx, owner, "hello", nil)

	var commentIDs []primitive.ObjectID
	for _, text := range []string{"first", "second", "third"} {
		p, _, err := h.feed.AddComment(ctx, author, post.ID, text)
		if err != nil {
			t.Fatal(err)
		}
		commentIDs = append(commentIDs, p.Comments[len(p.Comments)-1].ID)
	}

	_, err := h.feed.DeleteComment(ctx, stranger, post.ID, commentIDs[0])
	wantKind(t, err, apperr.KindForbidden)
	stored, _ := h.posts.GetPostByID(ctx, post.ID)
	if len(stored.Comments) != 3 {
		t.Fatal("forbidden delete changed the comments")
	}

	_, err = h.feed.DeleteComment(ctx, author, post.ID, primitive.NewObjectID())
	wantKind(t, err, apperr.KindNotFound)

	p, err := h.feed.DeleteComment(ctx, author, post.ID, commentIDs[1])
	if err != nil {
		t.Fatalf("author delete: %v", err)
	}
	if len(p.Comments) != 2 || p.Comments[0].Content != "first" || p.Comments[1].Content != "third" {
		t.Fatalf("order not preserved: %+v", p.Comments)
	}

	p, err = h.feed.DeleteComment(ctx, owner, post.ID, commentIDs[0])
	if err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if len(p.Comments) != 1 || p.Comments[0].Content != "third" {
		t.Fatalf("comments = %+v", p.Comments)
	}
}

func TestCreatePostValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user(t, "owner")

	_, err := h.feed.CreatePost(ctx, owner, "  ", nil)
	wantKind(t, err, apperr.KindValidation)

	_, err = h.feed.CreatePost(ctx, owner, strings.Repeat("é", models.MaxPostLength+1), nil)
	wantKind(t, err, apperr.KindValidation)

	if _, err := h.feed.CreatePost(ctx, owner, strings.Repeat("é", models.MaxPostLength), nil); err != nil {
		t.Fatalf("280 runes should be accepted: %v", err)
	}

	_, err = h.feed.CreatePost(ctx, owner, "", &Upload{Reader: strings.NewReader("%PDF"), Size: 4, ContentType: "application/pdf"})
	wantKind(t, err, apperr.KindValidation)

	_, err = h.feed.CreatePost(ctx, owner, "", &Upload{Reader: strings.NewReader(""), Size: MaxImageSize + 1, ContentType: "image/png"})
	wantKind(t, err, apperr.KindValidation)
}

func TestDeletePostRemovesImage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner, other := h.user(t, "owner"), h.user(t, "other")

	post, err := h.feed.CreatePost(ctx, owner, "", &Upload{Reader: strings.NewReader("png"), Size: 3, ContentType: "image/png"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if post.Image == "" || h.images.Len() != 1 {
		t.Fatal("image should be stored")
	}
	if post.Author.Username != "owner" {
		t.Fatalf("author = %+v", post.Author)
	}

	wantKind(t, h.feed.DeletePost(ctx, other, post.ID), apperr.KindForbidden)
	if h.images.Len() != 1 {
		t.Fatal("forbidden delete removed the image")
	}

	if err := h.feed.DeletePost(ctx, owner, post.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if h.images.Len() != 0 {
		t.Fatal("image should be removed with the post")
	}
	_, err = h.feed.GetPost(ctx, owner, post.ID)
	wantKind(t, err, apperr.KindNotFound)
	wantKind(t, h.feed.DeletePost(ctx, owner, post.ID), apperr.KindNotFound)
}

func TestListPostsOrders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a, b, c := h.user(t, "a"), h.user(t, "b"), h.user(t, "c")

	first, _ := h.feed.CreatePost(ctx, a, "first", nil)
	time.Sleep(2 * time.Millisecond)
	second, _ := h.feed.CreatePost(ctx, a, "second", nil)
	time.Sleep(2 * time.Millisecond)
	third, _ := h.feed.CreatePost(ctx, b, "third", nil)

	h.feed.ToggleLike(ctx, b, first.ID)
	h.feed.ToggleLike(ctx, c, first.ID)
	h.feed.ToggleLike(ctx, c, second.ID)
	h.feed.AddComment(ctx, c, third.ID, "hot")
	h.feed.AddComment(ctx, b, third.ID, "take")

	tests := []struct {
		sort string
		want []primitive.ObjectID
	}{
		{"", ids(third.ID, second.ID, first.ID)},
		{models.SortNewest, ids(third.ID, second.ID, first.ID)},
		{models.SortOldest, ids(first.ID, second.ID, third.ID)},
		{models.SortPopular, ids(first.ID, second.ID, third.ID)},
		{models.SortTrending, ids(third.ID, first.ID, second.ID)},
	}
	for _, tt := range tests {
		views, err := h.feed.ListPosts(ctx, c, tt.sort, 0, 10)
		if err != nil {
			t.Fatalf("%s: %v", tt.sort, err)
		}
		var got []primitive.ObjectID
		for _, v := range views {
			got = append(got, v.ID)
		}
		if !sameIDs(got, tt.want) {
			t.Errorf("sort %q: got %v want %v", tt.sort, got, tt.want)
		}
	}

	_, err := h.feed.ListPosts(ctx, c, "random", 0, 10)
	wantKind(t, err, apperr.KindValidation)

	views, _ := h.feed.ListPosts(ctx, c, models.SortNewest, 1, 1)
	if len(views) != 1 || views[0].ID != second.ID {
		t.Fatalf("paging: %+v", views)
	}
	if !views[0].IsLiked || views[0].LikeCount != 1 {
		t.Fatalf("view counters: %+v", views[0])
	}

	mine, _ := h.feed.ListUserPosts(ctx, c, a, 0, 10)
	if len(mine) != 2 || mine[0].ID != second.ID {
		t.Fatalf("user posts: %+v", mine)
	}
}
