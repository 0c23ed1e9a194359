package services

import (
	"context"
	"io"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/anonto42/meta-v/backend/internal/apperr"
	"github.com/anonto42/meta-v/backend/internal/events"
	"github.com/anonto42/meta-v/backend/internal/models"
	"github.com/anonto42/meta-v/backend/internal/repositories"
	"github.com/anonto42/meta-v/backend/pkg/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxImageSize bounds uploaded post images and avatars.
const MaxImageSize = 5 << 20

// Upload is an image attached to a request.
type Upload struct {
	Reader      io.Reader
	Size        int64
	ContentType string
}

// validate enforces the image content type and size limits.
func (u *Upload) validate() error {
	if !strings.HasPrefix(u.ContentType, "image/") {
		return apperr.Validation("only image files are allowed")
	}
	if u.Size > MaxImageSize {
		return apperr.Validation("image must be at most 5MB")
	}
	return nil
}

// FeedService owns posts and the like/comment interactions on them.
type FeedService struct {
	posts  repositories.PostRepository
	users  repositories.UserRepository
	images storage.ImageStore
}

func NewFeedService(posts repositories.PostRepository, users repositories.UserRepository, images storage.ImageStore) *FeedService {
	return &FeedService{posts: posts, users: users, images: images}
}

// CreatePost stores a post with text, an image or both.
func (s *FeedService) CreatePost(ctx context.Context, actor primitive.ObjectID, content string, image *Upload) (*models.PostView, error) {
	content = strings.TrimSpace(content)
	if content == "" && image == nil {
		return nil, apperr.Validation("post must have content or an image")
	}
	if utf8.RuneCountInString(content) > models.MaxPostLength {
		return nil, apperr.Validation("post content must be at most 280 characters")
	}
	author, err := s.users.GetUserByID(ctx, actor)
	if err != nil {
		return nil, storeErr(err, "user")
	}

	post := &models.Post{UserID: actor, Content: content}
	if image != nil {
		if err := image.validate(); err != nil {
			return nil, err
		}
		key, err := s.images.Put(ctx, "posts", image.Reader, image.Size, image.ContentType)
		if err != nil {
			return nil, apperr.Internal("failed to store image", err)
		}
		post.Image = key
	}

	if err := s.posts.CreatePost(ctx, post); err != nil {
		if post.Image != "" {
			s.removeImage(ctx, post.Image)
		}
		return nil, storeErr(err, "post")
	}
	view := models.NewPostView(*post, author.ToCompact(), actor)
	return &view, nil
}

// GetPost returns one post decorated for viewer.
func (s *FeedService) GetPost(ctx context.Context, viewer, postID primitive.ObjectID) (*models.PostView, error) {
	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		return nil, storeErr(err, "post")
	}
	return s.view(ctx, viewer, post)
}

// ListPosts returns a page of the global feed in the given order.
func (s *FeedService) ListPosts(ctx context.Context, viewer primitive.ObjectID, order string, skip, limit int64) ([]models.PostView, error) {
	switch order {
	case "", models.SortNewest, models.SortOldest, models.SortPopular, models.SortTrending:
	default:
		return nil, apperr.Validation("sort must be one of newest, oldest, popular, trending")
	}
	posts, err := s.posts.ListPosts(ctx, order, skip, limit)
	if err != nil {
		return nil, storeErr(err, "post")
	}
	return s.decorate(ctx, viewer, posts)
}

// ListUserPosts returns a page of one user's posts, newest first.
func (s *FeedService) ListUserPosts(ctx context.Context, viewer, owner primitive.ObjectID, skip, limit int64) ([]models.PostView, error) {
	posts, err := s.posts.GetPostsByUserID(ctx, owner, skip, limit)
	if err != nil {
		return nil, storeErr(err, "post")
	}
	return s.decorate(ctx, viewer, posts)
}

// ToggleLike flips the actor's membership in the post's like set. Only a
// like by someone other than the owner produces an event.
func (s *FeedService) ToggleLike(ctx context.Context, actor, postID primitive.ObjectID) (*models.Post, []events.Event, error) {
	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		return nil, nil, storeErr(err, "post")
	}

	liked := !post.LikedBy(actor)
	post, err = s.posts.SetLike(ctx, postID, actor, liked)
	if err != nil {
		return nil, nil, storeErr(err, "post")
	}

	var evs []events.Event
	if liked && actor != post.UserID {
		evs = append(evs, events.Like(post.UserID, actor, postID, time.Now()))
	}
	return post, evs, nil
}

// AddComment appends a comment to the post and returns the post decorated
// for actor.
func (s *FeedService) AddComment(ctx context.Context, actor, postID primitive.ObjectID, text string) (*models.PostView, []events.Event, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil, apperr.Validation("comment content is required")
	}
	if utf8.RuneCountInString(text) > models.MaxCommentLength {
		return nil, nil, apperr.Validation("comment must be at most 500 characters")
	}

	comment := models.Comment{
		ID:        primitive.NewObjectID(),
		UserID:    actor,
		Content:   text,
		CreatedAt: time.Now(),
	}
	post, err := s.posts.AddComment(ctx, postID, comment)
	if err != nil {
		return nil, nil, storeErr(err, "post")
	}

	view, err := s.view(ctx, actor, post)
	if err != nil {
		return nil, nil, err
	}

	var evs []events.Event
	if actor != post.UserID {
		evs = append(evs, events.Comment(post.UserID, actor, postID, comment.CreatedAt))
	}
	return view, evs, nil
}

// DeleteComment removes a comment. Its author and the post owner may do so.
func (s *FeedService) DeleteComment(ctx context.Context, actor, postID, commentID primitive.ObjectID) (*models.PostView, error) {
	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		return nil, storeErr(err, "post")
	}
	i := post.CommentIndex(commentID)
	if i < 0 {
		return nil, apperr.NotFound("comment not found")
	}
	if post.Comments[i].UserID != actor && post.UserID != actor {
		return nil, apperr.Forbidden("you can only delete your own comments or comments on your posts")
	}

	post, err = s.posts.RemoveComment(ctx, postID, commentID)
	if err != nil {
		return nil, storeErr(err, "post")
	}
	return s.view(ctx, actor, post)
}

// DeletePost removes the actor's post and its stored image.
func (s *FeedService) DeletePost(ctx context.Context, actor, postID primitive.ObjectID) error {
	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		return storeErr(err, "post")
	}
	if post.UserID != actor {
		return apperr.Forbidden("you can only delete your own posts")
	}
	if err := s.posts.DeletePost(ctx, postID); err != nil {
		return storeErr(err, "post")
	}
	if post.Image != "" {
		s.removeImage(ctx, post.Image)
	}
	return nil
}

func (s *FeedService) removeImage(ctx context.Context, key string) {
	if err := s.images.Remove(ctx, key); err != nil {
		log.Printf("Failed to remove image %s: %v", key, err)
	}
}

func (s *FeedService) view(ctx context.Context, viewer primitive.ObjectID, post *models.Post) (*models.PostView, error) {
	views, err := s.decorate(ctx, viewer, []models.Post{*post})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// decorate attaches author summaries and counters in one user lookup.
func (s *FeedService) decorate(ctx context.Context, viewer primitive.ObjectID, posts []models.Post) ([]models.PostView, error) {
	seen := make(map[primitive.ObjectID]bool)
	var ids []primitive.ObjectID
	for _, p := range posts {
		if !seen[p.UserID] {
			seen[p.UserID] = true
			ids = append(ids, p.UserID)
		}
	}
	authors, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	byID := make(map[primitive.ObjectID]models.UserCompact, len(authors))
	for i := range authors {
		byID[authors[i].ID] = authors[i].ToCompact()
	}

	views := make([]models.PostView, 0, len(posts))
	for _, p := range posts {
		author, ok := byID[p.UserID]
		if !ok {
			author = models.UserCompact{ID: p.UserID}
		}
		views = append(views, models.NewPostView(p, author, viewer))
	}
	return views, nil
}
