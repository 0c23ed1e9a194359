package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/anonto42/meta-v/backend/internal/models"
	"github.com/anonto42/meta-v/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Posts implements repositories.PostRepository.
type Posts struct {
	mu    sync.RWMutex
	posts map[primitive.ObjectID]*models.Post
}

func NewPosts() *Posts {
	return &Posts{posts: make(map[primitive.ObjectID]*models.Post)}
}

func (s *Posts) CreatePost(_ context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post.ID = primitive.NewObjectID()
	now := time.Now()
	post.CreatedAt = now
	post.UpdatedAt = now
	if post.Likes == nil {
		post.Likes = []primitive.ObjectID{}
	}
	if post.Comments == nil {
		post.Comments = []models.Comment{}
	}
	s.posts[post.ID] = copyPost(post)
	return nil
}

func (s *Posts) GetPostByID(_ context.Context, id primitive.ObjectID) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return copyPost(p), nil
}

func (s *Posts) GetPostsByUserID(_ context.Context, userID primitive.ObjectID, skip, limit int64) ([]models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Post{}
	for _, p := range s.posts {
		if p.UserID == userID {
			out = append(out, *copyPost(p))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return newer(out[i], out[j]) })
	return page(out, skip, limit), nil
}

func (s *Posts) ListPosts(_ context.Context, order string, skip, limit int64) ([]models.Post, error) {
	s.mu.RLock()
	out := make([]models.Post, 0, len(s.posts))
	for _, p := range s.posts {
		out = append(out, *copyPost(p))
	}
	s.mu.RUnlock()

	switch order {
	case models.SortOldest:
		sort.SliceStable(out, func(i, j int) bool { return newer(out[j], out[i]) })
	case models.SortPopular:
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i], out[j]
			if len(a.Likes) != len(b.Likes) {
				return len(a.Likes) > len(b.Likes)
			}
			if len(a.Comments) != len(b.Comments) {
				return len(a.Comments) > len(b.Comments)
			}
			return newer(a, b)
		})
	case models.SortTrending:
		since := time.Now().Add(-repositories.TrendingWindow)
		recent := func(p models.Post) int {
			n := 0
			for _, c := range p.Comments {
				if !c.CreatedAt.Before(since) {
					n++
				}
			}
			return n
		}
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i], out[j]
			if ra, rb := recent(a), recent(b); ra != rb {
				return ra > rb
			}
			if len(a.Likes) != len(b.Likes) {
				return len(a.Likes) > len(b.Likes)
			}
			return newer(a, b)
		})
	default:
		sort.SliceStable(out, func(i, j int) bool { return newer(out[i], out[j]) })
	}
	return page(out, skip, limit), nil
}

func (s *Posts) DeletePost(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.posts, id)
	return nil
}

func (s *Posts) SetLike(_ context.Context, postID, userID primitive.ObjectID, liked bool) (*models.Post, error) {
	return s.update(postID, func(p *models.Post) {
		likes := []primitive.ObjectID{}
		for _, id := range p.Likes {
			if id != userID {
				likes = append(likes, id)
			}
		}
		if liked {
			likes = append(likes, userID)
		}
		p.Likes = likes
	})
}

func (s *Posts) AddComment(_ context.Context, postID primitive.ObjectID, comment models.Comment) (*models.Post, error) {
	return s.update(postID, func(p *models.Post) {
		p.Comments = append(p.Comments, comment)
	})
}

func (s *Posts) RemoveComment(_ context.Context, postID, commentID primitive.ObjectID) (*models.Post, error) {
	return s.update(postID, func(p *models.Post) {
		comments := []models.Comment{}
		for _, c := range p.Comments {
			if c.ID != commentID {
				comments = append(comments, c)
			}
		}
		p.Comments = comments
	})
}

func (s *Posts) update(id primitive.ObjectID, fn func(*models.Post)) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	next := copyPost(p)
	fn(next)
	next.UpdatedAt = time.Now()
	s.posts[id] = next
	return copyPost(next), nil
}

func copyPost(p *models.Post) *models.Post {
	c := *p
	c.Likes = append([]primitive.ObjectID{}, p.Likes...)
	c.Comments = append([]models.Comment{}, p.Comments...)
	return &c
}

// newer orders by creation time, falling back to the id so posts created
// within the same clock tick keep a stable order.
func newer(a, b models.Post) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID.Hex() > b.ID.Hex()
}

func page[T any](items []T, skip, limit int64) []T {
	if skip < 0 {
		skip = 0
	}
	if skip >= int64(len(items)) {
		return []T{}
	}
	items = items[skip:]
	if limit > 0 && int64(len(items)) > limit {
		items = items[:limit]
	}
	return items
}
