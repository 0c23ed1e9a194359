package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Content bounds
const (
	MaxPostLength    = 280
	MaxCommentLength = 500
	MaxMessageLength = 2000
)

// Post sort orders
const (
	SortNewest   = "newest"
	SortOldest   = "oldest"
	SortPopular  = "popular"
	SortTrending = "trending"
)

// Post represents a feed post stored in MongoDB with its likes and
// comments embedded.
type Post struct {
	ID        primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	UserID    primitive.ObjectID   `json:"user_id" bson:"user_id"`
	Content   string               `json:"content" bson:"content"`
	Image     string               `json:"image,omitempty" bson:"image,omitempty"`
	Likes     []primitive.ObjectID `json:"likes" bson:"likes"`
	Comments  []Comment            `json:"comments" bson:"comments"`
	CreatedAt time.Time            `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time            `json:"updated_at" bson:"updated_at"`
}

// Comment is an embedded, individually addressable comment.
type Comment struct {
	ID        primitive.ObjectID `json:"id" bson:"_id"`
	UserID    primitive.ObjectID `json:"user_id" bson:"user_id"`
	Content   string             `json:"content" bson:"content"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}

// LikedBy reports whether userID is in the like set.
func (p *Post) LikedBy(userID primitive.ObjectID) bool {
	return containsID(p.Likes, userID)
}

// CommentIndex returns the position of the comment, or -1.
func (p *Post) CommentIndex(commentID primitive.ObjectID) int {
	for i, c := range p.Comments {
		if c.ID == commentID {
			return i
		}
	}
	return -1
}

// PostView is a post decorated for the client.
type PostView struct {
	Post
	Author       UserCompact `json:"author"`
	LikeCount    int         `json:"like_count"`
	CommentCount int         `json:"comment_count"`
	IsLiked      bool        `json:"is_liked"`
}

// NewPostView builds the client view of p for viewer.
func NewPostView(p Post, author UserCompact, viewer primitive.ObjectID) PostView {
	return PostView{
		Post:         p,
		Author:       author,
		LikeCount:    len(p.Likes),
		CommentCount: len(p.Comments),
		IsLiked:      p.LikedBy(viewer),
	}
}
