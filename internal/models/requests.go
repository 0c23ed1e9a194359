package models

import "time"

// RegisterRequest defines the request body for local registration
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30,alphanum"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// LoginRequest defines the request body for local sign in
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// FirebaseLoginRequest defines the request body for Firebase login
type FirebaseLoginRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// AuthResponse is returned by register, login and firebase login.
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// UpdateProfileRequest defines the request body for profile edits
type UpdateProfileRequest struct {
	Bio         string      `json:"bio" validate:"max=500"`
	Location    string      `json:"location" validate:"max=100"`
	BirthDate   *time.Time  `json:"birth_date"`
	Interests   []string    `json:"interests" validate:"max=20,dive,min=1,max=40"`
	SocialLinks SocialLinks `json:"social_links"`
	Games       []Game      `json:"games" validate:"max=100,dive"`
	Settings    *Settings   `json:"settings"`
}

// ToUpdate converts the request into the store-level update.
func (r UpdateProfileRequest) ToUpdate() ProfileUpdate {
	return ProfileUpdate{
		Bio:         r.Bio,
		Location:    r.Location,
		BirthDate:   r.BirthDate,
		Interests:   r.Interests,
		SocialLinks: r.SocialLinks,
		Games:       r.Games,
		Settings:    r.Settings,
	}
}

// UpdateStatusRequest defines the request body for presence updates
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=online offline away busy"`
}

// AddGameRequest defines the request body for adding a game
type AddGameRequest struct {
	Game
}

// CreatePostRequest defines the text part of a new post; the image
// arrives as a multipart file.
type CreatePostRequest struct {
	Content string `json:"content" form:"content" validate:"max=2000"`
}

// CreateCommentRequest defines the request body for a new comment. The
// core enforces the trimmed length bound.
type CreateCommentRequest struct {
	Content string `json:"content" validate:"max=2000"`
}

// CreateConversationRequest defines the request body for opening a thread
type CreateConversationRequest struct {
	RecipientID string `json:"recipient_id" validate:"required,len=24,hexadecimal"`
}

// SendMessageRequest defines the request body for a chat message
type SendMessageRequest struct {
	Content string `json:"content" validate:"max=4000"`
}
