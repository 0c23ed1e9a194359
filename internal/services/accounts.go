package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"time"
	"unicode"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/meta-v/backend/internal/apperr"
	"github.com/anonto42/meta-v/backend/internal/models"
	"github.com/anonto42/meta-v/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// FirebaseVerifier verifies Firebase ID tokens. *auth.Client satisfies it.
type FirebaseVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// AccountService handles registration, sign in and sign out.
type AccountService struct {
	users    repositories.UserRepository
	tokens   *TokenManager
	firebase FirebaseVerifier
}

// NewAccountService creates an AccountService. firebase may be nil, in
// which case Firebase login is unavailable.
func NewAccountService(users repositories.UserRepository, tokens *TokenManager, firebase FirebaseVerifier) *AccountService {
	return &AccountService{users: users, tokens: tokens, firebase: firebase}
}

// FirebaseEnabled reports whether Firebase login is configured.
func (s *AccountService) FirebaseEnabled() bool {
	return s.firebase != nil
}

// Register creates a local account and signs it in.
func (s *AccountService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Internal("failed to hash password", err)
	}

	now := time.Now()
	user := &models.User{
		Username:   strings.TrimSpace(req.Username),
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		Password:   string(hashedPassword),
		Status:     models.StatusOnline,
		LastActive: now,
		Settings:   models.DefaultSettings(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperr.Conflict("this email or username is already in use")
		}
		return nil, storeErr(err, "user")
	}
	return s.signIn(user)
}

// Login checks the credentials and marks the user online.
func (s *AccountService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.Unauthorized("invalid email or password")
		}
		return nil, storeErr(err, "user")
	}
	if user.Password == "" || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		return nil, apperr.Unauthorized("invalid email or password")
	}

	user, err = s.users.UpdateStatus(ctx, user.ID, models.StatusOnline)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	return s.signIn(user)
}

// Logout marks the actor offline. Tokens stay valid until they expire.
func (s *AccountService) Logout(ctx context.Context, actor primitive.ObjectID) error {
	_, err := s.users.UpdateStatus(ctx, actor, models.StatusOffline)
	return storeErr(err, "user")
}

// Verify returns the actor's account.
func (s *AccountService) Verify(ctx context.Context, actor primitive.ObjectID) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, actor)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.Unauthorized("account no longer exists")
		}
		return nil, storeErr(err, "user")
	}
	return user, nil
}

// FirebaseLogin verifies a Firebase ID token and signs in the matching
// local account, linking or creating it as needed.
func (s *AccountService) FirebaseLogin(ctx context.Context, idToken string) (*models.AuthResponse, error) {
	if s.firebase == nil {
		return nil, apperr.InvalidOperation("firebase login is not enabled")
	}
	token, err := s.firebase.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, apperr.Unauthorized("invalid Firebase ID token")
	}
	email, _ := token.Claims["email"].(string)
	email = strings.ToLower(email)
	name, _ := token.Claims["name"].(string)

	user, err := s.users.GetUserByFirebaseUID(ctx, token.UID)
	switch {
	case err == nil:
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, storeErr(err, "user")
	case email == "":
		return nil, apperr.Unauthorized("Firebase account has no email")
	default:
		user, err = s.users.GetUserByEmail(ctx, email)
		switch {
		case err == nil:
			if err := s.users.SetFirebaseUID(ctx, user.ID, token.UID); err != nil {
				return nil, storeErr(err, "user")
			}
		case errors.Is(err, repositories.ErrNotFound):
			if user, err = s.createFirebaseUser(ctx, token.UID, email, name); err != nil {
				return nil, err
			}
		default:
			return nil, storeErr(err, "user")
		}
	}

	user, err = s.users.UpdateStatus(ctx, user.ID, models.StatusOnline)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	return s.signIn(user)
}

func (s *AccountService) createFirebaseUser(ctx context.Context, uid, email, name string) (*models.User, error) {
	base := usernameFrom(name, email)
	candidate := base
	for attempt := 0; attempt < 5; attempt++ {
		user := &models.User{
			Username:    candidate,
			Email:       email,
			FirebaseUID: uid,
			Status:      models.StatusOnline,
			LastActive:  time.Now(),
			Settings:    models.DefaultSettings(),
		}
		err := s.users.CreateUser(ctx, user)
		if err == nil {
			log.Printf("Created account %s for Firebase user %s", user.ID.Hex(), uid)
			return user, nil
		}
		if !errors.Is(err, repositories.ErrDuplicate) {
			return nil, storeErr(err, "user")
		}
		candidate = fmt.Sprintf("%s%04d", trimTo(base, 26), rand.IntN(10000))
	}
	return nil, apperr.Conflict("could not allocate a username")
}

func (s *AccountService) signIn(user *models.User) (*models.AuthResponse, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, apperr.Internal("failed to generate token", err)
	}
	return &models.AuthResponse{Token: token, User: user}, nil
}

// usernameFrom derives an alphanumeric handle from a display name or the
// local part of an email address.
func usernameFrom(name, email string) string {
	src := name
	if src == "" {
		src, _, _ = strings.Cut(email, "@")
	}
	var b strings.Builder
	for _, r := range src {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	out := trimTo(b.String(), 30)
	for len(out) < 3 {
		out += "0"
	}
	return out
}

func trimTo(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
