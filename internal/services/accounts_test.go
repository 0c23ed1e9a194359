package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/meta-v/backend/internal/apperr"
	"github.com/anonto42/meta-v/backend/internal/models"
)

type fakeFirebase struct {
	tokens map[string]*auth.Token
}

func (f *fakeFirebase) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	if tok, ok := f.tokens[idToken]; ok {
		return tok, nil
	}
	return nil, errors.New("bad token")
}

func TestRegisterAndLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.accounts.Register(ctx, models.RegisterRequest{Username: "alice", Email: "Alice@Example.com", Password: "hunter22"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if res.Token == "" || res.User.Email != "alice@example.com" || res.User.Status != models.StatusOnline {
		t.Fatalf("register response = %+v", res)
	}
	if res.User.Password == "hunter22" || res.User.Password == "" {
		t.Fatal("password must be stored hashed")
	}
	id, err := h.tokens.Verify(res.Token)
	if err != nil || id != res.User.ID {
		t.Fatalf("token subject = %s, %v", id.Hex(), err)
	}

	_, err = h.accounts.Register(ctx, models.RegisterRequest{Username: "alice", Email: "other@example.com", Password: "hunter22"})
	wantKind(t, err, apperr.KindConflict)
	_, err = h.accounts.Register(ctx, models.RegisterRequest{Username: "alice2", Email: "alice@example.com", Password: "hunter22"})
	wantKind(t, err, apperr.KindConflict)

	if err := h.accounts.Logout(ctx, res.User.ID); err != nil {
		t.Fatal(err)
	}
	if h.get(t, res.User.ID).Status != models.StatusOffline {
		t.Fatal("logout should mark the user offline")
	}

	_, err = h.accounts.Login(ctx, models.LoginRequest{Email: "alice@example.com", Password: "wrong"})
	wantKind(t, err, apperr.KindUnauthorized)
	_, err = h.accounts.Login(ctx, models.LoginRequest{Email: "nobody@example.com", Password: "hunter22"})
	wantKind(t, err, apperr.KindUnauthorized)

	res, err = h.accounts.Login(ctx, models.LoginRequest{Email: "alice@example.com", Password: "hunter22"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.User.Status != models.StatusOnline {
		t.Fatal("login should mark the user online")
	}

	me, err := h.accounts.Verify(ctx, res.User.ID)
	if err != nil || me.Username != "alice" {
		t.Fatalf("verify = %+v, %v", me, err)
	}
}

func TestTokenManagerRejectsForeignTokens(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice")

	other := NewTokenManager("another-secret", time.Hour)
	tok, _ := other.Issue(alice)
	if _, err := h.tokens.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	expired := NewTokenManager("test-secret", time.Hour)
	expired.ttl = -time.Minute
	tok, _ = expired.Issue(alice)
	if _, err := h.tokens.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token accepted: %v", err)
	}

	if _, err := h.tokens.Verify("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatal("garbage accepted")
	}
}

func TestFirebaseLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fb := &fakeFirebase{tokens: map[string]*auth.Token{
		"new":    {UID: "uid-new", Claims: map[string]interface{}{"email": "neo@example.com", "name": "Neo Anderson"}},
		"linked": {UID: "uid-alice", Claims: map[string]interface{}{"email": "alice@example.com"}},
	}}
	h.accounts = NewAccountService(h.users, h.tokens, fb)

	_, err := NewAccountService(h.users, h.tokens, nil).FirebaseLogin(ctx, "new")
	wantKind(t, err, apperr.KindInvalidOperation)

	_, err = h.accounts.FirebaseLogin(ctx, "forged")
	wantKind(t, err, apperr.KindUnauthorized)

	res, err := h.accounts.FirebaseLogin(ctx, "new")
	if err != nil {
		t.Fatalf("firebase login: %v", err)
	}
	if res.User.Username != "neoanderson" || res.User.FirebaseUID != "uid-new" {
		t.Fatalf("created user = %+v", res.User)
	}
	again, err := h.accounts.FirebaseLogin(ctx, "new")
	if err != nil || again.User.ID != res.User.ID {
		t.Fatalf("second login should reuse the account: %v", err)
	}

	alice := h.user(t, "alice")
	res, err = h.accounts.FirebaseLogin(ctx, "linked")
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if res.User.ID != alice || h.get(t, alice).FirebaseUID != "uid-alice" {
		t.Fatal("existing email account should be linked")
	}
}

func TestUsernameFrom(t *testing.T) {
	tests := []struct{ name, email, want string }{
		{"Neo Anderson", "", "neoanderson"},
		{"", "x.y+z@example.com", "xyz"},
		{"", "a@example.com", "a00"},
		{"Ünïcode Ω", "", "ncode"},
		{strings.Repeat("ab", 20), "", strings.Repeat("ab", 15)},
	}
	for _, tt := range tests {
		if got := usernameFrom(tt.name, tt.email); got != tt.want {
			t.Errorf("usernameFrom(%q, %q) = %q, want %q", tt.name, tt.email, got, tt.want)
		}
	}
}
