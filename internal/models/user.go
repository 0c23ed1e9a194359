package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Presence statuses a user can advertise
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusAway    = "away"
	StatusBusy    = "busy"
)

// RelationSet names one of the three relationship lists on a user document.
type RelationSet string

const (
	SetFriends          RelationSet = "friends"
	SetIncomingRequests RelationSet = "incoming_requests"
	SetOutgoingRequests RelationSet = "outgoing_requests"
)

// Relation is the state of a pair of users as seen from one side.
type Relation string

const (
	RelationNone            Relation = "none"
	RelationSelf            Relation = "self"
	RelationFriends         Relation = "friends"
	RelationPendingSent     Relation = "pending_sent"
	RelationPendingReceived Relation = "pending_received"
)

// User is the identity document stored in MongoDB. The relationship sets
// hold user ids and never contain duplicates.
type User struct {
	ID               primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	Username         string               `json:"username" bson:"username"`
	Email            string               `json:"email" bson:"email"`
	Password         string               `json:"-" bson:"password"`
	FirebaseUID      string               `json:"-" bson:"firebase_uid,omitempty"`
	Avatar           string               `json:"avatar" bson:"avatar"`
	Bio              string               `json:"bio" bson:"bio"`
	Location         string               `json:"location" bson:"location"`
	BirthDate        *time.Time           `json:"birth_date,omitempty" bson:"birth_date,omitempty"`
	Games            []Game               `json:"games" bson:"games"`
	Interests        []string             `json:"interests" bson:"interests"`
	SocialLinks      SocialLinks          `json:"social_links" bson:"social_links"`
	Friends          []primitive.ObjectID `json:"friends" bson:"friends"`
	IncomingRequests []primitive.ObjectID `json:"incoming_requests" bson:"incoming_requests"`
	OutgoingRequests []primitive.ObjectID `json:"outgoing_requests" bson:"outgoing_requests"`
	Notifications    []Notification       `json:"-" bson:"notifications"`
	Status           string               `json:"status" bson:"status"`
	LastActive       time.Time            `json:"last_active" bson:"last_active"`
	Settings         Settings             `json:"settings" bson:"settings"`
	CreatedAt        time.Time            `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at" bson:"updated_at"`
}

// Game is an entry in a user's game library.
type Game struct {
	Name     string `json:"name" bson:"name" validate:"required,max=100"`
	Platform string `json:"platform" bson:"platform" validate:"max=50"`
	Favorite bool   `json:"favorite" bson:"favorite"`
}

// SocialLinks is the fixed set of external profile links.
type SocialLinks struct {
	Discord string `json:"discord" bson:"discord" validate:"max=100"`
	Steam   string `json:"steam" bson:"steam" validate:"max=200"`
	Twitter string `json:"twitter" bson:"twitter" validate:"max=100"`
}

// Settings are per-user preferences.
type Settings struct {
	EmailNotifications bool `json:"email_notifications" bson:"email_notifications"`
	PrivateProfile     bool `json:"private_profile" bson:"private_profile"`
	ShowOnlineStatus   bool `json:"show_online_status" bson:"show_online_status"`
}

// DefaultSettings are applied on registration.
func DefaultSettings() Settings {
	return Settings{EmailNotifications: true, ShowOnlineStatus: true}
}

// InSet reports whether id is present in the named relationship set.
func (u *User) InSet(set RelationSet, id primitive.ObjectID) bool {
	return containsID(u.set(set), id)
}

// RelationTo derives the pair state towards other.
func (u *User) RelationTo(other primitive.ObjectID) Relation {
	switch {
	case u.ID == other:
		return RelationSelf
	case u.InSet(SetFriends, other):
		return RelationFriends
	case u.InSet(SetOutgoingRequests, other):
		return RelationPendingSent
	case u.InSet(SetIncomingRequests, other):
		return RelationPendingReceived
	default:
		return RelationNone
	}
}

func (u *User) set(set RelationSet) []primitive.ObjectID {
	switch set {
	case SetFriends:
		return u.Friends
	case SetIncomingRequests:
		return u.IncomingRequests
	case SetOutgoingRequests:
		return u.OutgoingRequests
	}
	return nil
}

// UserCompact is the public summary embedded in lists and enriched payloads.
type UserCompact struct {
	ID       primitive.ObjectID `json:"id"`
	Username string             `json:"username"`
	Avatar   string             `json:"avatar"`
	Status   string             `json:"status,omitempty"`
}

// ToCompact returns the public summary of u.
func (u *User) ToCompact() UserCompact {
	status := u.Status
	if !u.Settings.ShowOnlineStatus {
		status = ""
	}
	return UserCompact{ID: u.ID, Username: u.Username, Avatar: u.Avatar, Status: status}
}

// ProfileView is another user's profile as seen by the viewer.
type ProfileView struct {
	User     *User      `json:"user"`
	Relation Relation   `json:"relation"`
	Posts    []PostView `json:"posts"`
}

// ProfileUpdate is the set of self-editable profile fields.
type ProfileUpdate struct {
	Bio         string
	Location    string
	BirthDate   *time.Time
	Interests   []string
	SocialLinks SocialLinks
	Games       []Game
	Settings    *Settings
}

// RelationChange is a single-document mutation of the relationship sets
// with respect to one counterpart. Require, when set, makes the change
// conditional on the counterpart currently being in that set. Forbid makes
// it conditional on the counterpart being in none of the listed sets.
type RelationChange struct {
	Counterpart primitive.ObjectID
	Add         []RelationSet
	Remove      []RelationSet
	Require     RelationSet
	Forbid      []RelationSet
}

// Forbidden reports whether u holds the counterpart in any Forbid set.
func (c RelationChange) Forbidden(u *User) bool {
	for _, s := range c.Forbid {
		if u.InSet(s, c.Counterpart) {
			return true
		}
	}
	return false
}

// Inverse returns the change that undoes c.
func (c RelationChange) Inverse() RelationChange {
	return RelationChange{Counterpart: c.Counterpart, Add: c.Remove, Remove: c.Add}
}

// Apply mutates u in memory the same way a store applies the change.
func (c RelationChange) Apply(u *User) {
	for _, s := range c.Remove {
		u.setRef(s, removeID(u.set(s), c.Counterpart))
	}
	for _, s := range c.Add {
		if !containsID(u.set(s), c.Counterpart) {
			u.setRef(s, append(u.set(s), c.Counterpart))
		}
	}
}

func (u *User) setRef(set RelationSet, ids []primitive.ObjectID) {
	switch set {
	case SetFriends:
		u.Friends = ids
	case SetIncomingRequests:
		u.IncomingRequests = ids
	case SetOutgoingRequests:
		u.OutgoingRequests = ids
	}
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}
