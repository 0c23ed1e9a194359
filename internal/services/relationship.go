package services

import (
	"context"
	"errors"
	"time"

	"github.com/anonto42/meta-v/backend/internal/apperr"
	"github.com/anonto42/meta-v/backend/internal/events"
	"github.com/anonto42/meta-v/backend/internal/models"
	"github.com/anonto42/meta-v/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Saga operation names recorded in the repair log.
const (
	OpSendRequest   = "send_request"
	OpAcceptRequest = "accept_request"
	OpRejectRequest = "reject_request"
	OpCancelRequest = "cancel_request"
	OpUnfriend      = "unfriend"
)

// relatedSets are the sets a pair must be absent from to count as none.
var relatedSets = []models.RelationSet{models.SetFriends, models.SetIncomingRequests, models.SetOutgoingRequests}

// RelationshipService drives the friend-request state machine. A pair of
// users is always in exactly one of none, pending (either direction) or
// friends, mirrored on both user documents.
type RelationshipService struct {
	users repositories.UserRepository
	saga  *Saga
}

func NewRelationshipService(users repositories.UserRepository, saga *Saga) *RelationshipService {
	return &RelationshipService{users: users, saga: saga}
}

// SendRequest records a pending request from actor to target.
func (s *RelationshipService) SendRequest(ctx context.Context, actor, target primitive.ObjectID) (*models.RelationshipResult, []events.Event, error) {
	if actor == target {
		return nil, nil, apperr.InvalidOperation("you cannot send a friend request to yourself")
	}
	me, err := s.pair(ctx, actor, target)
	if err != nil {
		return nil, nil, err
	}

	switch me.RelationTo(target) {
	case models.RelationFriends:
		return nil, nil, apperr.AlreadyFriends("you are already friends with this user")
	case models.RelationPendingSent:
		return nil, nil, apperr.DuplicateRequest("friend request already sent")
	case models.RelationPendingReceived:
		return nil, nil, apperr.DuplicateRequest("this user has already sent you a friend request")
	}

	// The reads above can race a crossed request; Forbid re-checks under the write.
	err = s.saga.Run(ctx, OpSendRequest,
		SagaStep{User: actor, Change: models.RelationChange{
			Counterpart: target,
			Add:         []models.RelationSet{models.SetOutgoingRequests},
			Forbid:      relatedSets,
		}},
		SagaStep{User: target, Change: models.RelationChange{
			Counterpart: actor,
			Add:         []models.RelationSet{models.SetIncomingRequests},
			Forbid:      relatedSets,
		}},
	)
	if errors.Is(err, repositories.ErrConflict) {
		return nil, nil, apperr.DuplicateRequest("a friend request between you and this user already exists")
	}
	if err != nil {
		return nil, nil, storeErr(err, "user")
	}

	res, err := s.result(ctx, actor, target, "Friend request sent")
	if err != nil {
		return nil, nil, err
	}
	return res, []events.Event{events.FriendRequest(target, actor, time.Now())}, nil
}

// AcceptRequest turns the pending request from requester into a friendship.
func (s *RelationshipService) AcceptRequest(ctx context.Context, actor, requester primitive.ObjectID) (*models.RelationshipResult, []events.Event, error) {
	if err := s.requirePending(ctx, actor, requester, models.SetIncomingRequests); err != nil {
		return nil, nil, err
	}

	err := s.saga.Run(ctx, OpAcceptRequest,
		SagaStep{User: actor, Change: models.RelationChange{
			Counterpart: requester,
			Add:         []models.RelationSet{models.SetFriends},
			Remove:      []models.RelationSet{models.SetIncomingRequests},
			Require:     models.SetIncomingRequests,
		}},
		SagaStep{User: requester, Change: models.RelationChange{
			Counterpart: actor,
			Add:         []models.RelationSet{models.SetFriends},
			Remove:      []models.RelationSet{models.SetOutgoingRequests},
		}},
	)
	if err != nil {
		return nil, nil, storeErr(err, "friend request")
	}

	res, err := s.result(ctx, actor, requester, "Friend request accepted")
	if err != nil {
		return nil, nil, err
	}
	return res, []events.Event{events.FriendAccept(requester, actor, time.Now())}, nil
}

// RejectRequest drops the pending request from requester.
func (s *RelationshipService) RejectRequest(ctx context.Context, actor, requester primitive.ObjectID) (*models.RelationshipResult, error) {
	return s.dropPending(ctx, OpRejectRequest, actor, requester, models.SetIncomingRequests, models.SetOutgoingRequests, "Friend request rejected")
}

// CancelRequest withdraws the actor's pending request to target.
func (s *RelationshipService) CancelRequest(ctx context.Context, actor, target primitive.ObjectID) (*models.RelationshipResult, error) {
	return s.dropPending(ctx, OpCancelRequest, actor, target, models.SetOutgoingRequests, models.SetIncomingRequests, "Friend request cancelled")
}

// Unfriend removes the friend edge on both sides. It emits no event.
func (s *RelationshipService) Unfriend(ctx context.Context, actor, friend primitive.ObjectID) (*models.RelationshipResult, error) {
	if actor == friend {
		return nil, apperr.InvalidOperation("you cannot unfriend yourself")
	}
	me, err := s.pair(ctx, actor, friend)
	if err != nil {
		return nil, err
	}
	if !me.InSet(models.SetFriends, friend) {
		return nil, apperr.NotFound("you are not friends with this user")
	}

	err = s.saga.Run(ctx, OpUnfriend,
		SagaStep{User: actor, Change: models.RelationChange{
			Counterpart: friend,
			Remove:      []models.RelationSet{models.SetFriends},
			Require:     models.SetFriends,
		}},
		SagaStep{User: friend, Change: models.RelationChange{
			Counterpart: actor,
			Remove:      []models.RelationSet{models.SetFriends},
		}},
	)
	if err != nil {
		return nil, notPendingErr(err, "you are not friends with this user")
	}
	return s.result(ctx, actor, friend, "Friend removed")
}

// Relation reports the pair state from actor's side.
func (s *RelationshipService) Relation(ctx context.Context, actor, other primitive.ObjectID) (models.Relation, error) {
	me, err := s.users.GetUserByID(ctx, actor)
	if err != nil {
		return "", storeErr(err, "user")
	}
	return me.RelationTo(other), nil
}

// ListFriends returns the actor's friends.
func (s *RelationshipService) ListFriends(ctx context.Context, actor primitive.ObjectID) ([]models.UserCompact, error) {
	return s.list(ctx, actor, models.SetFriends)
}

// ListIncoming returns users who sent the actor a request.
func (s *RelationshipService) ListIncoming(ctx context.Context, actor primitive.ObjectID) ([]models.UserCompact, error) {
	return s.list(ctx, actor, models.SetIncomingRequests)
}

// ListOutgoing returns users the actor sent a request to.
func (s *RelationshipService) ListOutgoing(ctx context.Context, actor primitive.ObjectID) ([]models.UserCompact, error) {
	return s.list(ctx, actor, models.SetOutgoingRequests)
}

func (s *RelationshipService) list(ctx context.Context, actor primitive.ObjectID, set models.RelationSet) ([]models.UserCompact, error) {
	me, err := s.users.GetUserByID(ctx, actor)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	var ids []primitive.ObjectID
	switch set {
	case models.SetFriends:
		ids = me.Friends
	case models.SetIncomingRequests:
		ids = me.IncomingRequests
	case models.SetOutgoingRequests:
		ids = me.OutgoingRequests
	}
	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	out := make([]models.UserCompact, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToCompact())
	}
	return out, nil
}

func (s *RelationshipService) dropPending(ctx context.Context, op string, actor, other primitive.ObjectID, mine, theirs models.RelationSet, msg string) (*models.RelationshipResult, error) {
	if err := s.requirePending(ctx, actor, other, mine); err != nil {
		return nil, err
	}
	err := s.saga.Run(ctx, op,
		SagaStep{User: actor, Change: models.RelationChange{
			Counterpart: other,
			Remove:      []models.RelationSet{mine},
			Require:     mine,
		}},
		SagaStep{User: other, Change: models.RelationChange{
			Counterpart: actor,
			Remove:      []models.RelationSet{theirs},
		}},
	)
	if err != nil {
		return nil, notPendingErr(err, "friend request not found")
	}
	return s.result(ctx, actor, other, msg)
}

// requirePending checks that other is in the actor's request set.
func (s *RelationshipService) requirePending(ctx context.Context, actor, other primitive.ObjectID, set models.RelationSet) error {
	if actor == other {
		return apperr.InvalidOperation("you cannot act on a request to yourself")
	}
	me, err := s.pair(ctx, actor, other)
	if err != nil {
		return err
	}
	if !me.InSet(set, other) {
		return apperr.NotFound("friend request not found")
	}
	return nil
}

// pair loads the actor and makes sure the counterpart exists.
func (s *RelationshipService) pair(ctx context.Context, actor, other primitive.ObjectID) (*models.User, error) {
	me, err := s.users.GetUserByID(ctx, actor)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	if _, err := s.users.GetUserByID(ctx, other); err != nil {
		return nil, storeErr(err, "user")
	}
	return me, nil
}

func (s *RelationshipService) result(ctx context.Context, actor, other primitive.ObjectID, msg string) (*models.RelationshipResult, error) {
	me, err := s.users.GetUserByID(ctx, actor)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	return &models.RelationshipResult{User: me, Relation: me.RelationTo(other), Message: msg}, nil
}

// notPendingErr maps a failed precondition on the first write (the state
// changed since it was read) onto a not_found error.
func notPendingErr(err error, msg string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return apperr.NotFound(msg)
	}
	return storeErr(err, "user")
}
