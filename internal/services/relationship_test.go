package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/meta-v/backend/internal/apperr"
	"github.com/anonto42/meta-v/backend/internal/models"
	"github.com/anonto42/meta-v/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSendRequestMirrorsPendingSets(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob := h.user(t, "alice"), h.user(t, "bob")

	res, evs, err := h.rel.SendRequest(ctx, alice, bob)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Relation != models.RelationPendingSent {
		t.Fatalf("relation = %s", res.Relation)
	}
	if len(evs) != 1 || evs[0].Kind != models.NotifyFriendRequest || evs[0].Recipient != bob || evs[0].Source != alice {
		t.Fatalf("unexpected events %+v", evs)
	}
	if !sameIDs(h.get(t, alice).OutgoingRequests, ids(bob)) {
		t.Fatal("bob missing from alice's outgoing requests")
	}
	if !sameIDs(h.get(t, bob).IncomingRequests, ids(alice)) {
		t.Fatal("alice missing from bob's incoming requests")
	}

	_, _, err = h.rel.SendRequest(ctx, alice, bob)
	wantKind(t, err, apperr.KindDuplicateRequest)
}

func TestSendRequestRejectsCrossedRequest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob := h.user(t, "alice"), h.user(t, "bob")

	if _, _, err := h.rel.SendRequest(ctx, alice, bob); err != nil {
		t.Fatalf("send: %v", err)
	}
	_, _, err := h.rel.SendRequest(ctx, bob, alice)
	wantKind(t, err, apperr.KindDuplicateRequest)

	if len(h.get(t, bob).OutgoingRequests) != 0 || len(h.get(t, alice).IncomingRequests) != 0 {
		t.Fatal("crossed request must not be recorded")
	}
}

// heldUsers parks the first n relationship writes until all n have
// arrived, so every caller has finished its reads before anyone writes.
type heldUsers struct {
	repositories.UserRepository

	mu   sync.Mutex
	left int
	gate sync.WaitGroup
}

func newHeldUsers(inner repositories.UserRepository, n int) *heldUsers {
	h := &heldUsers{UserRepository: inner, left: n}
	h.gate.Add(n)
	return h
}

func (h *heldUsers) ApplyRelationChange(ctx context.Context, id primitive.ObjectID, change models.RelationChange) error {
	h.mu.Lock()
	hold := h.left > 0
	if hold {
		h.left--
	}
	h.mu.Unlock()
	if hold {
		h.gate.Done()
		h.gate.Wait()
	}
	return h.UserRepository.ApplyRelationChange(ctx, id, change)
}

func TestConcurrentCrossedRequestsKeepOneState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob := h.user(t, "alice"), h.user(t, "bob")

	held := newHeldUsers(h.store, 2)
	saga := NewSaga(held, h.repairs, SagaConfig{MaxAttempts: 3, RetryInterval: time.Millisecond})
	rel := NewRelationshipService(held, saga)

	pairs := [][2]primitive.ObjectID{{alice, bob}, {bob, alice}}
	errs := make([]error, len(pairs))
	var wg sync.WaitGroup
	for i, p := range pairs {
		wg.Add(1)
		go func(i int, from, to primitive.ObjectID) {
			defer wg.Done()
			_, _, errs[i] = rel.SendRequest(ctx, from, to)
		}(i, p[0], p[1])
	}
	wg.Wait()

	rejected := 0
	for _, err := range errs {
		if err != nil {
			wantKind(t, err, apperr.KindDuplicateRequest)
			rejected++
		}
	}
	if rejected == 0 {
		t.Fatal("both crossed requests were accepted")
	}

	a, b := h.get(t, alice), h.get(t, bob)
	if a.InSet(models.SetIncomingRequests, bob) && a.InSet(models.SetOutgoingRequests, bob) {
		t.Fatal("alice holds both an incoming and an outgoing request with bob")
	}
	if b.InSet(models.SetIncomingRequests, alice) && b.InSet(models.SetOutgoingRequests, alice) {
		t.Fatal("bob holds both an incoming and an outgoing request with alice")
	}
	if a.InSet(models.SetOutgoingRequests, bob) != b.InSet(models.SetIncomingRequests, alice) ||
		a.InSet(models.SetIncomingRequests, bob) != b.InSet(models.SetOutgoingRequests, alice) {
		t.Fatalf("sides disagree: alice in=%v out=%v, bob in=%v out=%v",
			a.IncomingRequests, a.OutgoingRequests, b.IncomingRequests, b.OutgoingRequests)
	}
	if recs, _ := h.repairs.ListUnresolved(ctx); len(recs) != 0 {
		t.Fatalf("unexpected repair records %+v", recs)
	}
}

func TestSendRequestErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.user(t, "alice")

	_, _, err := h.rel.SendRequest(ctx, alice, alice)
	wantKind(t, err, apperr.KindInvalidOperation)

	_, _, err = h.rel.SendRequest(ctx, alice, primitive.NewObjectID())
	wantKind(t, err, apperr.KindNotFound)
	if len(h.get(t, alice).OutgoingRequests) != 0 {
		t.Fatal("failed request must not touch the sender")
	}
}

func TestAcceptRequestScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob := h.user(t, "alice"), h.user(t, "bob")

	_, evs, err := h.rel.SendRequest(ctx, alice, bob)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	h.events.Dispatch(ctx, evs)

	res, evs, err := h.rel.AcceptRequest(ctx, bob, alice)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	h.events.Dispatch(ctx, evs)
	if res.Relation != models.RelationFriends {
		t.Fatalf("relation = %s", res.Relation)
	}

	a, b := h.get(t, alice), h.get(t, bob)
	if !sameIDs(a.Friends, ids(bob)) || !sameIDs(b.Friends, ids(alice)) {
		t.Fatalf("friend edge not symmetric: %v / %v", a.Friends, b.Friends)
	}
	if len(a.OutgoingRequests)+len(a.IncomingRequests)+len(b.OutgoingRequests)+len(b.IncomingRequests) != 0 {
		t.Fatal("request sets should be empty after accept")
	}

	ns := h.notifications(t, alice)
	if len(ns) != 1 {
		t.Fatalf("alice has %d notifications, want 1", len(ns))
	}
	if ns[0].Kind != models.NotifyFriendAccept || ns[0].From != bob || ns[0].Read {
		t.Fatalf("unexpected notification %+v", ns[0])
	}
	if ns[0].Actor.Username != "bob" {
		t.Fatalf("actor = %+v", ns[0].Actor)
	}

	bobNotes := h.notifications(t, bob)
	if len(bobNotes) != 1 || bobNotes[0].Kind != models.NotifyFriendRequest {
		t.Fatalf("bob should only hold the friend request notification, got %+v", bobNotes)
	}

	_, _, err = h.rel.SendRequest(ctx, alice, bob)
	wantKind(t, err, apperr.KindAlreadyFriends)
}

func TestAcceptWithoutRequestIsNotFound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob := h.user(t, "alice"), h.user(t, "bob")

	_, _, err := h.rel.AcceptRequest(ctx, bob, alice)
	wantKind(t, err, apperr.KindNotFound)

	// The sender cannot accept their own request.
	if _, _, err := h.rel.SendRequest(ctx, alice, bob); err != nil {
		t.Fatalf("send: %v", err)
	}
	_, _, err = h.rel.AcceptRequest(ctx, alice, bob)
	wantKind(t, err, apperr.KindNotFound)
}

func TestRejectAndCancelReturnToNone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob := h.user(t, "alice"), h.user(t, "bob")

	tests := []struct {
		name string
		drop func() (*models.RelationshipResult, error)
	}{
		{"reject", func() (*models.RelationshipResult, error) { return h.rel.RejectRequest(ctx, bob, alice) }},
		{"cancel", func() (*models.RelationshipResult, error) { return h.rel.CancelRequest(ctx, alice, bob) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := h.rel.SendRequest(ctx, alice, bob); err != nil {
				t.Fatalf("send: %v", err)
			}
			res, err := tt.drop()
			if err != nil {
				t.Fatalf("%s: %v", tt.name, err)
			}
			if res.Relation != models.RelationNone {
				t.Fatalf("relation = %s", res.Relation)
			}
			a, b := h.get(t, alice), h.get(t, bob)
			if len(a.OutgoingRequests) != 0 || len(b.IncomingRequests) != 0 || len(a.Friends) != 0 {
				t.Fatal("pending pair should be gone")
			}
			_, err = tt.drop()
			wantKind(t, err, apperr.KindNotFound)
		})
	}
}

func TestUnfriendThenRefriend(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob := h.user(t, "alice"), h.user(t, "bob")

	if _, _, err := h.rel.SendRequest(ctx, alice, bob); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, _, err := h.rel.AcceptRequest(ctx, bob, alice); err != nil {
		t.Fatalf("accept: %v", err)
	}
	before := len(h.notifications(t, bob))

	res, err := h.rel.Unfriend(ctx, alice, bob)
	if err != nil {
		t.Fatalf("unfriend: %v", err)
	}
	if res.Relation != models.RelationNone {
		t.Fatalf("relation = %s", res.Relation)
	}
	if len(h.get(t, alice).Friends) != 0 || len(h.get(t, bob).Friends) != 0 {
		t.Fatal("friend edge should be removed on both sides")
	}
	if len(h.notifications(t, bob)) != before {
		t.Fatal("unfriend must not notify")
	}

	_, err = h.rel.Unfriend(ctx, alice, bob)
	wantKind(t, err, apperr.KindNotFound)

	if _, _, err := h.rel.SendRequest(ctx, alice, bob); err != nil {
		t.Fatalf("re-request after unfriend: %v", err)
	}
}

func TestListRelationshipSets(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob, carol := h.user(t, "alice"), h.user(t, "bob"), h.user(t, "carol")

	if _, _, err := h.rel.SendRequest(ctx, alice, bob); err != nil {
		t.Fatal(err)
	}
	if _, _, err := h.rel.SendRequest(ctx, carol, alice); err != nil {
		t.Fatal(err)
	}

	out, err := h.rel.ListOutgoing(ctx, alice)
	if err != nil || len(out) != 1 || out[0].Username != "bob" {
		t.Fatalf("outgoing = %+v, %v", out, err)
	}
	in, err := h.rel.ListIncoming(ctx, alice)
	if err != nil || len(in) != 1 || in[0].Username != "carol" {
		t.Fatalf("incoming = %+v, %v", in, err)
	}
	friends, err := h.rel.ListFriends(ctx, alice)
	if err != nil || len(friends) != 0 {
		t.Fatalf("friends = %+v, %v", friends, err)
	}

	rel, err := h.rel.Relation(ctx, bob, alice)
	if err != nil || rel != models.RelationPendingReceived {
		t.Fatalf("relation = %s, %v", rel, err)
	}
}
