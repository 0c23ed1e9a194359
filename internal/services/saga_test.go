package services

import (
	"context"
	"errors"
	"testing"

	"github.com/anonto42/meta-v/backend/internal/apperr"
	"github.com/anonto42/meta-v/backend/internal/models"
)

func TestSagaRetriesTransientSecondWrite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob := h.user(t, "alice"), h.user(t, "bob")

	h.users.failOn(bob, 2)
	if _, _, err := h.rel.SendRequest(ctx, alice, bob); err != nil {
		t.Fatalf("send should survive two transient failures: %v", err)
	}
	if h.users.calls != 3 {
		t.Fatalf("second write attempted %d times, want 3", h.users.calls)
	}
	if !sameIDs(h.get(t, bob).IncomingRequests, ids(alice)) {
		t.Fatal("second write did not land")
	}
	recs, _ := h.repairs.ListUnresolved(ctx)
	if len(recs) != 0 {
		t.Fatalf("unexpected repair records %+v", recs)
	}
}

func TestSagaCompensatesFailedAccept(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob := h.user(t, "alice"), h.user(t, "bob")

	if _, _, err := h.rel.SendRequest(ctx, alice, bob); err != nil {
		t.Fatalf("send: %v", err)
	}

	h.users.failOn(alice, -1)
	_, evs, err := h.rel.AcceptRequest(ctx, bob, alice)
	wantKind(t, err, apperr.KindPartialFailure)
	if !errors.Is(err, errFlaky) {
		t.Fatalf("partial failure should keep its cause, got %v", err)
	}
	if len(evs) != 0 {
		t.Fatal("a failed accept must not emit events")
	}

	// bob's side was rolled back; alice's side was never written.
	b, a := h.get(t, bob), h.get(t, alice)
	if len(b.Friends) != 0 || !sameIDs(b.IncomingRequests, ids(alice)) {
		t.Fatalf("bob not restored: friends=%v incoming=%v", b.Friends, b.IncomingRequests)
	}
	if len(a.Friends) != 0 || !sameIDs(a.OutgoingRequests, ids(bob)) {
		t.Fatalf("alice changed: friends=%v outgoing=%v", a.Friends, a.OutgoingRequests)
	}

	recs, err := h.repairs.ListUnresolved(ctx)
	if err != nil || len(recs) != 1 {
		t.Fatalf("repair records = %+v, %v", recs, err)
	}
	rec := recs[0]
	if rec.Operation != OpAcceptRequest || rec.FirstUser != bob.Hex() || rec.SecondUser != alice.Hex() {
		t.Fatalf("unexpected record %+v", rec)
	}
	if !rec.Compensated || rec.Attempts != 3 || rec.LastError == "" {
		t.Fatalf("unexpected record %+v", rec)
	}

	// Once the store recovers the request can be accepted.
	h.users.failOn(alice, 0)
	if _, _, err := h.rel.AcceptRequest(ctx, bob, alice); err != nil {
		t.Fatalf("accept after recovery: %v", err)
	}
	if err := h.repairs.MarkResolved(ctx, rec.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if recs, _ := h.repairs.ListUnresolved(ctx); len(recs) != 0 {
		t.Fatalf("record still open: %+v", recs)
	}
}

func TestSagaFirstWriteFailureChangesNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob := h.user(t, "alice"), h.user(t, "bob")

	h.users.failOn(alice, -1)
	_, _, err := h.rel.SendRequest(ctx, alice, bob)
	if err == nil || apperr.HasKind(err, apperr.KindPartialFailure) {
		t.Fatalf("expected a plain failure, got %v", err)
	}
	if len(h.get(t, bob).IncomingRequests) != 0 {
		t.Fatal("second write must not run when the first fails")
	}
	if recs, _ := h.repairs.ListUnresolved(ctx); len(recs) != 0 {
		t.Fatal("no repair record expected")
	}
}

func TestNewSagaDefaults(t *testing.T) {
	s := NewSaga(nil, nil, SagaConfig{})
	if s.cfg != DefaultSagaConfig() {
		t.Fatalf("cfg = %+v", s.cfg)
	}
}

func TestSagaRefusedSecondWriteIsUndoneWithoutRepair(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob := h.user(t, "alice"), h.user(t, "bob")

	// bob already lists alice as a requester while alice's side is blank.
	err := h.store.ApplyRelationChange(ctx, bob, models.RelationChange{
		Counterpart: alice,
		Add:         []models.RelationSet{models.SetIncomingRequests},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	h.users.failOn(bob, 0)
	_, evs, err := h.rel.SendRequest(ctx, alice, bob)
	wantKind(t, err, apperr.KindDuplicateRequest)
	if len(evs) != 0 {
		t.Fatal("a refused request must not emit events")
	}
	if h.users.calls != 1 {
		t.Fatalf("refused write retried %d times", h.users.calls)
	}
	if len(h.get(t, alice).OutgoingRequests) != 0 {
		t.Fatal("alice's outgoing request was not rolled back")
	}
	if recs, _ := h.repairs.ListUnresolved(ctx); len(recs) != 0 {
		t.Fatalf("unexpected repair records %+v", recs)
	}
}
