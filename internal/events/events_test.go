package events

import (
	"context"
	"testing"
	"time"

	"github.com/anonto42/meta-v/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type recorder struct {
	got []Event
}

func (r *recorder) Consume(_ context.Context, evs []Event) {
	r.got = append(r.got, evs...)
}

func TestNotificationKeepsEventID(t *testing.T) {
	to, from, post := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	ev := Like(to, from, post, time.Now())

	n := ev.Notification()
	if n.ID != ev.ID {
		t.Fatalf("notification id %s != event id %s", n.ID.Hex(), ev.ID.Hex())
	}
	if n.Kind != models.NotifyLike || n.From != from || n.Read {
		t.Fatalf("unexpected notification %+v", n)
	}
	if n.PostID == nil || *n.PostID != post {
		t.Fatalf("expected post target %s", post.Hex())
	}
}

func TestMessageEventTargetsConversation(t *testing.T) {
	msg := &models.Message{
		ID:             primitive.NewObjectID(),
		ConversationID: primitive.NewObjectID(),
		SenderID:       primitive.NewObjectID(),
		Content:        "gg",
		CreatedAt:      time.Now(),
	}
	to := primitive.NewObjectID()
	ev := Message(to, msg)
	if ev.Source != msg.SenderID || ev.Recipient != to {
		t.Fatalf("bad routing %+v", ev)
	}
	if ev.ConversationID == nil || *ev.ConversationID != msg.ConversationID {
		t.Fatal("expected conversation target")
	}
}

func TestDispatcherFansOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	d := NewDispatcher(a)
	d.Add(b)

	ev := FriendRequest(primitive.NewObjectID(), primitive.NewObjectID(), time.Now())
	d.Dispatch(context.Background(), []Event{ev})
	d.Dispatch(context.Background(), nil)

	if len(a.got) != 1 || len(b.got) != 1 {
		t.Fatalf("expected one event per consumer, got %d and %d", len(a.got), len(b.got))
	}

	var nilDispatcher *Dispatcher
	nilDispatcher.Dispatch(context.Background(), []Event{ev})
}
