// Package realtime pushes live events to connected websocket clients.
// With Redis configured every instance publishes to a per-user channel and
// delivers only what it receives back from Redis, so a user connected to
// any instance gets each event exactly once.
package realtime

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/anonto42/meta-v/backend/internal/events"
	"github.com/anonto42/meta-v/backend/internal/models"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Envelope types pushed to clients.
const (
	TypeMessage      = "message"
	TypeNotification = "notification"
)

// Envelope is the frame written to the socket.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type Hub struct {
	redis   *redis.Client
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
	pubsub  *redis.PubSub
	done    chan struct{}
}

// Client is one live connection of a user.
type Client struct {
	UserID string
	Send   chan []byte
}

// NewHub creates a hub. redisClient may be nil for single-instance use.
func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		redis:   redisClient,
		clients: map[string]map[*Client]struct{}{},
		done:    make(chan struct{}),
	}

	if redisClient == nil {
		close(h.done)
		return h
	}
	ctx := context.Background()
	h.pubsub = redisClient.PSubscribe(ctx, channelPattern)
	// Wait for the subscription so nothing published after NewHub returns
	// is missed.
	if _, err := h.pubsub.Receive(ctx); err != nil {
		log.Printf("redis subscribe error: %v", err)
	}
	go h.subscribeRedis()
	return h
}

// Close stops the Redis subscription.
func (h *Hub) Close() {
	if h.pubsub != nil {
		h.pubsub.Close()
	}
	<-h.done
}

func (h *Hub) Register(userID string) *Client {
	client := &Client{
		UserID: userID,
		Send:   make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = map[*Client]struct{}{}
	}
	h.clients[userID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userClients, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	if _, ok := userClients[client]; !ok {
		return
	}
	delete(userClients, client)
	if len(userClients) == 0 {
		delete(h.clients, client.UserID)
	}
	close(client.Send)
}

// Connected reports whether the user has a socket on this instance.
func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// Broadcast delivers payload to every socket of the user. Delivery is
// fire-and-forget: slow or absent clients simply miss the frame.
func (h *Hub) Broadcast(ctx context.Context, userID string, payload []byte) {
	if h.redis == nil {
		h.deliver(userID, payload)
		return
	}
	if err := h.redis.Publish(ctx, redisChannel(userID), payload).Err(); err != nil {
		log.Printf("redis publish error: %v", err)
		h.deliver(userID, payload)
	}
}

// Consume implements events.Consumer: message events are pushed as chat
// messages, everything else as notifications.
func (h *Hub) Consume(ctx context.Context, evs []events.Event) {
	for _, ev := range evs {
		env := Envelope{Type: TypeNotification, Data: ev.Notification()}
		if ev.Kind == models.NotifyMessage && ev.Message != nil {
			env = Envelope{Type: TypeMessage, Data: ev.Message}
		}
		payload, err := json.Marshal(env)
		if err != nil {
			log.Printf("encode live event: %v", err)
			continue
		}
		h.Broadcast(ctx, ev.Recipient.Hex(), payload)
	}
}

// deliver holds the read lock while sending so Unregister cannot close a
// channel mid-send.
func (h *Hub) deliver(userID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[userID] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) subscribeRedis() {
	defer close(h.done)

	for msg := range h.pubsub.Channel() {
		userID := userIDFromChannel(msg.Channel)
		if userID == "" {
			continue
		}
		h.deliver(userID, []byte(msg.Payload))
	}
}

const (
	channelPrefix  = "metav:user:"
	channelSuffix  = ":events"
	channelPattern = channelPrefix + "*" + channelSuffix
)

func redisChannel(userID string) string {
	return channelPrefix + userID + channelSuffix
}

func userIDFromChannel(ch string) string {
	// metav:user:{id}:events
	if !strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	if len(ch) <= len(channelPrefix)+len(channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
