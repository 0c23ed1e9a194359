package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/anonto42/meta-v/backend/internal/realtime"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Same-origin is not enforced; the token query parameter authenticates.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// LiveHandler upgrades authenticated requests to the live event socket.
type LiveHandler struct {
	hub *realtime.Hub
}

func NewLiveHandler(hub *realtime.Hub) *LiveHandler {
	return &LiveHandler{hub: hub}
}

func (h *LiveHandler) RegisterLiveRoutes(g *echo.Group) {
	g.GET("/ws", h.Serve)
}

// Serve pushes every live event of the caller to the socket until either
// side closes it. Frames sent by the client are ignored.
func (h *LiveHandler) Serve(c echo.Context) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	if !websocket.IsWebSocketUpgrade(c.Request()) {
		return badRequest("websocket upgrade required")
	}
	// Registered before the handshake completes so no event sent after the
	// client sees the upgrade is missed.
	client := h.hub.Register(actor.Hex())
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.hub.Unregister(client)
		return nil
	}

	done := make(chan struct{})
	go writeLoop(conn, client, done)

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws read error for %s: %v", actor.Hex(), err)
			}
			break
		}
	}

	h.hub.Unregister(client)
	<-done
	return nil
}

func writeLoop(conn *websocket.Conn, client *realtime.Client, done chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
		close(done)
	}()

	for {
		select {
		case msg, ok := <-client.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
