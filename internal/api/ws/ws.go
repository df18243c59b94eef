// Package ws exposes the notification fabric over WebSocket. Each
// connection becomes one fabric observer: inbound frames manage topic
// subscriptions, outbound frames are fabric events encoded as JSON.
package ws

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/fleetglass/fleetglass/internal/fabric"
	"github.com/fleetglass/fleetglass/pkg/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// clientFrame is an inbound control frame from an observer.
type clientFrame struct {
	Type    string         `json:"type"` // subscribe, unsubscribe, command
	Topics  []string       `json:"topics,omitempty"`
	Command models.Command `json:"command,omitempty"`
}

// Server upgrades HTTP requests into fabric observer connections.
type Server struct {
	hub      *fabric.Hub
	upgrader websocket.Upgrader
}

// NewServer creates a WebSocket server bound to the hub. Origin checks are
// delegated to the CORS middleware in front of the router.
func NewServer(hub *fabric.Hub) *Server {
	return &Server{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handle upgrades the request and runs the connection until either side
// closes it. One goroutine pumps fabric events out; the handler goroutine
// reads control frames in.
func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub := s.hub.Register("ws-" + uuid.New().String())
	log.Info().Str("subscriber", sub.ID()).Str("remote", r.RemoteAddr).Msg("websocket connected")

	go s.writePump(conn, sub)
	s.readPump(conn, sub)
}

// readPump consumes control frames until the connection drops, then tears
// down the observer, which in turn stops the write pump.
func (s *Server) readPump(conn *websocket.Conn, sub *fabric.Subscriber) {
	defer func() {
		s.hub.Disconnect(sub)
		conn.Close()
		log.Info().Str("subscriber", sub.ID()).Msg("websocket disconnected")
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var frame clientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("subscriber", sub.ID()).Msg("websocket read error")
			}
			return
		}
		switch frame.Type {
		case "subscribe":
			s.hub.Subscribe(sub, frame.Topics...)
		case "unsubscribe":
			s.hub.Unsubscribe(sub, frame.Topics...)
		case "command":
			if frame.Command.AgentID != "" && frame.Command.Command != "" {
				s.hub.RouteCommand(frame.Command.AgentID, frame.Command)
			}
		default:
			log.Debug().Str("subscriber", sub.ID()).Str("type", frame.Type).Msg("ignoring unknown frame type")
		}
	}
}

// writePump forwards fabric events to the connection and keeps it alive
// with pings. Exits when the subscriber's queue is closed.
func (s *Server) writePump(conn *websocket.Conn, sub *fabric.Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-sub.Events():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
