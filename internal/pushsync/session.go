package pushsync

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
)

// Session is one transport connection's room membership. It exists
// only for the lifetime of the connection; nothing about it is
// persisted.
type Session struct {
	// id is the user surrogate carried on every broadcast this
	// session originates
	id     string
	conn   *websocket.Conn
	server *Server
	log    *log.Logger
	send   chan *ServerEvent
	stop   chan struct{}
}

func NewSession(conn *websocket.Conn, srv *Server, l *log.Logger) *Session {
	return &Session{
		id:     uuid.NewString(),
		conn:   conn,
		server: srv,
		log:    l,
		send:   make(chan *ServerEvent, 256),
		stop:   make(chan struct{}),
	}
}

// Id returns the session's user surrogate identifier.
func (s *Session) Id() string {
	return s.id
}

func (s *Session) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-s.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(ev)
			if err != nil {
				s.log.Println("failed to serialize event:", err)
				continue
			}

			if !s.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-s.stop:
			return
		case <-ticker.C:
			if !s.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (s *Session) Read() {
	defer func() {
		s.conn.Close()
		s.server.Deregister(s)
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(appData string) error { s.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.log.Printf("ws: read: %v", err)
			}
			break
		}

		var ev ClientEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			s.log.Println("error parsing event:", err)
			continue
		}

		s.server.Dispatch(s, &ev)
	}
}

func (s *Session) queueEvent(ev *ServerEvent) bool {
	select {
	case s.send <- ev:
	default:
		s.log.Printf("dropping event for session %s, send channel full", s.id)
		return false
	}

	return true
}

func (s *Session) sendMessage(msgType int, msg []byte) bool {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := s.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			s.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (s *Session) stopSession() {
	close(s.stop)
}
