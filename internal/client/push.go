package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codepair/codepair/internal/editor"
	"github.com/codepair/codepair/internal/pushsync"
	"github.com/codepair/codepair/internal/reconcile"
	"github.com/codepair/codepair/internal/types"
)

const (
	pushWriteWait = 10 * time.Second
	sendQueueSize = 64
)

// PushClient consumes the push variant: it speaks the websocket event
// protocol and forwards server updates to the reconciliation engine.
type PushClient struct {
	log      *log.Logger
	url      string
	roomId   string
	username string
	engine   *reconcile.Engine

	conn *websocket.Conn
	send chan *pushsync.ClientEvent
	done chan struct{}

	mu        sync.Mutex
	connected bool
	closeOnce sync.Once

	onUsers  func([]types.Participant)
	onJoined func(userId, username, color string)
	onLeft   func(userId, username string)
	onCursor func(userId string, pos *types.CursorPosition, sel *types.CursorSelection)
}

// NewPushClient wires an editor to a room served over a websocket
// endpoint. url is the full ws:// address of the server's /ws route.
func NewPushClient(logger *log.Logger, url, roomId, username string, ed editor.Editor, language string) *PushClient {
	c := &PushClient{
		log:      logger,
		url:      url,
		roomId:   roomId,
		username: username,
		send:     make(chan *pushsync.ClientEvent, sendQueueSize),
		done:     make(chan struct{}),
	}
	c.engine = reconcile.NewEngine(logger, ed, c, language)

	return c
}

func (c *PushClient) Engine() *reconcile.Engine {
	return c.engine
}

func (c *PushClient) OnUsersChanged(fn func([]types.Participant)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUsers = fn
}

func (c *PushClient) OnUserJoined(fn func(userId, username, color string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onJoined = fn
}

func (c *PushClient) OnUserLeft(fn func(userId, username string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLeft = fn
}

func (c *PushClient) OnCursorUpdate(fn func(userId string, pos *types.CursorPosition, sel *types.CursorSelection)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCursor = fn
}

func (c *PushClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connect dials the server, announces the join and starts the read
// and write pumps.
func (c *PushClient) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.writePump()
	go c.readPump()

	c.queue(&pushsync.ClientEvent{
		Type:     pushsync.EventJoinRoom,
		RoomId:   c.roomId,
		Username: c.username,
	})

	return nil
}

// Close tears the connection down. The server observes the closed
// socket and announces the departure to the remaining participants.
func (c *PushClient) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.connected = false
		conn := c.conn
		c.mu.Unlock()

		close(c.done)
		c.engine.Close()
		if conn != nil {
			conn.Close()
		}
	})
}

// SendCode implements reconcile.Emitter.
func (c *PushClient) SendCode(ctx context.Context, code string) error {
	return c.queue(&pushsync.ClientEvent{
		Type:   pushsync.EventCodeChange,
		RoomId: c.roomId,
		Code:   code,
	})
}

// SendLanguage implements reconcile.Emitter.
func (c *PushClient) SendLanguage(ctx context.Context, language string) error {
	return c.queue(&pushsync.ClientEvent{
		Type:     pushsync.EventLanguageChange,
		RoomId:   c.roomId,
		Language: language,
	})
}

// SendCursor publishes the local cursor. Cursor traffic is
// best-effort and carries no reconciliation.
func (c *PushClient) SendCursor(pos *types.CursorPosition, sel *types.CursorSelection) error {
	return c.queue(&pushsync.ClientEvent{
		Type:      pushsync.EventCursorChange,
		RoomId:    c.roomId,
		Position:  pos,
		Selection: sel,
	})
}

func (c *PushClient) queue(ev *pushsync.ClientEvent) error {
	select {
	case <-c.done:
		return fmt.Errorf("connection to room %q closed", c.roomId)
	default:
	}

	select {
	case c.send <- ev:
		return nil
	case <-c.done:
		return fmt.Errorf("connection to room %q closed", c.roomId)
	}
}

// writePump drains the send queue onto the socket so outbound events
// leave in the order they were produced.
func (c *PushClient) writePump() {
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.send:
			data, err := json.Marshal(ev)
			if err != nil {
				c.log.Printf("marshal event: %v", err)
				continue
			}

			c.conn.SetWriteDeadline(time.Now().Add(pushWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Printf("write event: %v", err)
				c.Close()
				return
			}
		}
	}
}

func (c *PushClient) readPump() {
	defer c.Close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.log.Printf("read event: %v", err)
			}
			return
		}

		var ev pushsync.ServerEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.log.Printf("unmarshal event: %v", err)
			continue
		}

		c.handleEvent(&ev)
	}
}

func (c *PushClient) handleEvent(ev *pushsync.ServerEvent) {
	c.mu.Lock()
	onUsers, onJoined, onLeft, onCursor := c.onUsers, c.onJoined, c.onLeft, c.onCursor
	c.mu.Unlock()

	switch ev.Type {
	case pushsync.EventRoomState:
		c.engine.ApplySnapshot(types.Snapshot{
			Code:     ev.Code,
			Language: ev.Language,
		})
	case pushsync.EventCodeUpdate:
		c.engine.ApplyRemoteCode(ev.Code)
	case pushsync.EventLanguageUpdate:
		c.engine.ApplyRemoteLanguage(ev.Language)
	case pushsync.EventRoomUsers:
		if onUsers != nil {
			onUsers(ev.Users)
		}
	case pushsync.EventUserJoined:
		if onJoined != nil {
			onJoined(ev.UserId, ev.Username, ev.Color)
		}
	case pushsync.EventUserLeft:
		if onLeft != nil {
			onLeft(ev.UserId, ev.Username)
		}
	case pushsync.EventCursorUpdate:
		if onCursor != nil {
			onCursor(ev.UserId, ev.Position, ev.Selection)
		}
	default:
		c.log.Printf("unknown event type: %s", ev.Type)
	}
}
