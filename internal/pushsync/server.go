package pushsync

import (
	"context"
	"log"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"

	"github.com/codepair/codepair/internal/stats"
	"github.com/codepair/codepair/internal/types"
)

// room is the in-memory record of one active room. It lives only
// while at least one session is connected; state is gone once the
// last session disconnects or the process exits.
type room struct {
	code     string
	language string
	sessions map[*Session]*types.Participant
}

type sessionEvent struct {
	session *Session
	event   *ClientEvent
}

// Server owns the per-process room registry. All mutation is
// serialized through the Run loop, so there is a single logical
// writer for every room.
type Server struct {
	log            *log.Logger
	stats          stats.StatsProvider
	allowedOrigins []string
	register       chan *Session
	deregister     chan *Session
	events         chan *sessionEvent
	stop           chan struct{}
	done           chan struct{}
	sessions       map[*Session]struct{}
	rooms          map[string]*room
	// membership maps a session to the room it joined
	membership map[*Session]string
}

func NewServer(logger *log.Logger, su stats.StatsProvider, allowedOrigins []string) *Server {
	return &Server{
		log:            logger,
		stats:          su,
		allowedOrigins: allowedOrigins,
		register:       make(chan *Session, 256),
		deregister:     make(chan *Session, 256),
		events:         make(chan *sessionEvent, 256),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
		sessions:       make(map[*Session]struct{}),
		rooms:          make(map[string]*room),
		membership:     make(map[*Session]string),
	}
}

func (srv *Server) Run() {
	for {
		select {
		case s := <-srv.register:
			srv.addSession(s)
		case s := <-srv.deregister:
			srv.removeSession(s)
		case se := <-srv.events:
			srv.handleEvent(se.session, se.event)
		case <-srv.stop:
			srv.log.Println("stopping all sessions")
			for s := range srv.sessions {
				s.stopSession()
			}
			close(srv.done)
			return
		}
	}
}

func (srv *Server) Shutdown(ctx context.Context) error {
	close(srv.stop)

	select {
	case <-srv.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ServeWs upgrades the connection and starts the session pumps.
func (srv *Server) ServeWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(srv.allowedOrigins) == 0 {
				return true
			}

			return slices.Contains(srv.allowedOrigins, origin)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.log.Println("error upgrading connection:", err)
		return
	}

	s := NewSession(conn, srv, srv.log)
	srv.Register(s)

	go s.Write()
	go s.Read()
}

func (srv *Server) Register(s *Session) {
	select {
	case srv.register <- s:
	case <-srv.done:
	}
}

func (srv *Server) Deregister(s *Session) {
	select {
	case srv.deregister <- s:
	case <-srv.done:
	}
}

func (srv *Server) Dispatch(s *Session, ev *ClientEvent) {
	select {
	case srv.events <- &sessionEvent{session: s, event: ev}:
	case <-srv.done:
	}
}

func (srv *Server) addSession(s *Session) {
	srv.sessions[s] = struct{}{}
	srv.stats.Incr(stats.MetricActiveSessions)
	srv.log.Printf("session %s connected", s.id)
}

func (srv *Server) removeSession(s *Session) {
	if _, ok := srv.sessions[s]; !ok {
		return
	}

	delete(srv.sessions, s)
	srv.stats.Decr(stats.MetricActiveSessions)
	srv.leaveRoom(s)
	s.stopSession()
	srv.log.Printf("session %s disconnected", s.id)
}

func (srv *Server) handleEvent(s *Session, ev *ClientEvent) {
	switch ev.Type {
	case EventJoinRoom:
		srv.handleJoin(s, ev)
	case EventCodeChange:
		srv.handleCodeChange(s, ev)
	case EventLanguageChange:
		srv.handleLanguageChange(s, ev)
	case EventCursorChange:
		srv.handleCursorChange(s, ev)
	default:
		srv.log.Printf("unknown event type %q from session %s", ev.Type, s.id)
	}
}

func (srv *Server) handleJoin(s *Session, ev *ClientEvent) {
	if ev.RoomId == "" {
		srv.log.Printf("ignoring join with empty room id from session %s", s.id)
		return
	}

	// a session belongs to at most one room; joining again moves it
	srv.leaveRoom(s)

	r, ok := srv.rooms[ev.RoomId]
	if !ok {
		r = &room{
			code:     "",
			language: types.DefaultLanguage,
			sessions: make(map[*Session]*types.Participant),
		}
		srv.rooms[ev.RoomId] = r
		srv.stats.Incr(stats.MetricActiveRooms)
		srv.log.Printf("created room %q", ev.RoomId)
	}

	username := ev.Username
	if username == "" {
		username = "Anonymous"
	}

	user := &types.Participant{
		UserId:   s.id,
		Username: username,
		Color:    types.ColorAt(len(r.sessions)),
		IsOnline: true,
	}

	srv.broadcast(r, UserJoinedEvent(user.UserId, user.Username, user.Color), s)

	r.sessions[s] = user
	srv.membership[s] = ev.RoomId

	roster := make([]types.Participant, 0, len(r.sessions))
	for _, u := range r.sessions {
		roster = append(roster, *u)
	}
	s.queueEvent(RoomUsersEvent(roster))
	s.queueEvent(RoomStateEvent(r.code, r.language))

	srv.log.Printf("user %q joined room %q", username, ev.RoomId)
}

func (srv *Server) handleCodeChange(s *Session, ev *ClientEvent) {
	r, ok := srv.rooms[ev.RoomId]
	if !ok {
		return
	}

	r.code = ev.Code
	srv.broadcast(r, CodeUpdateEvent(s.id, ev.Code), s)
}

func (srv *Server) handleLanguageChange(s *Session, ev *ClientEvent) {
	r, ok := srv.rooms[ev.RoomId]
	if !ok {
		return
	}

	r.language = ev.Language
	srv.broadcast(r, LanguageUpdateEvent(s.id, ev.Language), s)
}

func (srv *Server) handleCursorChange(s *Session, ev *ClientEvent) {
	r, ok := srv.rooms[ev.RoomId]
	if !ok {
		return
	}

	// cursor broadcasts are transport-only, nothing is stored
	srv.broadcast(r, CursorUpdateEvent(s.id, ev.Position, ev.Selection), s)
}

// leaveRoom removes the session from its room, if any, and deletes
// the room once its session count reaches zero.
func (srv *Server) leaveRoom(s *Session) {
	roomId, ok := srv.membership[s]
	if !ok {
		return
	}

	delete(srv.membership, s)

	r, ok := srv.rooms[roomId]
	if !ok {
		return
	}

	user := r.sessions[s]
	delete(r.sessions, s)

	if user != nil {
		srv.broadcast(r, UserLeftEvent(user.UserId, user.Username), s)
	}

	if len(r.sessions) == 0 {
		delete(srv.rooms, roomId)
		srv.stats.Decr(stats.MetricActiveRooms)
		srv.log.Printf("removed empty room %q", roomId)
	}
}

// broadcast queues ev on every session in the room except skip. The
// sender is always excluded, which is this transport's echo
// suppression.
func (srv *Server) broadcast(r *room, ev *ServerEvent, skip *Session) {
	for sess := range r.sessions {
		if sess == skip {
			continue
		}

		sess.queueEvent(ev)
	}

	srv.stats.Incr(stats.MetricEventsBroadcast)
}
