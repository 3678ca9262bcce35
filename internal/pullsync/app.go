package pullsync

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"

	"github.com/codepair/codepair/internal/config"
	"github.com/codepair/codepair/internal/presence"
	"github.com/codepair/codepair/internal/store"
)

// App is the pull variant's server side: a request/response API over
// the durable room store. Clients observe room state by re-reading it;
// the API never pushes deltas.
type App struct {
	log      *log.Logger
	store    store.RoomStore
	presence *presence.Manager
	mux      *http.Server
}

func NewApp(logger *log.Logger, s store.RoomStore, cfg *config.Config) *App {
	a := &App{
		log:      logger,
		store:    s,
		presence: presence.NewManager(logger, s),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/rooms/join", a.joinRoom)
	mux.HandleFunc("POST /api/rooms/leave", a.leaveRoom)
	mux.HandleFunc("POST /api/rooms/code", a.updateCode)
	mux.HandleFunc("POST /api/rooms/language", a.updateLanguage)
	mux.HandleFunc("GET /api/rooms/state", a.roomState)
	mux.HandleFunc("GET /api/rooms/users", a.roomUsers)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = a.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	a.mux = srv
	return a
}

// Handler exposes the configured handler chain for tests.
func (a *App) Handler() http.Handler {
	return a.mux.Handler
}

func (a *App) Start() error {
	a.log.Printf("starting server on %s\n", a.mux.Addr)
	return a.mux.ListenAndServe()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.log.Println("shutting down HTTP server...")
	if err := a.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
