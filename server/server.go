package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lamassu-labs/mentowatch/alert"
	"github.com/lamassu-labs/mentowatch/am"
	"github.com/lamassu-labs/mentowatch/errors"
	"github.com/lamassu-labs/mentowatch/logger"
	"github.com/lamassu-labs/mentowatch/pulse"
	"github.com/lamassu-labs/mentowatch/snapshot"
	"github.com/lamassu-labs/mentowatch/sym"
)

// Server hosts the dashboard: REST endpoints for history, a websocket
// feed for live snapshots and alerts, and the embedded dashboard page.
type Server struct {
	cfg      am.ServerConfig
	port     int
	hub      *Hub
	upgrader websocket.Upgrader

	snapshots *snapshot.Store
	alerts    *alert.Store
	runs      *pulse.RunStore

	httpServer *http.Server
	startedAt  time.Time
}

// New assembles the server. Run starts it.
func New(cfg am.ServerConfig, port int, snapshots *snapshot.Store, alerts *alert.Store, runs *pulse.RunStore) *Server {
	s := &Server{
		cfg:       cfg,
		port:      port,
		hub:       NewHub(),
		snapshots: snapshots,
		alerts:    alerts,
		runs:      runs,
		startedAt: time.Now(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	go s.hub.Run()
	defer s.hub.Stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Infow(sym.Server+" dashboard listening", logger.FieldPort, s.port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "dashboard server")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutting down dashboard server")
	}
	logger.Info(sym.Server + " dashboard stopped")
	return nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/snapshots/latest", s.handleLatest)
	mux.HandleFunc("GET /api/snapshots/{id}", s.handleSnapshot)
	mux.HandleFunc("GET /api/snapshots", s.handleHistory)
	mux.HandleFunc("GET /api/alerts", s.handleAlerts)
	mux.HandleFunc("GET /ws", s.ServeWS)
	mux.HandleFunc("GET /", s.handleIndex)
	return s.withCORS(mux)
}

// withCORS applies the configured origin allowlist to API responses.
// An empty allowlist means same-origin only: no CORS headers at all.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// checkOrigin guards the websocket upgrade. Requests without an Origin
// header (curl, native clients) are allowed; browser cross-origin
// requests must match the allowlist.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if s.originAllowed(origin) {
		return true
	}
	// Same-origin is always fine.
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}
