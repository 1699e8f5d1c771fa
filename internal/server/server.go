package server

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daywalker90/summars-sub000/internal/archive"
	"github.com/daywalker90/summars-sub000/internal/availability"
	"github.com/daywalker90/summars-sub000/internal/summary"
)

const (
	summaryTimeout = 2 * time.Minute
	archiveTimeout = 10 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// Server exposes the report, the availability snapshot and the archive over
// HTTP, plus a websocket feed of availability ticks.
type Server struct {
	engine *summary.Engine
	store  *availability.Store
	db     *pgxpool.Pool
	logger *log.Logger

	upgrader websocket.Upgrader

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}
}

func New(engine *summary.Engine, store *availability.Store, db *pgxpool.Pool, logger *log.Logger) *Server {
	return &Server{
		engine:  engine,
		store:   store,
		db:      db,
		logger:  logger,
		clients: map[*websocket.Conn]struct{}{},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/api/summary", s.handleSummary)
	r.Get("/api/availability", s.handleAvailability)
	r.Get("/api/archive", s.handleArchive)
	r.Get("/api/availability/ws", s.handleAvailabilityWS)
	return r
}

func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if s.logger != nil {
		s.logger.Printf("server: listening on %s", addr)
	}
	return srv.ListenAndServe()
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), summaryTimeout)
	defer cancel()

	report, err := s.engine.Run(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.Printf("server: summary failed: %v", err)
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	if s.db != nil {
		archiveCtx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		if err := archive.InsertRun(archiveCtx, s.db, archive.RowFromReport(report)); err != nil && s.logger != nil {
			s.logger.Printf("server: archive insert failed: %v", err)
		}
		cancel()
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "archive not configured")
		return
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from timestamp")
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to timestamp")
			return
		}
		to = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), archiveTimeout)
	defer cancel()
	rows, err := archive.FetchRange(ctx, s.db, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": rows})
}

func (s *Server) handleAvailabilityWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = struct{}{}
	s.clientsMu.Unlock()

	// drain control frames until the peer goes away
	go func() {
		defer s.dropClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) dropClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	delete(s.clients, conn)
	s.clientsMu.Unlock()
	_ = conn.Close()
}

// BroadcastTick pushes a fresh availability map to every websocket client.
// Wire it into the estimator's OnTick hook.
func (s *Server) BroadcastTick(peers map[string]availability.Record) {
	s.clientsMu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for conn := range s.clients {
		conns = append(conns, conn)
	}
	s.clientsMu.Unlock()

	for _, conn := range conns {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(peers); err != nil {
			s.dropClient(conn)
		}
	}
}
