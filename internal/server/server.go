package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sukalov/lyricstudio/internal/logger"
	"github.com/sukalov/lyricstudio/internal/lyrics"
	"github.com/sukalov/lyricstudio/internal/stats"
	"github.com/sukalov/lyricstudio/internal/studio"
)

// maxBodySize bounds request bodies; instrumentals arrive base64 encoded.
const maxBodySize = 32 << 20

// Store is the profile and analytics storage the API reads and writes.
type Store interface {
	stats.Source
	SaveProfile(ctx context.Context, id, name string, p studio.Profile) error
}

type Importer interface {
	Import(ctx context.Context, url string) (*lyrics.Result, error)
}

// Binder attributes session activity to a writer.
type Binder interface {
	Bind(sessionID, writerID string)
	Unbind(sessionID string)
}

type Deps struct {
	Manager  *studio.Manager
	Cadence  studio.CadenceAnalyzer
	Store    Store
	Importer Importer
	Binder   Binder
}

// Server is the HTTP and WebSocket surface of the studio.
type Server struct {
	deps Deps
	hub  *Hub
	now  func() time.Time

	hubCtx  context.Context
	stopHub context.CancelFunc
	hubOnce sync.Once
}

func New(deps Deps) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		deps:    deps,
		hub:     NewHub(),
		now:     time.Now,
		hubCtx:  ctx,
		stopHub: cancel,
	}
	deps.Manager.OnEvent(s.hub.Listen)
	return s
}

// Close disconnects every websocket client.
func (s *Server) Close() {
	s.stopHub()
}

func (s *Server) Handler() http.Handler {
	s.hubOnce.Do(func() { go s.hub.Run(s.hubCtx) })

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/edit", s.handleEdit)
	mux.HandleFunc("POST /api/sessions/{id}/select", s.handleSelect)
	mux.HandleFunc("POST /api/sessions/{id}/suggest", s.handleSuggest)
	mux.HandleFunc("POST /api/sessions/{id}/rhymes/apply", s.handleApplyRhyme)
	mux.HandleFunc("POST /api/sessions/{id}/suggestions/insert", s.handleInsertSuggestion)
	mux.HandleFunc("PATCH /api/sessions/{id}/settings", s.handleSettings)
	mux.HandleFunc("POST /api/sessions/{id}/instrumental", s.handleInstrumental)
	mux.HandleFunc("DELETE /api/sessions/{id}/instrumental", s.handleRemoveInstrumental)
	mux.HandleFunc("POST /api/sessions/{id}/import", s.handleImport)
	mux.HandleFunc("GET /api/sessions/{id}/ws", s.handleWebSocket)

	mux.HandleFunc("POST /api/writers/{id}/calibrate", s.handleCalibrate)
	mux.HandleFunc("PUT /api/writers/{id}/profile", s.handleSaveProfile)
	mux.HandleFunc("GET /api/writers/{id}/stats", s.handleStats)

	return corsMiddleware(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	defer s.Close()

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("studio api listening on %s", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

func respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Error: &apiError{Code: code, Message: message}})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}
