package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/sukalov/lyricstudio/internal/db"
	"github.com/sukalov/lyricstudio/internal/generation"
	"github.com/sukalov/lyricstudio/internal/logger"
	"github.com/sukalov/lyricstudio/internal/stats"
	"github.com/sukalov/lyricstudio/internal/studio"
)

type createSessionRequest struct {
	Lyrics   string `json:"lyrics"`
	WriterID string `json:"writerId"`
	Genre    string `json:"genre"`
}

// textRequest and selectRequest carry selections in code points, so an
// editor counting UTF-16 units has to convert anything past the BMP.
type textRequest struct {
	Text      string            `json:"text"`
	Selection *studio.Selection `json:"selection"`
}

type selectRequest struct {
	Selection studio.Selection `json:"selection"`
}

type candidateRequest struct {
	Candidate string `json:"candidate"`
}

type settingsRequest struct {
	Genre       *string `json:"genre"`
	Persona     *bool   `json:"persona"`
	AutoSuggest *bool   `json:"autoSuggest"`
}

// audioRequest carries an uploaded file as the browser reads it.
type audioRequest struct {
	Data     string `json:"data"`
	MIMEType string `json:"mimeType"`
}

type importRequest struct {
	URL string `json:"url"`
}

type cursorResponse struct {
	Applied bool         `json:"applied"`
	Cursor  int          `json:"cursor"`
	State   studio.State `json:"state"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]any{"status": "ok", "sessions": len(s.deps.Manager.IDs())})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decode(w, r, &req) {
		return
	}

	profile := s.loadProfile(r.Context(), req.WriterID)
	if req.Genre != "" {
		g, ok := generation.ParseGenre(req.Genre)
		if !ok {
			respondError(w, http.StatusBadRequest, "BAD_GENRE", fmt.Sprintf("unknown genre %q", req.Genre))
			return
		}
		profile.Genre = g
	}

	id := uuid.NewString()
	sess, err := s.deps.Manager.Open(id, req.Lyrics, profile)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "SESSION_ERROR", err.Error())
		return
	}
	if s.deps.Binder != nil && req.WriterID != "" {
		s.deps.Binder.Bind(id, req.WriterID)
	}

	logger.Info(fmt.Sprintf("session %s opened for writer %q", id, req.WriterID))
	respond(w, http.StatusCreated, map[string]any{"id": id, "state": sess.Snapshot()})
}

// loadProfile falls back to the default profile for anonymous writers and
// on storage errors.
func (s *Server) loadProfile(ctx context.Context, writerID string) studio.Profile {
	if writerID == "" || s.deps.Store == nil {
		return studio.DefaultProfile()
	}
	w, err := s.deps.Store.GetProfile(ctx, writerID)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			logger.Error(fmt.Sprintf("failed to load profile for %s: %v", writerID, err))
		}
		return studio.DefaultProfile()
	}
	return w.Profile
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, s.deps.Manager.IDs())
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*studio.Session, bool) {
	id := r.PathValue("id")
	sess, ok := s.deps.Manager.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("session %s not found", id))
		return nil, false
	}
	return sess, true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.deps.Manager.Close(id) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("session %s not found", id))
		return
	}
	if s.deps.Binder != nil {
		s.deps.Binder.Unbind(id)
	}
	s.hub.CloseSession(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req textRequest
	if !decode(w, r, &req) {
		return
	}

	sel := studio.Cursor(len([]rune(req.Text)))
	if req.Selection != nil {
		sel = *req.Selection
	}
	if err := sess.Edit(req.Text, sel); err != nil {
		respondError(w, http.StatusGone, "SESSION_CLOSED", err.Error())
		return
	}
	respond(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req selectRequest
	if !decode(w, r, &req) {
		return
	}
	if err := sess.Select(req.Selection); err != nil {
		respondError(w, http.StatusGone, "SESSION_CLOSED", err.Error())
		return
	}
	respond(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	dispatched := sess.RequestSuggestions()
	respond(w, http.StatusAccepted, map[string]any{"dispatched": dispatched, "state": sess.Snapshot()})
}

func (s *Server) handleApplyRhyme(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req candidateRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Candidate == "" {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "candidate is required")
		return
	}

	cursor, applied := sess.ApplyRhyme(req.Candidate)
	respond(w, http.StatusOK, cursorResponse{Applied: applied, Cursor: cursor, State: sess.Snapshot()})
}

func (s *Server) handleInsertSuggestion(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req textRequest
	if !decode(w, r, &req) {
		return
	}

	cursor, err := sess.InsertSuggestion(req.Text)
	if err != nil {
		respondError(w, http.StatusGone, "SESSION_CLOSED", err.Error())
		return
	}
	respond(w, http.StatusOK, cursorResponse{Applied: true, Cursor: cursor, State: sess.Snapshot()})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req settingsRequest
	if !decode(w, r, &req) {
		return
	}

	if req.Genre != nil {
		g, ok := generation.ParseGenre(*req.Genre)
		if !ok {
			respondError(w, http.StatusBadRequest, "BAD_GENRE", fmt.Sprintf("unknown genre %q", *req.Genre))
			return
		}
		sess.SetGenre(g)
	}
	if req.Persona != nil {
		sess.SetPersona(*req.Persona)
	}
	if req.AutoSuggest != nil {
		sess.SetAutoSuggest(*req.AutoSuggest)
	}
	respond(w, http.StatusOK, sess.Snapshot())
}

func decodeAudio(w http.ResponseWriter, r *http.Request) (generation.Audio, bool) {
	var req audioRequest
	if !decode(w, r, &req) {
		return generation.Audio{}, false
	}

	// data urls carry the mime type in their header
	data := req.Data
	if strings.HasPrefix(data, "data:") {
		header, payload, found := strings.Cut(data, ",")
		if !found {
			respondError(w, http.StatusBadRequest, "BAD_AUDIO", "malformed data url")
			return generation.Audio{}, false
		}
		if req.MIMEType == "" {
			req.MIMEType = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		}
		data = payload
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil || len(raw) == 0 {
		respondError(w, http.StatusBadRequest, "BAD_AUDIO", "audio must be non-empty base64")
		return generation.Audio{}, false
	}
	if req.MIMEType == "" {
		req.MIMEType = http.DetectContentType(raw)
	}
	return generation.Audio{Data: raw, MIMEType: req.MIMEType}, true
}

func (s *Server) handleInstrumental(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	audio, ok := decodeAudio(w, r)
	if !ok {
		return
	}

	meta, err := sess.AnalyzeInstrumental(r.Context(), audio)
	if err != nil {
		respondError(w, http.StatusBadGateway, "ANALYSIS_FAILED", "instrumental analysis failed")
		return
	}
	respond(w, http.StatusOK, meta)
}

func (s *Server) handleRemoveInstrumental(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.SetInstrumental(nil)
	respond(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if s.deps.Importer == nil {
		respondError(w, http.StatusNotImplemented, "UNAVAILABLE", "lyrics import is not configured")
		return
	}
	var req importRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := s.deps.Importer.Import(r.Context(), req.URL)
	if err != nil {
		respondError(w, http.StatusBadGateway, "IMPORT_FAILED", err.Error())
		return
	}
	if err := sess.Edit(res.Text, studio.Cursor(len([]rune(res.Text)))); err != nil {
		respondError(w, http.StatusGone, "SESSION_CLOSED", err.Error())
		return
	}
	respond(w, http.StatusOK, map[string]any{"import": res, "state": sess.Snapshot()})
}

// handleCalibrate scores a recorded take. A request without data skips the
// recording and stores the reference scores.
func (s *Server) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	writerID := r.PathValue("id")

	var take *generation.Audio
	if r.ContentLength != 0 {
		audio, ok := decodeAudio(w, r)
		if !ok {
			return
		}
		take = &audio
	}

	result := studio.Calibrate(r.Context(), s.deps.Cadence, take)
	profile := s.loadProfile(r.Context(), writerID).WithCadence(result)

	if s.deps.Store != nil {
		if err := s.deps.Store.SaveProfile(r.Context(), writerID, "", profile); err != nil {
			respondError(w, http.StatusInternalServerError, "STORE_FAILED", err.Error())
			return
		}
	}
	respond(w, http.StatusOK, map[string]any{"cadence": result, "profile": profile})
}

type profileRequest struct {
	Name    string         `json:"name"`
	Profile studio.Profile `json:"profile"`
}

func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		respondError(w, http.StatusNotImplemented, "UNAVAILABLE", "profile storage is not configured")
		return
	}
	req := profileRequest{Profile: studio.DefaultProfile()}
	if !decode(w, r, &req) {
		return
	}
	genre, ok := generation.ParseGenre(string(req.Profile.Genre))
	if !ok {
		respondError(w, http.StatusBadRequest, "BAD_GENRE", fmt.Sprintf("unknown genre %q", req.Profile.Genre))
		return
	}
	req.Profile.Genre = genre

	if err := s.deps.Store.SaveProfile(r.Context(), r.PathValue("id"), req.Name, req.Profile); err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_FAILED", err.Error())
		return
	}
	respond(w, http.StatusOK, req.Profile)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		respondError(w, http.StatusNotImplemented, "UNAVAILABLE", "analytics storage is not configured")
		return
	}
	d, err := stats.Build(r.Context(), s.deps.Store, r.PathValue("id"), s.now())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STATS_FAILED", err.Error())
		return
	}
	respond(w, http.StatusOK, d)
}
