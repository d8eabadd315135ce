package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/amagilabs/kasane/internal/models"
)

type retrieveRequest struct {
	Query   string                   `json:"query"`
	Options *models.RetrievalOptions `json:"options,omitempty"`
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	resp := s.svc.Retrieve(r.Context(), req.Query, req.Options)
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIngestDocument(w http.ResponseWriter, r *http.Request) {
	var input models.DocumentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.Content == "" {
		s.respondError(w, http.StatusBadRequest, "content is required")
		return
	}
	n, err := s.svc.IngestDocument(r.Context(), &input)
	if err != nil {
		s.logger.Error("ingest failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"source": input.Source,
		"chunks": n,
	})
}

func (s *Server) handleRemoveSource(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")
	removed := s.svc.RemoveSource(source)
	if removed == 0 {
		s.respondError(w, http.StatusNotFound, "source not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"source":  source,
		"removed": removed,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.svc.Stats())
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.svc.Clear()
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"chunks": s.svc.Export(),
	})
}

type importRequest struct {
	Chunks []*models.Chunk `json:"chunks"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	added, skipped := s.svc.Import(req.Chunks)
	s.respondJSON(w, http.StatusOK, map[string]int{
		"added":   added,
		"skipped": skipped,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
