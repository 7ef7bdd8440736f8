package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rpattn/permitsync/internal/domain"
	"github.com/rpattn/permitsync/internal/health"
	"github.com/rpattn/permitsync/internal/ingest"
	"github.com/rpattn/permitsync/internal/store"
)

// maxPatchBody bounds source patch request bodies.
const maxPatchBody = 1 << 20

// Server exposes the sync engine and source catalog over HTTP.
type Server struct {
	Catalog store.SourceCatalog
	Permits store.PermitStore
	Runs    store.RunStore
	Engine  *ingest.Engine

	// Flush persists file-backed stores after a mutation. Nil when the
	// stores persist themselves.
	Flush func(ctx context.Context) error
}

// Routes builds the request mux. Middleware and CORS are applied by the
// caller.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sources", s.handleListSources)
	mux.HandleFunc("GET /sources/{key}", s.handleGetSource)
	mux.HandleFunc("POST /sources/{key}/patch", s.handlePatchSource)
	mux.HandleFunc("POST /sources/{key}/validate", s.handleValidateSource)
	mux.HandleFunc("POST /sync", s.handleSync)
	mux.HandleFunc("GET /health/ingestion", s.handleIngestionHealth)
	return mux
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.Catalog.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sources)
}

func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	source, ok, err := s.Catalog.Get(r.Context(), key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, fmt.Sprintf("source %s not found", key), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, source)
}

func (s *Server) handlePatchSource(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	source, ok, err := s.Catalog.Get(r.Context(), key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, fmt.Sprintf("source %s not found", key), http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPatchBody))
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read body: %v", err), http.StatusBadRequest)
		return
	}
	var patch map[string]any
	if err := json.Unmarshal(body, &patch); err != nil {
		http.Error(w, fmt.Sprintf("invalid patch payload: %v", err), http.StatusBadRequest)
		return
	}

	if err := source.ApplyPatch(patch); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.Catalog.Save(r.Context(), source); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, source)
}

func (s *Server) handleValidateSource(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	source, ok, err := s.Catalog.Get(r.Context(), key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		report := health.BuildSourceValidationReport(nil, nil)
		writeJSON(w, http.StatusOK, report)
		return
	}

	sampleLimit := 0
	if raw := r.URL.Query().Get("sample_limit"); raw != "" {
		sampleLimit, err = strconv.Atoi(raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid sample_limit: %v", err), http.StatusBadRequest)
			return
		}
	}

	preview, err := s.Engine.PreviewSource(r.Context(), source, sampleLimit)
	if err != nil {
		// A failed dry run is a blocked verdict, not a transport error to
		// the caller.
		report := health.BuildSourceValidationReport(&source, nil)
		report.Notes = append(report.Notes, err.Error())
		writeJSON(w, http.StatusOK, report)
		return
	}
	report := health.BuildSourceValidationReport(&source, &preview)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	sources, err := s.Catalog.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	opts := ingest.Options{
		SourceKey:       r.URL.Query().Get("source"),
		IncludeDisabled: r.URL.Query().Get("include_disabled") == "true",
	}

	run, err := s.Engine.SyncSources(r.Context(), sources, opts)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSourceNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, domain.ErrNoEnabledSources):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	if s.Flush != nil {
		if err := s.Flush(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleIngestionHealth(w http.ResponseWriter, r *http.Request) {
	sources, err := s.Catalog.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	permits, err := s.Permits.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	runs, err := s.Runs.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	now := time.Now().UTC()
	if s.Engine.Now != nil {
		now = s.Engine.Now()
	}
	report := health.Summarize(sources, permits, runs, now)
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
