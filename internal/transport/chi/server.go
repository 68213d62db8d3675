// Package chi is the HTTP command/query surface of the tracking engine.
package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/spooltrack/internal/domain"
	"github.com/kailas-cloud/spooltrack/internal/domain/material"
	healthuc "github.com/kailas-cloud/spooltrack/internal/usecase/health"
	registryuc "github.com/kailas-cloud/spooltrack/internal/usecase/registry"
	sessionuc "github.com/kailas-cloud/spooltrack/internal/usecase/session"
	undouc "github.com/kailas-cloud/spooltrack/internal/usecase/undo"
)

// Error response codes.
const (
	CodeBadRequest       = "bad_request"
	CodeValidationFailed = "validation_failed"
	CodeNotFound         = "not_found"
	CodeSpoolLocked      = "spool_locked"
	CodeNoHistory        = "no_history"
	CodeSpoolInUse       = "spool_in_use"
	CodeNoActiveSpool    = "no_active_spool"
	CodeInternalError    = "internal_error"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers and their use case dependencies.
type Server struct {
	registry      *registryuc.Service
	sessions      *sessionuc.Service
	undo          *undouc.Service
	health        *healthuc.Service
	setupAutoLock bool
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. setupAutoLock is the lock behavior of
// the setup wizard when a request omits auto_lock.
func NewServer(
	registry *registryuc.Service,
	sessions *sessionuc.Service,
	undo *undouc.Service,
	health *healthuc.Service,
	setupAutoLock bool,
	logger *zap.Logger,
) *Server {
	s := &Server{
		registry:      registry,
		sessions:      sessions,
		undo:          undo,
		health:        health,
		setupAutoLock: setupAutoLock,
		logger:        logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrLocked, http.StatusLocked, CodeSpoolLocked),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrNoHistory, http.StatusConflict, CodeNoHistory),
		sentinelHandler(domain.ErrSpoolInUse, http.StatusConflict, CodeSpoolInUse),
		sentinelHandler(domain.ErrNoActiveSpool, http.StatusConflict, CodeNoActiveSpool),
	}
	return s
}

// Routes mounts all handlers on the router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Get("/state", s.GetState)

	r.Put("/selector/active", s.PutActiveSpool)
	r.Put("/selector/tracking", s.PutTracking)

	r.Get("/spools", s.ListSpools)
	r.Route("/spools/{id}", func(r chi.Router) {
		r.Get("/", s.GetSpool)
		r.Get("/history", s.GetHistory)
		r.Post("/name", s.PostName)
		r.Post("/material", s.PostMaterial)
		r.Post("/density", s.PostDensity)
		r.Post("/diameter", s.PostDiameter)
		r.Post("/weight", s.PostWeight)
		r.Post("/length", s.PostLength)
		r.Post("/lock", s.PostLock)
		r.Post("/reset", s.PostReset)
		r.Post("/empty", s.PostEmpty)
		r.Post("/setup", s.PostSetup)
		r.Post("/undo", s.PostUndo)
	})
}

// GetState handles GET /state.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	sel := s.registry.Selector()
	resp := stateResponse{
		ActiveSpoolID:   nil,
		TrackingEnabled: sel.TrackingEnabled,
	}
	if sel.HasActive() {
		id := sel.ActiveSpoolID
		resp.ActiveSpoolID = &id
	}
	if sess, ok := s.sessions.Snapshot(); ok {
		resp.Session = sessionToResponse(sess)
	}
	writeJSON(w, http.StatusOK, resp)
}

// PutActiveSpool handles PUT /selector/active. A null spool_id clears the
// selection.
func (s *Server) PutActiveSpool(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SpoolID *int `json:"spool_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	id := domain.SpoolNone
	if req.SpoolID != nil {
		id = *req.SpoolID
	}
	if err := s.registry.SelectActiveSpool(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PutTracking handles PUT /selector/tracking.
func (s *Server) PutTracking(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := s.registry.SetTrackingEnabled(r.Context(), req.Enabled); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSpools handles GET /spools.
func (s *Server) ListSpools(w http.ResponseWriter, r *http.Request) {
	sel := s.registry.Selector()
	spools := s.registry.Spools()

	items := make([]spoolResponse, len(spools))
	for i, sp := range spools {
		items[i] = spoolToResponse(sp, sp.ID() == sel.ActiveSpoolID)
	}
	writeJSON(w, http.StatusOK, spoolListResponse{Items: items})
}

// GetSpool handles GET /spools/{id}.
func (s *Server) GetSpool(w http.ResponseWriter, r *http.Request) {
	id, ok := s.spoolID(w, r)
	if !ok {
		return
	}
	sp, err := s.registry.Spool(id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, spoolToResponse(sp, s.registry.Selector().ActiveSpoolID == id))
}

// GetHistory handles GET /spools/{id}/history. Entries come back newest-first.
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.spoolID(w, r)
	if !ok {
		return
	}
	sp, err := s.registry.Spool(id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	entries := sp.Ledger().Entries()
	items := make([]historyEntryResponse, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		items = append(items, entryToResponse(entries[i]))
	}
	writeJSON(w, http.StatusOK, historyListResponse{Items: items})
}

// PostName handles POST /spools/{id}/name.
func (s *Server) PostName(w http.ResponseWriter, r *http.Request) {
	id, ok := s.spoolID(w, r)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	s.command(w, r, id, s.registry.SetName(r.Context(), id, req.Name))
}

// PostMaterial handles POST /spools/{id}/material.
func (s *Server) PostMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := s.spoolID(w, r)
	if !ok {
		return
	}
	var req struct {
		Material string `json:"material"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	mat, err := material.Parse(req.Material)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}
	s.command(w, r, id, s.registry.SetMaterial(r.Context(), id, mat))
}

// PostDensity handles POST /spools/{id}/density. 0 clears the override.
func (s *Server) PostDensity(w http.ResponseWriter, r *http.Request) {
	id, ok := s.spoolID(w, r)
	if !ok {
		return
	}
	var req struct {
		Density float64 `json:"density"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	s.command(w, r, id, s.registry.SetDensity(r.Context(), id, req.Density))
}

// PostDiameter handles POST /spools/{id}/diameter.
func (s *Server) PostDiameter(w http.ResponseWriter, r *http.Request) {
	id, ok := s.spoolID(w, r)
	if !ok {
		return
	}
	var req struct {
		DiameterMM float64 `json:"diameter_mm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	s.command(w, r, id, s.registry.SetDiameter(r.Context(), id, req.DiameterMM))
}

// PostWeight handles POST /spools/{id}/weight.
func (s *Server) PostWeight(w http.ResponseWriter, r *http.Request) {
	id, ok := s.spoolID(w, r)
	if !ok {
		return
	}
	var req struct {
		WeightG float64 `json:"weight_g"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	s.command(w, r, id, s.registry.SetWeight(r.Context(), id, req.WeightG))
}

// PostLength handles POST /spools/{id}/length.
func (s *Server) PostLength(w http.ResponseWriter, r *http.Request) {
	id, ok := s.spoolID(w, r)
	if !ok {
		return
	}
	var req struct {
		LengthMM float64 `json:"length_mm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	s.command(w, r, id, s.registry.SetLength(r.Context(), id, req.LengthMM))
}

// PostLock handles POST /spools/{id}/lock.
func (s *Server) PostLock(w http.ResponseWriter, r *http.Request) {
	id, ok := s.spoolID(w, r)
	if !ok {
		return
	}
	var req struct {
		Locked bool `json:"locked"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	s.command(w, r, id, s.registry.SetLock(r.Context(), id, req.Locked))
}

// PostReset handles POST /spools/{id}/reset.
func (s *Server) PostReset(w http.ResponseWriter, r *http.Request) {
	id, ok := s.spoolID(w, r)
	if !ok {
		return
	}
	s.command(w, r, id, s.registry.ResetSpool(r.Context(), id))
}

// PostEmpty handles POST /spools/{id}/empty: quick-reload the slot with a
// fresh roll of the same configuration.
func (s *Server) PostEmpty(w http.ResponseWriter, r *http.Request) {
	id, ok := s.spoolID(w, r)
	if !ok {
		return
	}
	s.command(w, r, id, s.registry.MarkEmptyQuickReload(r.Context(), id))
}

// PostSetup handles POST /spools/{id}/setup: the one-shot configuration
// wizard.
func (s *Server) PostSetup(w http.ResponseWriter, r *http.Request) {
	id, ok := s.spoolID(w, r)
	if !ok {
		return
	}
	var req struct {
		Name     string  `json:"name"`
		Material string  `json:"material"`
		WeightG  float64 `json:"weight_g"`
		AutoLock *bool   `json:"auto_lock"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	mat, err := material.Parse(req.Material)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}
	autoLock := s.setupAutoLock
	if req.AutoLock != nil {
		autoLock = *req.AutoLock
	}
	s.command(w, r, id, s.registry.SetupSpool(r.Context(), id, req.Name, mat, req.WeightG, autoLock))
}

// PostUndo handles POST /spools/{id}/undo. An empty body (or empty entry_id)
// reverts the newest applied entry; a named entry_id reverts that entry.
func (s *Server) PostUndo(w http.ResponseWriter, r *http.Request) {
	id, ok := s.spoolID(w, r)
	if !ok {
		return
	}
	var req struct {
		EntryID string `json:"entry_id"`
	}
	// A missing body means "undo the newest entry"; chunked requests carry no
	// Content-Length, so an EOF from the decoder is the only reliable signal.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	var err error
	var entry historyEntryResponse
	if req.EntryID == "" {
		var e, undoErr = s.undo.UndoLast(r.Context(), id)
		entry, err = entryToResponse(e), undoErr
	} else {
		var e, undoErr = s.undo.UndoEntry(r.Context(), id, req.EntryID)
		entry, err = entryToResponse(e), undoErr
	}
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	sp, err := s.registry.Spool(id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, undoResponse{
		Reverted: entry,
		Spool:    spoolToResponse(sp, s.registry.Selector().ActiveSpoolID == id),
	})
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// command finishes a mutation request: the updated spool on success, the
// mapped error otherwise.
func (s *Server) command(w http.ResponseWriter, r *http.Request, id int, err error) {
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	sp, err := s.registry.Spool(id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, spoolToResponse(sp, s.registry.Selector().ActiveSpoolID == id))
}

func (s *Server) spoolID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "spool id must be an integer")
		return 0, false
	}
	return id, true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns the full error chain for known sentinels without
// exposing internals for anything else.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidInput,
		domain.ErrLocked,
		domain.ErrNotFound,
		domain.ErrNoHistory,
		domain.ErrSpoolInUse,
		domain.ErrNoActiveSpool,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return err.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}
