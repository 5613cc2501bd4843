package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/FocuswithJustin/JuniperScore/core/cas"
	"github.com/FocuswithJustin/JuniperScore/core/errors"
	"github.com/FocuswithJustin/JuniperScore/core/merge"
	"github.com/FocuswithJustin/JuniperScore/internal/archive"
	"github.com/FocuswithJustin/JuniperScore/internal/formats"
	"github.com/FocuswithJustin/JuniperScore/internal/logging"
	"github.com/FocuswithJustin/JuniperScore/internal/pipeline"
)

// Version is reported by / and /health.
var Version = "0.1.0"

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Formats   int    `json:"formats"`
	Clients   int    `json:"websocket_clients"`
	Catalogue bool   `json:"catalogue"`
}

// MergeRequest is the body of POST /merge and POST /jobs. Primary holds a
// two-voice encoding, or the first voice when Secondary is set.
type MergeRequest struct {
	Format        string   `json:"format,omitempty"`
	Primary       string   `json:"primary"`
	PrimaryName   string   `json:"primary_name,omitempty"`
	Secondary     string   `json:"secondary,omitempty"`
	SecondaryName string   `json:"secondary_name,omitempty"`
	Page          int      `json:"page,omitempty"`
	Export        string   `json:"export,omitempty"`
	Sources       []string `json:"sources,omitempty"`
}

// MergeResult is the data of a successful merge.
type MergeResult struct {
	RunID     string        `json:"run_id,omitempty"`
	Format    string        `json:"format"`
	Output    string        `json:"output"`
	Report    *merge.Report `json:"report"`
	OutputRef *cas.Ref      `json:"output_ref,omitempty"`
	Hash      string        `json:"content_hash"`
	Duration  string        `json:"duration"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}
	respond(w, r, http.StatusOK, map[string]any{
		"name":    "JuniperScore API",
		"version": Version,
		"endpoints": []string{
			"GET /health",
			"GET /formats",
			"POST /merge",
			"GET /runs",
			"GET /runs/:id",
			"DELETE /runs/:id",
			"GET /runs/:id/bundle",
			"POST /jobs",
			"GET /jobs",
			"GET /jobs/:id",
			"DELETE /jobs/:id",
			"WS /ws",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}
	respond(w, r, http.StatusOK, HealthInfo{
		Status:    "healthy",
		Version:   Version,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Formats:   len(formats.List()),
		Clients:   s.hub.ClientCount(),
		Catalogue: s.pipeline.Runs != nil,
	})
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}
	list := formats.List()
	respondList(w, r, list, len(list))
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}
	req, ok := s.decodeMerge(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	requestID := logging.GetRequestID(ctx)
	result, err := s.merge(ctx, req, Event{Operation: "merge", RequestID: requestID})
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, r, http.StatusOK, result)
}

// decodeMerge reads and checks a MergeRequest body, answering the client
// itself when the body is unusable.
func (s *Server) decodeMerge(w http.ResponseWriter, r *http.Request) (*MergeRequest, bool) {
	var req MergeRequest
	body := http.MaxBytesReader(w, r.Body, s.cfg.maxBody())
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE",
				fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
			return nil, false
		}
		respondError(w, http.StatusBadRequest, "INVALID_JSON", errors.NewParse("JSON", "request body", err.Error()).Error())
		return nil, false
	}
	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, "MISSING_PARAMS", err.Error())
		return nil, false
	}
	return &req, true
}

func (req *MergeRequest) validate() error {
	switch {
	case strings.TrimSpace(req.Primary) == "":
		return fmt.Errorf("%w: primary is required", errors.ErrInvalidInput)
	case req.Page < 0:
		return fmt.Errorf("%w: page must not be negative", errors.ErrInvalidInput)
	case len(req.Sources) > 2:
		return fmt.Errorf("%w: at most two source labels", errors.ErrInvalidInput)
	}
	return nil
}

// pipelineRequest converts the body into a pipeline request. The shared
// format applies to both sources.
func (req *MergeRequest) pipelineRequest() pipeline.Request {
	out := pipeline.Request{
		Primary: pipeline.Source{Name: req.PrimaryName, Format: req.Format, Data: []byte(req.Primary)},
		Page:    req.Page,
		Export:  req.Export,
	}
	copy(out.Sources[:], req.Sources)
	if req.Secondary != "" {
		out.Secondary = &pipeline.Source{Name: req.SecondaryName, Format: req.Format, Data: []byte(req.Secondary)}
	}
	return out
}

// merge runs req through the pipeline, broadcasting each mismatch and the
// outcome with the identifiers in base.
func (s *Server) merge(ctx context.Context, req *MergeRequest, base Event) (*MergeResult, error) {
	preq := req.pipelineRequest()
	preq.Observer = func(m merge.Mismatch) {
		ev := base
		ev.Type = EventMismatch
		ev.Mismatch = &m
		s.hub.Broadcast(ev)
	}

	outcome, err := s.pipeline.Run(ctx, preq)
	if err != nil {
		ev := base
		ev.Type = EventError
		ev.Message = err.Error()
		s.hub.Broadcast(ev)
		return nil, err
	}

	result := &MergeResult{
		RunID:    outcome.RunID,
		Format:   outcome.Format,
		Output:   string(outcome.Output),
		Report:   outcome.Report,
		Hash:     outcome.Hash,
		Duration: outcome.Duration.String(),
	}
	if outcome.OutputRef.SHA256 != "" {
		ref := outcome.OutputRef
		result.OutputRef = &ref
	}

	ev := base
	ev.Type = EventComplete
	ev.RunID = outcome.RunID
	ev.Message = outcome.Report.Summary()
	ev.Report = summarize(outcome.Report)
	s.hub.Broadcast(ev)
	return result, nil
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}
	if s.pipeline.Runs == nil {
		respondErr(w, errors.NewUnsupported("run catalogue", "server started without a data directory"))
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "INVALID_PARAMS", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	runs, err := s.pipeline.Runs.List(r.Context(), limit)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondList(w, r, runs, len(runs))
}

func (s *Server) handleRunByID(w http.ResponseWriter, r *http.Request) {
	id, sub, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/runs/"), "/")
	if err := ValidateID(id); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", fmt.Sprintf("Invalid run ID: %v", err))
		return
	}
	if s.pipeline.Runs == nil {
		respondErr(w, errors.NewUnsupported("run catalogue", "server started without a data directory"))
		return
	}

	switch {
	case sub == "bundle" && r.Method == http.MethodGet:
		s.handleBundle(w, r, id)
	case sub != "":
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Unknown run resource: "+sub)
	case r.Method == http.MethodGet:
		if run, ok := s.runCache.Get(id); ok {
			respond(w, r, http.StatusOK, run)
			return
		}
		run, err := s.pipeline.Runs.Get(r.Context(), id)
		if err != nil {
			respondErr(w, err)
			return
		}
		s.runCache.Set(id, run)
		respond(w, r, http.StatusOK, run)
	case r.Method == http.MethodDelete:
		s.runCache.Delete(id)
		if err := s.pipeline.Runs.Delete(r.Context(), id); err != nil {
			respondErr(w, err)
			return
		}
		respond(w, r, http.StatusOK, map[string]string{"message": "Run deleted"})
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET and DELETE are allowed")
	}
}

// handleBundle streams a run bundle as tar.xz.
func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request, id string) {
	run, entries, err := s.pipeline.Bundle(r.Context(), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	var buf bytes.Buffer
	if err := archive.WriteXZ(&buf, "run-"+run.ID, entries, run.CreatedAt); err != nil {
		respondErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-xz")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="run-%s.tar.xz"`, run.ID))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// errorStatus maps an error to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "CANCELLED"
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, errors.ErrUnsupported):
		return http.StatusUnprocessableEntity, "UNSUPPORTED"
	case errors.Is(err, errors.ErrIncompleteApparatus):
		return http.StatusUnprocessableEntity, "INCOMPLETE_APPARATUS"
	case errors.Is(err, errors.ErrInvalidInput), errors.Is(err, errors.ErrInvalidChild):
		return http.StatusUnprocessableEntity, "INVALID_INPUT"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

func respondErr(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		logging.Error("request failed", "error", err)
	}
	respondError(w, status, code, err.Error())
}

func respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Meta:    newMeta(r, 0),
	})
}

func respondList(w http.ResponseWriter, r *http.Request, data any, total int) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Meta:    newMeta(r, total),
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
		Meta:    newMeta(nil, 0),
	})
}

func newMeta(r *http.Request, total int) *APIMeta {
	meta := &APIMeta{Total: total, Timestamp: time.Now().UTC().Format(time.RFC3339)}
	if r != nil {
		meta.RequestID = logging.GetRequestID(r.Context())
	}
	return meta
}

func writeJSON(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Warn("failed to write response", "error", err)
	}
}
