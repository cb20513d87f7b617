package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/CatherineChiramel/Squirrel/internal/frontier"
	"github.com/CatherineChiramel/Squirrel/internal/resource"
)

type submitRequest struct {
	References []string `json:"references"`
}

type submitResponse struct {
	Submitted int `json:"submitted"`
}

type batchRequest struct {
	Max int `json:"max"`
}

type batchResponse struct {
	Resources []*resource.Resource `json:"resources"`
}

type completionRequest struct {
	URI      string   `json:"uri"`
	Children []string `json:"children"`
}

type completionResponse struct {
	URI      string `json:"uri"`
	Children int    `json:"children"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// requestLogger tags the request log with a correlation ID and echoes
// the ID to the client so worker logs can be matched to server logs.
func (s *Server) requestLogger(w http.ResponseWriter, r *http.Request) *slog.Logger {
	id := uuid.NewString()
	w.Header().Set("X-Request-ID", id)
	return s.logger.With("request_id", id, "method", r.Method, "path", r.URL.Path)
}

// handleSubmit accepts a list of references for admission. Malformed
// and filtered references are dropped silently, so the response counts
// what was received, not what was admitted.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(w, r)
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.References) == 0 {
		writeError(w, http.StatusBadRequest, "no references submitted")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := s.frontier.Submit(ctx, req.References); err != nil {
		logger.Error("submit failed", "count", len(req.References), "error", err)
		writeError(w, http.StatusBadGateway, "failed to submit references")
		return
	}

	logger.Debug("references submitted", "count", len(req.References))
	writeJSON(w, submitResponse{Submitted: len(req.References)}, http.StatusAccepted)
}

// handleBatch claims the next batch of dispatchable resources. An empty
// body or a non-positive max selects the configured batch limit. The
// response may be empty when every pending address has in-flight work.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(w, r)
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	size := req.Max
	if size <= 0 || size > s.batchLimit {
		size = s.batchLimit
	}

	batch := s.frontier.NextBatch(size)
	if batch == nil {
		batch = []*resource.Resource{}
	}

	logger.Debug("batch claimed", "requested", size, "granted", len(batch))
	writeJSON(w, batchResponse{Resources: batch}, http.StatusOK)
}

// handleCompletion records a finished crawl and submits its children.
func (s *Server) handleCompletion(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(w, r)
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req completionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.URI == "" {
		writeError(w, http.StatusBadRequest, "missing uri")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	err := s.frontier.Completion(ctx, req.URI, req.Children)
	switch {
	case err == nil:
		logger.Debug("completion recorded", "uri", req.URI, "children", len(req.Children))
		writeJSON(w, completionResponse{URI: req.URI, Children: len(req.Children)}, http.StatusOK)
	case errors.Is(err, frontier.ErrNotDispatched):
		logger.Warn("completion for undispatched resource", "uri", req.URI)
		writeError(w, http.StatusConflict, "resource was not dispatched")
	case errors.Is(err, resource.ErrMalformedReference):
		writeError(w, http.StatusBadRequest, "malformed uri")
	default:
		logger.Error("completion failed", "uri", req.URI, "error", err)
		writeError(w, http.StatusBadGateway, "failed to record completion")
	}
}

// handleStatus reports queue and ledger figures.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(w, r)
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	stats, err := s.frontier.Snapshot(ctx)
	if err != nil {
		logger.Error("status snapshot failed", "error", err)
		writeError(w, http.StatusBadGateway, "failed to gather status")
		return
	}

	writeJSON(w, stats, http.StatusOK)
}

// handleHealthz is the liveness probe. It reports on the process, not
// on the ledger backend, so it stays cheap enough for tight intervals.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, healthResponse{Status: "healthy"}, http.StatusOK)
}

func writeJSON(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, errorResponse{Error: msg}, status)
}
