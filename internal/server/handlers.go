package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/giantswarm/microerror"

	"github.com/studiowebux/k6ui/internal/glossary"
	"github.com/studiowebux/k6ui/internal/history"
	"github.com/studiowebux/k6ui/internal/loadtest"
	"github.com/studiowebux/k6ui/internal/service"
)

type errorResponse struct {
	Error string `json:"error"`
}

type scriptResponse struct {
	Script string `json:"script"`
}

type healthResponse struct {
	Status string `json:"status"`
	K6     string `json:"k6"`
}

func (s *Server) handleLoadTest(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.decodeConfig(w, r)
	if !ok {
		return
	}

	// The k6 process outlives a caller that goes away.
	ctx := context.WithoutCancel(r.Context())

	result, err := s.service.Run(ctx, cfg, nil)
	if err != nil {
		s.writeError(r.Context(), w, statusFor(err), err)
		return
	}

	s.writeJSON(r.Context(), w, http.StatusOK, result)
}

func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.decodeConfig(w, r)
	if !ok {
		return
	}

	content, err := s.service.Preview(cfg)
	if err != nil {
		s.writeError(r.Context(), w, statusFor(err), err)
		return
	}

	s.writeJSON(r.Context(), w, http.StatusOK, scriptResponse{Script: content})
}

func (s *Server) decodeConfig(w http.ResponseWriter, r *http.Request) (loadtest.Config, bool) {
	var cfg loadtest.Config

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&cfg); err != nil {
		s.writeError(r.Context(), w, http.StatusBadRequest, fmt.Errorf("invalid request body: %s", err))
		return loadtest.Config{}, false
	}

	return cfg, true
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(r.Context(), w, http.StatusNotFound, errHistoryDisabled)
		return
	}

	limit := history.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(r.Context(), w, http.StatusBadRequest, fmt.Errorf("limit must be a positive integer"))
			return
		}
		limit = n
	}

	runs, err := s.history.List(limit)
	if err != nil {
		s.writeError(r.Context(), w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(r.Context(), w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := s.runID(w, r)
	if !ok {
		return
	}

	run, err := s.history.Get(id)
	if history.IsNotFound(err) {
		s.writeError(r.Context(), w, http.StatusNotFound, err)
		return
	} else if err != nil {
		s.writeError(r.Context(), w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(r.Context(), w, http.StatusOK, run)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id, ok := s.runID(w, r)
	if !ok {
		return
	}

	err := s.history.Delete(id)
	if history.IsNotFound(err) {
		s.writeError(r.Context(), w, http.StatusNotFound, err)
		return
	} else if err != nil {
		s.writeError(r.Context(), w, http.StatusInternalServerError, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// runID parses the {id} path value. It also answers 404 when history is
// disabled.
func (s *Server) runID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	if s.history == nil {
		s.writeError(r.Context(), w, http.StatusNotFound, errHistoryDisabled)
		return 0, false
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(r.Context(), w, http.StatusBadRequest, fmt.Errorf("run id must be a positive integer"))
		return 0, false
	}
	return id, true
}

func (s *Server) handleGlossary(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(r.Context(), w, http.StatusOK, glossary.Lookup(r.URL.Query().Get("q")))
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", K6: "unchecked"}

	if s.locator != nil {
		path, err := s.locator.Locate(r.Context())
		if err != nil {
			resp.K6 = err.Error()
		} else {
			resp.K6 = path
		}
	}

	s.writeJSON(r.Context(), w, http.StatusOK, resp)
}

var errHistoryDisabled = fmt.Errorf("run history is disabled")

func statusFor(err error) int {
	switch {
	case service.IsInvalidInput(err):
		return http.StatusBadRequest
	case service.IsTooManyRuns(err):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.LogCtx(ctx, "level", "error", "message", "request failed", "status", status, "stack", microerror.JSON(err))
	}
	s.writeJSON(ctx, w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.LogCtx(ctx, "level", "warning", "message", "failed to write response", "error", err.Error())
	}
}
