package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/SsenogaHerman/IoT-SmartHome/internal/pipeline"
)

const defaultLimit = 50

// Server adapts the pipeline's operations to HTTP. All read endpoints
// degrade gracefully when no data or no model exists yet.
type Server struct {
	pipe *pipeline.Pipeline
	log  *slog.Logger
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) analytics(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, defaultLimit)
	sum, err := s.pipe.AnalyticsSummary(limit)
	if err != nil {
		s.log.Error("analytics failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) predict(w http.ResponseWriter, r *http.Request) {
	pred, err := s.pipe.PredictNextTemperature()
	if err != nil {
		s.log.Error("predict failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	// nil marshals to null: prediction unavailable, not an error
	writeJSON(w, http.StatusOK, map[string]*float64{"predicted_next_temperature": pred})
}

func (s *Server) anomalies(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, defaultLimit)
	rows, err := s.pipe.Anomalies(limit)
	if err != nil {
		s.log.Error("anomalies failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) runCycle(w http.ResponseWriter, r *http.Request) {
	res, err := s.pipe.RunCycle(r.Context())
	if err != nil {
		if errors.Is(err, pipeline.ErrCycleRunning) {
			writeError(w, http.StatusConflict, "a cycle is already running")
			return
		}
		s.log.Error("manual cycle failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	st, err := s.pipe.Status()
	if err != nil {
		s.log.Error("status failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func queryLimit(r *http.Request, def int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
