package api

import (
	"log/slog"

	"github.com/gorilla/mux"

	"github.com/SsenogaHerman/IoT-SmartHome/internal/pipeline"
)

// NewRouter wires the HTTP surface over the pipeline.
func NewRouter(p *pipeline.Pipeline, log *slog.Logger) *mux.Router {
	s := &Server{pipe: p, log: log.With(slog.String("component", "api"))}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods("GET")
	r.HandleFunc("/analytics", s.analytics).Methods("GET")
	r.HandleFunc("/predict", s.predict).Methods("GET")
	r.HandleFunc("/anomalies", s.anomalies).Methods("GET")
	r.HandleFunc("/cycle", s.runCycle).Methods("POST")
	r.HandleFunc("/status", s.status).Methods("GET")
	return r
}
