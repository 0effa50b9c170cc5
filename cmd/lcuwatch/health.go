package main

import (
	"encoding/json"
	"net/http"

	"github.com/rickgao/lcuwatch/internal/connection"
	"github.com/rickgao/lcuwatch/internal/version"
)

// sessionStatus is the part of the Supervisor the health endpoint reports.
type sessionStatus interface {
	Running() bool
	IsConnected() bool
	LoopState() string
	Phase() connection.Phase
}

type healthResponse struct {
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
	LoopState string `json:"loop_state"`
	Phase     string `json:"phase"`
	Version   string `json:"version"`
}

// newHealthHandler serves /health and the metrics endpoint at metricsPath.
func newHealthHandler(session sessionStatus, metrics interface{ Handler() http.Handler }, metricsPath string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		health := healthResponse{
			Status:    "idle",
			Connected: session.IsConnected(),
			LoopState: session.LoopState(),
			Phase:     string(session.Phase()),
			Version:   version.Version,
		}

		switch {
		case health.Connected:
			health.Status = "healthy"
		case session.Running():
			health.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health)
	})

	mux.Handle(metricsPath, metrics.Handler())

	return mux
}
