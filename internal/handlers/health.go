package handlers

import (
	"net/http"
	"runtime"
	"time"

	"desktop-video-compress/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusStopped  = "stopped"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Ready    bool   `json:"ready"`
	State    string `json:"state"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	WatchDir string `json:"watchDir"`

	ActivePipelines int `json:"activePipelines"`
	ActiveJobs      int `json:"activeJobs"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports the agent's state. It returns 503 unless the agent is
// watching.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	status := h.agent.Status()

	response := HealthResponse{
		Ready:           status.Ready,
		State:           status.State,
		Version:         startup.Version,
		Uptime:          time.Since(status.StartedAt).Round(time.Second).String(),
		WatchDir:        status.WatchDir,
		ActivePipelines: len(status.Pipelines),
		ActiveJobs:      len(status.Jobs),
		GoVersion:       runtime.Version(),
		NumCPU:          runtime.NumCPU(),
		NumGoroutine:    runtime.NumGoroutine(),
	}

	switch {
	case status.Ready:
		response.Status = statusHealthy
	case status.Terminal:
		response.Status = statusStopped
	default:
		response.Status = statusStarting
	}

	w.Header().Set("Content-Type", "application/json")
	if status.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	writeJSON(w, response)
}

// LivenessCheck always returns 200 while the server is running.
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// HEAD gets headers only
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// ReadinessCheck returns 200 only while the agent is watching.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.agent.Status().Ready {
		writeJSONStatus(w, "ready", http.StatusOK)
		return
	}
	writeJSONStatus(w, "not_ready", http.StatusServiceUnavailable)
}
