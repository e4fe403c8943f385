package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"desktop-video-compress/internal/history"
	"desktop-video-compress/internal/logging"
	"desktop-video-compress/internal/transcoder"
	"desktop-video-compress/internal/watcher"
)

const maxHistoryLimit = 500

// JobsResponse lists what the agent is doing right now.
type JobsResponse struct {
	State     string             `json:"state"`
	Pipelines []watcher.Pipeline `json:"pipelines"`
	Jobs      []transcoder.Job   `json:"jobs"`
}

// HistoryResponse is one page of the history ledger plus totals.
type HistoryResponse struct {
	Records    []history.Record `json:"records"`
	Stats      history.Stats    `json:"stats"`
	BytesSaved int64            `json:"bytesSaved"`
}

// Jobs returns in-flight pipelines and running transcodes.
func (h *Handlers) Jobs(w http.ResponseWriter, _ *http.Request) {
	status := h.agent.Status()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, JobsResponse{
		State:     status.State,
		Pipelines: status.Pipelines,
		Jobs:      status.Jobs,
	})
}

// History returns recent jobs, newest first. Query parameters: status
// (success or failure) and limit.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSONError(w, "history is disabled", http.StatusNotFound)
		return
	}

	filter, err := parseHistoryFilter(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := h.history.Recent(r.Context(), filter)
	if err != nil {
		logging.Error("Failed to read history: %v", err)
		writeJSONError(w, "failed to read history", http.StatusInternalServerError)
		return
	}
	stats, err := h.history.Stats(r.Context())
	if err != nil {
		logging.Error("Failed to read history stats: %v", err)
		writeJSONError(w, "failed to read history", http.StatusInternalServerError)
		return
	}

	if records == nil {
		records = []history.Record{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, HistoryResponse{Records: records, Stats: stats, BytesSaved: stats.BytesSaved()})
}

func parseHistoryFilter(r *http.Request) (history.Filter, error) {
	q := r.URL.Query()
	filter := history.Filter{Status: q.Get("status")}

	switch filter.Status {
	case history.StatusAll, history.StatusSuccess, history.StatusFailure:
	default:
		return filter, fmt.Errorf("invalid status %q", filter.Status)
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return filter, fmt.Errorf("invalid limit %q", raw)
		}
		if limit > maxHistoryLimit {
			limit = maxHistoryLimit
		}
		filter.Limit = limit
	}
	return filter, nil
}
