package handlers

import (
	"context"

	"desktop-video-compress/internal/history"
	"desktop-video-compress/internal/watcher"
)

// Agent is the part of the orchestrator the status endpoints read.
type Agent interface {
	Status() watcher.Status
}

// HistoryReader is the read side of the history ledger.
type HistoryReader interface {
	Recent(ctx context.Context, filter history.Filter) ([]history.Record, error)
	Stats(ctx context.Context) (history.Stats, error)
}

// Handlers serves the local status surface.
type Handlers struct {
	agent   Agent
	history HistoryReader
}

// New creates Handlers. hist may be nil when history is disabled.
func New(agent Agent, hist HistoryReader) *Handlers {
	return &Handlers{agent: agent, history: hist}
}
