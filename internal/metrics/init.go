package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics(filterReasons []string, states []string) {
	for _, kind := range []string{"created", "modified"} {
		WatcherEventsTotal.WithLabelValues(kind)
	}

	for _, reason := range filterReasons {
		FilterDecisionsTotal.WithLabelValues(reason)
	}

	for _, state := range states {
		AgentState.WithLabelValues(state)
	}

	for _, outcome := range []string{"settled", "vanished", "timeout", "cancelled", "error"} {
		SettleOutcomesTotal.WithLabelValues(outcome)
	}

	for _, status := range []string{"success", "failure", "skipped"} {
		TranscoderJobsTotal.WithLabelValues(status)
	}

	for _, status := range []string{"trashed", "permission_denied", "unsupported", "error"} {
		DisposalsTotal.WithLabelValues(status)
	}

	for _, status := range []string{"sent", "error", "skipped"} {
		NotificationsTotal.WithLabelValues(status)
	}

	for _, op := range []string{"record", "recent", "stats", "prune"} {
		HistoryQueriesTotal.WithLabelValues(op, "success")
		HistoryQueriesTotal.WithLabelValues(op, "error")
		HistoryQueryDuration.WithLabelValues(op)
	}

	for _, op := range []string{"stat", "remove"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetrySuccess.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
		FilesystemRetryDuration.WithLabelValues(op)
	}
}

// SetState marks state as the current lifecycle state among states.
func SetState(current string, states []string) {
	for _, state := range states {
		value := 0.0
		if state == current {
			value = 1
		}
		AgentState.WithLabelValues(state).Set(value)
	}
}
