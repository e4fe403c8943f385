package filesystem

// Observer records filesystem retry metrics. The implementation lives in the
// metrics package, which imports this one.
type Observer interface {
	// op is the retried operation: "stat" or "remove".
	ObserveRetryAttempt(op string)
	ObserveRetrySuccess(op string)
	ObserveRetryFailure(op string)
	ObserveRetryDuration(op string, durationSeconds float64)
	ObserveStaleError(op string)
}

// defaultObserver is the package-level observer set at startup.
// If nil, metric recording is silently skipped (safe for tests).
var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
// Call this once at startup after creating the observer implementation.
func SetObserver(o Observer) {
	defaultObserver = o
}

type nopObserver struct{}

func (nopObserver) ObserveRetryAttempt(string)           {}
func (nopObserver) ObserveRetrySuccess(string)           {}
func (nopObserver) ObserveRetryFailure(string)           {}
func (nopObserver) ObserveRetryDuration(string, float64) {}
func (nopObserver) ObserveStaleError(string)             {}

// observe is a nil-safe accessor for the package-level observer.
func observe() Observer {
	if defaultObserver == nil {
		return nopObserver{}
	}
	return defaultObserver
}
