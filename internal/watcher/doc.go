// Package watcher runs the compression agent: it watches one directory,
// filters events, and drives each accepted file through settling,
// transcoding and disposal.
//
// # Lifecycle
//
// An Orchestrator starts in StateStarting. Preflight resolves the
// transcoder and checks that the directory is readable; on success Run
// enters StateWatching and processes events until its context ends. The
// agent then waits for every in-flight pipeline and moves to StateStopped.
//
// # Pipelines
//
// Each accepted path gets its own goroutine. The path stays in the
// registry from acceptance until the pipeline ends, so repeated events for
// a file being written or compressed are ignored. Transcodes are bounded by
// a workers.Slots semaphore. Settling and slot waits are abandoned on
// shutdown; a started transcode always finishes and its result is still
// notified, disposed and recorded.
package watcher
