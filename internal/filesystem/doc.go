/*
Package filesystem provides resilient filesystem operations with automatic retry logic
for NFS stale file handle errors, plus errno classification shared by the disposal code.

# Purpose

The watched directory may live on a network mount (a synced Desktop or an SMB/NFS
share). Settlement polling stats the same file every second for minutes at a time, so a
transient ESTALE must not be mistaken for "the file vanished". StatWithRetry and
RemoveWithRetry retry only on ESTALE, with exponential backoff; every other error is
returned immediately.

# Usage

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
	    return err
	}

# Retry Behavior

Defaults:
  - MaxRetries: 3 attempts
  - InitialBackoff: 50ms
  - MaxBackoff: 500ms

# Error Classification

IsStale, IsCrossDevice and IsPermission wrap golang.org/x/sys/unix errno checks on
unix platforms and degrade to os.ErrPermission checks elsewhere.

# Metrics

Retry metrics are reported through the Observer set with SetObserver. The metrics package
provides the Prometheus-backed implementation.
*/
package filesystem
