// Package handlers serves the agent's optional local status surface.
//
// Endpoints:
//   - /healthz, /livez and /readyz for health checkers
//   - /version for build information
//   - /metrics for Prometheus
//   - /api/jobs for in-flight pipelines and transcodes
//   - /api/history for the job ledger
package handlers
