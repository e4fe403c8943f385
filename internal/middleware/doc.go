// Package middleware provides HTTP middleware for the local status server.
//
// It includes:
//   - Request logging through the application logger, with health checks
//     and metrics scrapes skipped by default
//   - Prometheus request metrics labelled by route template
package middleware
