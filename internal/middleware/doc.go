// Package middleware provides HTTP middleware for the metrics server.
//
// It includes:
//   - Debug-level request logging with control characters stripped
//   - Request count, latency and in-flight metrics with a bounded path label
package middleware
