// Package observability builds the zap logger and the Prometheus metrics
// the event capture service reports.
package observability
