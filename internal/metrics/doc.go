// Package metrics exports the outcome of the last run per mode as a
// Prometheus textfile, for collection by node_exporter's textfile collector.
package metrics
