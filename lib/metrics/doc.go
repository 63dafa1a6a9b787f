// Package metrics holds the process-wide counters of the memento libraries,
// registered with VictoriaMetrics' default set. The CLI dumps them in
// Prometheus text format when started with --metrics.
package metrics
