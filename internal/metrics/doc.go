// Package metrics provides run diagnostics: per-run summary metrics observed
// once per snapshot, and a Prometheus recorder of solver and budget counters.
package metrics
