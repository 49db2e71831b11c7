// Package metrics provides Prometheus metrics for a recorder.
//
// Each recorder owns its own registry so several recorders (and tests) can
// coexist in one process without duplicate-registration panics.
//
// Exposed metrics:
//
//   - wiretap_requests_captured_total: requests captured (labels: method)
//   - wiretap_requests_completed_total: completions applied (labels: category)
//   - wiretap_request_duration_seconds: duration of captured requests
//   - wiretap_bodies_truncated_total: bodies cut at the size cap (labels: direction)
//   - wiretap_store_records: records currently held
//   - wiretap_store_ops_dropped_total: mutations dropped on a full queue (labels: op)
//   - wiretap_persist_total: snapshot saves (labels: result)
//   - wiretap_persist_duration_seconds: time spent saving snapshots
//   - wiretap_correlation_misses_total: completions with no matching record
//
// All methods are safe to call on a nil *Metrics.
//
//	m := metrics.New()
//	http.Handle("/metrics", m.Handler())
package metrics
