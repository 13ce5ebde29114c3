// Package prometheus renders engine metrics in Prometheus text exposition
// format.
//
// Related counters are grouped into labeled families such as
// goidentity_confirmations_total{outcome="redeemed"}. The bearer latency
// histogram is goidentity_bearer_latency_seconds and dropped account events
// are goidentity_events_dropped_total.
//
// # What this package must NOT do
//
//   - Register metrics in a global registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
