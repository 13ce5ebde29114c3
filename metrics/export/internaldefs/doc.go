// Package internaldefs maps engine MetricIDs to the metric families both
// exporters publish. Related counters share one family and differ by a
// single label, so goidentity_confirmations_total{outcome="throttled"} and
// its OTel counterpart name the same series.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
