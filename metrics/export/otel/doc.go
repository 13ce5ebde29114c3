// Package otel binds engine metrics to OpenTelemetry observable instruments.
//
// Each counter family becomes one Int64ObservableCounter whose samples are
// told apart by a single attribute (result, outcome, change, ...). The bearer
// latency histogram is published as a bucket gauge keyed by le plus a count
// gauge. One callback reads [goIdentity.Engine.MetricsSnapshot] per
// collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
