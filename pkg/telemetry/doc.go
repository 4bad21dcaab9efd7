// Package telemetry counts rollout work per service and per track.
// Supported metrics includes:
// - started count(*_started_total)
// - outcome count by status(*_handled_total)
// - latency histogram(*_handling_seconds_bucket)
//
// Metrics are pushed to a Prometheus pushgateway when the run ends.
package telemetry
