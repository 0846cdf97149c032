// Package tsdb provides optional datapoint telemetry history via InfluxDB.
//
// The broker only retains the latest value per datapoint topic; this
// package records every accepted numeric event so history survives for
// dashboards and analysis. Writes are batched and non-blocking, and the
// whole feature is disabled by default (influxdb.enabled: false).
//
// Telemetry history failing never affects bridge operation: write errors
// surface only through the SetOnError callback.
package tsdb
