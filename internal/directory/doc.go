// Package directory provides the Fora device directory HTTP client.
//
// The directory is the remote system of record for device registrations:
// it stores one DeviceRecord per device type, assigns opaque ids to records
// and datapoints, and serves the per-app configuration (device access
// tokens).
//
// The client deliberately has no retry or backoff: directory failures are
// logged by callers and recovered on the next full reload, matching the
// bridge's "no data this cycle" error policy.
package directory
