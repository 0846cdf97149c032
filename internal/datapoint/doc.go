// Package datapoint normalizes heterogeneous miio capability metadata into
// the Fora platform's generic datapoint schema.
//
// A miio device describes itself with three loosely related bags: settable
// actions ("setPower"), change events ("powerChanged"), and state fields
// ("power"). Introspect reduces these to a canonical, typed datapoint set;
// MapKind translates the device's semantic value kinds ("percentage",
// "illuminance", ...) into wire type descriptors with bounds and units.
//
// Both operations are pure: no I/O, no errors, deterministic output.
package datapoint
