// Package miio defines the local device transport boundary.
//
// The bridge never speaks the miio wire protocol itself: it depends on the
// Transport, Browser, and Device interfaces defined here, and the concrete
// protocol implementation is injected at startup. Capability metadata
// crosses this boundary already validated into datapoint.RawMetadata, so
// the rest of the system works on typed structures instead of probing
// dynamic shapes.
//
// The package also owns access token handling: TokenTable is the
// in-memory directory-supplied table that gates which discovered devices
// may be opened, and TokenStore persists those tokens in SQLite across
// directory outages.
package miio
