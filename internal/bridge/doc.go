// Package bridge connects the local miio device transport to the Fora
// platform.
//
// The bridge keeps three pieces of owned state: the device record store
// (the directory's snapshot plus locally pending registrations), the
// binding table (control topic → device action), and the set of live
// device handles with their event routes. State flows in two
// directions:
//
//   - Outbound: device change events are normalised and published as
//     retained messages on the datapoint topics, with numeric readings
//     mirrored into telemetry.
//   - Inbound: datapoint control messages are routed through the binding
//     table to the owning device's setter action.
//
// Discovery runs continuously; unknown devices with a resolvable access
// token are registered with the directory at most once per snapshot. A
// full reload — triggered at startup, on broker reconnect, or by the
// platform's reload notification — refreshes tokens, records, bindings,
// and the discovery session.
package bridge
