package miio

import (
	"context"

	"github.com/foraone/fora-contrib-app-miio/internal/datapoint"
)

// Registration is one discovery announcement from the LAN.
// Discovery transports periodically re-announce already-known devices, so
// the same registration may be seen many times.
type Registration struct {
	// ID is the device's numeric id, the key of the access token table.
	ID int64

	// Address is the device's IP address.
	Address string

	// Token is the device's access secret, when the device reveals it.
	// Most devices hide it; the token table fills the gap.
	Token string
}

// HasToken reports whether the registration carries a usable secret.
func (r Registration) HasToken() bool {
	return r.Token != ""
}

// Event is one live change event emitted by an opened device.
// Events for the same device preserve emission order.
type Event struct {
	// DeviceID is the emitting device's transport identifier
	// (e.g. "miio:158d0001016c3c"), which doubles as the directory's
	// device type id.
	DeviceID string

	// Name is the event name from the device's capability metadata
	// (e.g. "powerChanged").
	Name string

	// Payload is the raw event value: a scalar, or a structured map.
	Payload any
}

// BrowseOptions configures a discovery session.
type BrowseOptions struct {
	// CacheTime is how long discovery results stay fresh, in seconds.
	CacheTime int
}

// Browser is one running discovery session.
// A stopped browser simply stops announcing; there is no error path.
type Browser interface {
	// Registrations streams discovery announcements.
	// The channel is closed when the browser is stopped.
	Registrations() <-chan Registration

	// Stop tears down the discovery session.
	Stop()
}

// Device is an opened device handle.
type Device interface {
	// ID returns the device's transport identifier ("miio:...").
	ID() string

	// Model returns the device model string, or "" when unknown.
	Model() string

	// Metadata returns the device's capability metadata, validated into
	// typed descriptors. Read-only to callers.
	Metadata() datapoint.RawMetadata

	// Children returns nested sub-devices (e.g. gateway children).
	// Each child is a full device handle and is processed identically.
	Children() []Device

	// Events streams the device's live change events in emission order.
	// The channel is closed when the handle is closed.
	Events() <-chan Event

	// Call invokes a named action with a single argument.
	Call(ctx context.Context, action string, arg any) error

	// Close releases the handle and closes the event stream.
	Close() error
}

// Transport is the local device transport: discovery plus handle
// construction. The concrete miio protocol implementation satisfies this;
// the bridge depends only on the interface.
type Transport interface {
	// Browse starts a discovery session.
	Browse(ctx context.Context, opts BrowseOptions) (Browser, error)

	// Open constructs a live handle for a discovered device.
	// The registration must carry a token.
	Open(ctx context.Context, reg Registration) (Device, error)
}
