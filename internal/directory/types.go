package directory

import (
	"github.com/foraone/fora-contrib-app-miio/internal/datapoint"
)

// DeviceRecord is the directory's representation of one device type and
// its datapoints. Records are fetched as a full snapshot on every reload;
// the directory assigns the opaque ids.
type DeviceRecord struct {
	ID         string      `json:"_id,omitempty"`
	AppID      string      `json:"appId"`
	Config     AppSettings `json:"config"`
	General    General     `json:"general"`
	Datapoints []Datapoint `json:"datapoints"`

	// IsRegistering marks a locally created record whose registration
	// request is still in flight. Never set by the directory.
	IsRegistering bool `json:"-"`
}

// General holds the identifying fields of a device record.
type General struct {
	// Type is the device transport's globally unique device identifier
	// (e.g. "miio:158d0001016c3c").
	Type string `json:"type"`

	// Name is the display name, the device model when known.
	Name string `json:"name"`
}

// AppSettings is the free-form per-device configuration blob.
// The bridge registers devices with an empty one.
type AppSettings map[string]any

// Datapoint is a device record datapoint with its directory-assigned id.
type Datapoint struct {
	ID     string          `json:"_id,omitempty"`
	Name   string          `json:"name"`
	Config DatapointConfig `json:"config"`
}

// DatapointConfig carries the capability flags and wire type of a datapoint.
type DatapointConfig struct {
	IsStatusable    bool     `json:"isStatusable"`
	IsControllable  bool     `json:"isControllable"`
	Type            string   `json:"type"`
	Min             *float64 `json:"min,omitempty"`
	Max             *float64 `json:"max,omitempty"`
	MeasurementUnit string   `json:"measurementUnit,omitempty"`
}

// NewDatapoint converts an introspected descriptor into the directory's
// wire shape.
func NewDatapoint(d datapoint.Descriptor) Datapoint {
	return Datapoint{
		Name: d.Name,
		Config: DatapointConfig{
			IsStatusable:    d.IsStatusable,
			IsControllable:  d.IsControllable,
			Type:            string(d.ValueType.Base),
			Min:             d.ValueType.Min,
			Max:             d.ValueType.Max,
			MeasurementUnit: d.ValueType.Unit,
		},
	}
}

// NewDatapoints converts a full introspection result.
func NewDatapoints(descriptors []datapoint.Descriptor) []Datapoint {
	dps := make([]Datapoint, 0, len(descriptors))
	for _, d := range descriptors {
		dps = append(dps, NewDatapoint(d))
	}
	return dps
}

// AppConfig is the app's remote configuration fetched from the directory.
type AppConfig struct {
	// AccessTokens gates which discovered devices may be opened.
	AccessTokens []TokenEntry `json:"AccessTokens"`
}

// TokenEntry pairs a numeric miio device id with its access secret.
type TokenEntry struct {
	DeviceID string `json:"deviceID"`
	Token    string `json:"token"`
}
