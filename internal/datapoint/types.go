package datapoint

// BaseType is the generic wire type of a datapoint value.
type BaseType string

// Wire types understood by the Fora platform.
const (
	TypeBoolean BaseType = "Boolean"
	TypeNumber  BaseType = "Number"
	TypeString  BaseType = "String"
	TypeRGB     BaseType = "RGB"
)

// TypeDescriptor describes the wire type of a datapoint value, with
// optional bounds and measurement unit for numeric types.
type TypeDescriptor struct {
	Base BaseType `json:"type"`
	Min  *float64 `json:"min,omitempty"`
	Max  *float64 `json:"max,omitempty"`
	Unit string   `json:"measurementUnit,omitempty"`
}

// IsNumeric reports whether the descriptor carries Number-typed values.
func (t TypeDescriptor) IsNumeric() bool {
	return t.Base == TypeNumber
}

// ActionSpec describes one action from a device's capability metadata.
type ActionSpec struct {
	// ReturnKind is the semantic value kind of the action's return type
	// (e.g. "boolean", "percentage"). May be empty.
	ReturnKind string

	// Description is the device-supplied human description. May be empty.
	Description string
}

// EventSpec describes one change event from a device's capability metadata.
type EventSpec struct {
	// Kind is the semantic value kind of the emitted payload. May be empty.
	Kind string
}

// StateSpec describes one state field from a device's capability metadata.
type StateSpec struct {
	// Kind is the semantic value kind of the field. May be empty.
	Kind string
}

// RawMetadata is the capability metadata of one device, validated into
// typed descriptors at the transport boundary. The maps are read-only to
// this package.
type RawMetadata struct {
	Actions map[string]ActionSpec
	Events  map[string]EventSpec
	State   map[string]StateSpec
}

// Descriptor is one derived datapoint of a device.
// Immutable once built for a given introspection pass.
type Descriptor struct {
	// Name is the canonical datapoint name, unique within one device.
	Name string

	// IsStatusable is true when the device emits a change event for this
	// datapoint.
	IsStatusable bool

	// IsControllable is true when the device exposes a setter action for
	// this datapoint.
	IsControllable bool

	// ValueType is the resolved wire type.
	ValueType TypeDescriptor

	// SourceAction is the device action name backing writes (when controllable).
	SourceAction string

	// SourceEvent is the device event name backing updates (when statusable).
	SourceEvent string
}
