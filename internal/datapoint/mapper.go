package datapoint

// Semantic value kinds found in miio capability metadata.
const (
	KindBoolean     = "boolean"
	KindPercentage  = "percentage"
	KindIlluminance = "illuminance"
	KindPower       = "power"
	KindEnergy      = "energy"
	KindColor       = "color"
	KindMixed       = "mixed"
)

// kindTable maps semantic value kinds to wire type descriptors.
var kindTable = map[string]TypeDescriptor{
	KindBoolean:     {Base: TypeBoolean},
	KindPercentage:  {Base: TypeNumber, Min: f64(0), Max: f64(100), Unit: "%"},
	KindIlluminance: {Base: TypeNumber, Unit: "Lx"},
	KindPower:       {Base: TypeNumber, Unit: "W"},
	KindEnergy:      {Base: TypeNumber, Unit: "Wh"},
	KindColor:       {Base: TypeRGB},
	KindMixed:       {Base: TypeString},
}

// MapKind resolves a semantic value kind to its wire type descriptor.
//
// Unknown kinds (including the empty kind) map to a plain String
// descriptor: MapKind is a total function and never fails.
func MapKind(kind string) TypeDescriptor {
	if td, ok := kindTable[kind]; ok {
		return td
	}
	return TypeDescriptor{Base: TypeString}
}

func f64(v float64) *float64 {
	return &v
}
