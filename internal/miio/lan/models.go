package lan

import (
	"strings"

	"github.com/foraone/fora-contrib-app-miio/internal/datapoint"
)

// propertySpec describes one device property a profile exposes.
type propertySpec struct {
	// Name is the canonical datapoint name.
	Name string

	// Prop is the device property name used in get_prop calls.
	Prop string

	// Kind is the semantic value kind fed into capability metadata.
	Kind string

	// Set, when non-empty, is the device method implementing the setter.
	Set string

	// OnOff marks boolean properties the firmware represents as the
	// strings "on"/"off".
	OnOff bool

	// Scale, when non-zero, multiplies raw numeric readings (e.g. 0.1
	// for properties reported in tenths).
	Scale float64
}

// profile maps a family of device models onto properties and setters.
type profile struct {
	// Match lists model prefixes this profile covers.
	Match []string

	Properties []propertySpec
}

// profiles is the built-in capability registry, most specific first.
// Models without a profile are adopted with empty metadata and expose no
// datapoints.
var profiles = []profile{
	{
		Match: []string{"zhimi.airpurifier"},
		Properties: []propertySpec{
			{Name: "power", Prop: "power", Kind: "boolean", Set: "set_power", OnOff: true},
			{Name: "mode", Prop: "mode", Kind: "mixed", Set: "set_mode"},
			{Name: "aqi", Prop: "aqi", Kind: "pm2.5"},
			{Name: "humidity", Prop: "humidity", Kind: "percentage"},
			{Name: "temperature", Prop: "temp_dec", Kind: "temperature", Scale: 0.1},
		},
	},
	{
		Match: []string{"zhimi.humidifier"},
		Properties: []propertySpec{
			{Name: "power", Prop: "power", Kind: "boolean", Set: "set_power", OnOff: true},
			{Name: "mode", Prop: "mode", Kind: "mixed", Set: "set_mode"},
			{Name: "humidity", Prop: "humidity", Kind: "percentage"},
			{Name: "temperature", Prop: "temp_dec", Kind: "temperature", Scale: 0.1},
		},
	},
	{
		Match: []string{"chuangmi.plug", "zimi.powerstrip", "qmi.powerstrip"},
		Properties: []propertySpec{
			{Name: "power", Prop: "power", Kind: "boolean", Set: "set_power", OnOff: true},
			{Name: "temperature", Prop: "temperature", Kind: "temperature"},
		},
	},
	{
		Match: []string{"philips.light", "yeelink.light"},
		Properties: []propertySpec{
			{Name: "power", Prop: "power", Kind: "boolean", Set: "set_power", OnOff: true},
			{Name: "brightness", Prop: "bright", Kind: "percentage", Set: "set_bright"},
		},
	},
	{
		Match: []string{"rockrobo.vacuum", "roborock.vacuum"},
		Properties: []propertySpec{
			{Name: "battery", Prop: "battery", Kind: "percentage"},
		},
	},
}

// profileFor selects the capability profile for a model string.
// Unknown models get an empty profile.
func profileFor(model string) profile {
	for _, p := range profiles {
		for _, prefix := range p.Match {
			if strings.HasPrefix(model, prefix) {
				return p
			}
		}
	}
	return profile{}
}

// metadata derives capability metadata from the profile: every property
// emits a change event, and properties with a setter expose an action.
func (p profile) metadata() datapoint.RawMetadata {
	meta := datapoint.RawMetadata{
		Actions: make(map[string]datapoint.ActionSpec),
		Events:  make(map[string]datapoint.EventSpec),
		State:   make(map[string]datapoint.StateSpec),
	}
	for _, prop := range p.Properties {
		meta.Events[prop.Name+"Changed"] = datapoint.EventSpec{Kind: prop.Kind}
		if prop.Set != "" {
			meta.Actions[datapoint.SetterAction(prop.Name)] = datapoint.ActionSpec{ReturnKind: prop.Kind}
		}
	}
	return meta
}

// propertyNames returns the device property names to poll.
func (p profile) propertyNames() []string {
	names := make([]string, 0, len(p.Properties))
	for _, prop := range p.Properties {
		names = append(names, prop.Prop)
	}
	return names
}

// setter resolves the property spec backing an action name.
func (p profile) setter(action string) (propertySpec, bool) {
	for _, prop := range p.Properties {
		if prop.Set != "" && datapoint.SetterAction(prop.Name) == action {
			return prop, true
		}
	}
	return propertySpec{}, false
}
