package lan

import (
	"testing"

	"github.com/foraone/fora-contrib-app-miio/internal/datapoint"
)

func TestProfileFor(t *testing.T) {
	tests := []struct {
		model     string
		wantProps bool
	}{
		{"chuangmi.plug.m1", true},
		{"zhimi.airpurifier.v6", true},
		{"yeelink.light.color1", true},
		{"some.unknown.device", false},
		{"", false},
	}
	for _, tt := range tests {
		p := profileFor(tt.model)
		if got := len(p.Properties) > 0; got != tt.wantProps {
			t.Errorf("profileFor(%q): properties = %v, want %v", tt.model, got, tt.wantProps)
		}
	}
}

func TestProfileMetadata(t *testing.T) {
	p := profileFor("chuangmi.plug.m1")
	meta := p.metadata()

	if _, ok := meta.Actions["setPower"]; !ok {
		t.Error("expected setPower action")
	}
	if _, ok := meta.Events["powerChanged"]; !ok {
		t.Error("expected powerChanged event")
	}
	if _, ok := meta.Events["temperatureChanged"]; !ok {
		t.Error("expected temperatureChanged event")
	}
	// Temperature is read-only on plugs.
	if _, ok := meta.Actions["setTemperature"]; ok {
		t.Error("unexpected setTemperature action")
	}
}

func TestProfileMetadataIntrospects(t *testing.T) {
	descriptors := datapoint.Introspect(profileFor("zhimi.airpurifier.v6").metadata())

	byName := make(map[string]datapoint.Descriptor)
	for _, d := range descriptors {
		byName[d.Name] = d
	}

	power, ok := byName["power"]
	if !ok {
		t.Fatal("expected power datapoint")
	}
	if !power.IsControllable || !power.IsStatusable {
		t.Errorf("power flags wrong: %+v", power)
	}
	if power.ValueType.Base != datapoint.TypeBoolean {
		t.Errorf("power type = %v", power.ValueType.Base)
	}

	humidity, ok := byName["humidity"]
	if !ok {
		t.Fatal("expected humidity datapoint")
	}
	if humidity.IsControllable {
		t.Error("humidity must not be controllable")
	}
}

func TestProfileSetter(t *testing.T) {
	p := profileFor("chuangmi.plug.m1")

	spec, ok := p.setter("setPower")
	if !ok {
		t.Fatal("expected setter for setPower")
	}
	if spec.Set != "set_power" || !spec.OnOff {
		t.Errorf("wrong spec: %+v", spec)
	}

	if _, ok := p.setter("setTemperature"); ok {
		t.Error("temperature has no setter")
	}
}

func TestConvertValue(t *testing.T) {
	onOff := propertySpec{OnOff: true}
	if convertValue(onOff, "on") != true {
		t.Error(`"on" should convert to true`)
	}
	if convertValue(onOff, "off") != false {
		t.Error(`"off" should convert to false`)
	}

	scaled := propertySpec{Scale: 0.1}
	if got := convertValue(scaled, 215.0); got != 21.5 {
		t.Errorf("scaled value = %v, want 21.5", got)
	}

	plain := propertySpec{}
	if got := convertValue(plain, 42.0); got != 42.0 {
		t.Errorf("plain value = %v", got)
	}
}
