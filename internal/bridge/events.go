package bridge

import (
	"encoding/json"
	"strconv"

	"github.com/foraone/fora-contrib-app-miio/internal/datapoint"
	"github.com/foraone/fora-contrib-app-miio/internal/directory"
	"github.com/foraone/fora-contrib-app-miio/internal/miio"
)

// eventLoop is the single consumer of the shared device event stream.
// Running every event through one goroutine keeps per-device publish
// order intact without per-device locking.
func (b *Bridge) eventLoop() {
	defer b.wg.Done()

	for {
		select {
		case ev := <-b.events:
			b.handleDeviceEvent(ev)
		case <-b.done:
			return
		}
	}
}

// handleDeviceEvent turns one device change event into a retained
// datapoint publish, and records numeric values as telemetry.
//
// Events are dropped silently in the situations where no publish can be
// correct: an unknown device, an event with no datapoint mapping, a
// record still pending registration (no datapoint ids yet), or a value
// that fails the datapoint's type check.
func (b *Bridge) handleDeviceEvent(ev miio.Event) {
	dev, ok := b.device(ev.DeviceID)
	if !ok {
		return
	}

	name, ok := dev.routes[ev.Name]
	if !ok {
		b.logger.Debug("event has no datapoint mapping",
			"device", ev.DeviceID, "event", ev.Name)
		return
	}

	record, ok := b.records.Get(ev.DeviceID)
	if !ok || record.IsRegistering {
		b.logger.Debug("event for device without confirmed record",
			"device", ev.DeviceID, "event", ev.Name)
		return
	}

	dp, ok := findDatapoint(record, name)
	if !ok || dp.ID == "" {
		return
	}

	value, num, numeric, ok := normalizeEventValue(ev.Payload, dp.Config)
	if !ok {
		b.logger.Warn("dropping event with invalid value",
			"device", ev.DeviceID, "datapoint", name, "value", ev.Payload)
		return
	}

	topic := b.topics.Datapoint(dp.ID)
	if err := b.broker.Publish(topic, []byte(value), b.qos, true); err != nil {
		b.logger.Warn("datapoint publish failed",
			"topic", topic, "error", err)
		return
	}
	b.logger.Debug("datapoint published",
		"device", ev.DeviceID, "datapoint", name, "value", value)

	if b.telemetry != nil && numeric {
		b.telemetry.WriteDatapointValue(ev.DeviceID, name, num)
	}
}

// findDatapoint locates a record datapoint by canonical name.
func findDatapoint(record directory.DeviceRecord, name string) (directory.Datapoint, bool) {
	for _, dp := range record.Datapoints {
		if dp.Name == name {
			return dp, true
		}
	}
	return directory.Datapoint{}, false
}

// normalizeEventValue converts a raw event payload into the string wire
// form published on the datapoint topic.
//
// A map payload carrying a "value" key is unwrapped to that value; any
// other map is published as its JSON encoding. Values for Number
// datapoints must be numeric (numbers, or strings that parse as
// numbers); everything else for a Number datapoint is rejected.
//
// The returned float is the numeric reading when numeric is true, for
// telemetry.
func normalizeEventValue(payload any, cfg directory.DatapointConfig) (value string, num float64, numeric, ok bool) {
	if m, isMap := payload.(map[string]any); isMap {
		v, hasValue := m["value"]
		if !hasValue {
			encoded, err := json.Marshal(m)
			if err != nil {
				return "", 0, false, false
			}
			return string(encoded), 0, false, true
		}
		payload = v
	}

	num, numeric = asFloat(payload)

	if cfg.Type == string(datapoint.TypeNumber) && !numeric {
		return "", 0, false, false
	}

	value, ok = stringifyScalar(payload)
	if !ok {
		return "", 0, false, false
	}
	return value, num, numeric, true
}

// asFloat extracts a numeric reading from a scalar. Numeric strings
// count; booleans do not.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// stringifyScalar renders a scalar in the datapoint topic's wire form.
// Floats use the shortest decimal form, never exponent notation.
func stringifyScalar(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case bool:
		return strconv.FormatBool(s), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32), true
	case int:
		return strconv.Itoa(s), true
	case int32:
		return strconv.FormatInt(int64(s), 10), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case json.Number:
		return s.String(), true
	case nil:
		return "", false
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		return string(encoded), true
	}
}
