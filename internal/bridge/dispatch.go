package bridge

import (
	"encoding/json"
	"fmt"
	"strings"
)

// handleControlMessage routes one datapoint control message to the
// owning device's setter action. The payload is the JSON-encoded value
// to set.
func (b *Bridge) handleControlMessage(topic string, payload []byte) error {
	binding, ok := b.bindings.Lookup(topic)
	if !ok {
		// Subscription outlived its binding; the next reload cleans up.
		b.logger.Debug("control message on unbound topic", "topic", topic)
		return ErrUnknownControlTopic
	}

	var value any
	if err := json.Unmarshal(payload, &value); err != nil {
		b.logger.Warn("control payload is not valid JSON",
			"topic", topic, "payload", string(payload))
		return fmt.Errorf("%w: %v", ErrInvalidControlPayload, err)
	}

	dev, ok := b.device(binding.DeviceTypeID)
	if !ok {
		b.logger.Warn("control message for device that is not connected",
			"device", binding.DeviceTypeID, "action", binding.Action)
		return ErrDeviceUnavailable
	}

	b.logger.Debug("dispatching control command",
		"device", binding.DeviceTypeID, "action", binding.Action, "value", value)

	if err := dev.handle.Call(b.ctx, binding.Action, value); err != nil {
		b.logger.Error("device action failed",
			"device", binding.DeviceTypeID, "action", binding.Action, "error", err)
		return fmt.Errorf("call %s on %s: %w", binding.Action, binding.DeviceTypeID, err)
	}
	return nil
}

// handleNotifyMessage reacts to platform notifications. The only
// recognised notification asks the app to reload its state; anything
// else is logged and ignored.
func (b *Bridge) handleNotifyMessage(topic string, payload []byte) error {
	command := strings.TrimSpace(string(payload))
	var quoted string
	if err := json.Unmarshal(payload, &quoted); err == nil {
		command = quoted
	}

	if command != reloadCommand {
		b.logger.Debug("ignoring unknown notification", "command", command)
		return nil
	}

	b.logger.Info("reload requested by platform")
	go b.Reload(b.ctx)
	return nil
}

// handleCommandMessage logs platform console commands. The bridge
// defines no commands of its own; the subscription exists so the
// platform sees the topic as served.
func (b *Bridge) handleCommandMessage(topic string, payload []byte) error {
	b.logger.Debug("received platform command", "payload", string(payload))
	return nil
}
