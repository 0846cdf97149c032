package bridge

import "errors"

var (
	// ErrUnknownControlTopic indicates a control message arrived on a
	// topic with no current binding.
	ErrUnknownControlTopic = errors.New("no binding for control topic")

	// ErrInvalidControlPayload indicates a control payload that is not
	// valid JSON.
	ErrInvalidControlPayload = errors.New("invalid control payload")

	// ErrDeviceUnavailable indicates a control command for a device that
	// is not currently connected.
	ErrDeviceUnavailable = errors.New("device not connected")
)
