package mqtt

import "fmt"

// Topic prefixes per the Fora platform topic scheme.
//
// App topics are scoped under apps/{appId}; datapoint topics are global
// (the directory-assigned datapoint id is unique platform-wide).
const (
	// TopicPrefixApps is the base for app-scoped topics.
	TopicPrefixApps = "apps"

	// TopicPrefixDatapoints is the base for datapoint topics.
	TopicPrefixDatapoints = "dps"
)

// Topics builds Fora MQTT topic names for one app.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.NewTopics("miio-bridge-01")
//	topics.AppNotify()            // "apps/miio-bridge-01/notify"
//	topics.Datapoint("42")        // "dps/42"
//	topics.DatapointControl("42") // "dps/42/control"
type Topics struct {
	appID string
}

// NewTopics creates a topic builder for the given app id.
func NewTopics(appID string) Topics {
	return Topics{appID: appID}
}

// AppOnline returns the retained liveness topic for this app.
//
// Example: apps/miio-bridge-01/online
func (t Topics) AppOnline() string {
	return fmt.Sprintf("%s/%s/online", TopicPrefixApps, t.appID)
}

// AppLog returns the outbound diagnostics topic for this app.
//
// Example: apps/miio-bridge-01/log
func (t Topics) AppLog() string {
	return fmt.Sprintf("%s/%s/log", TopicPrefixApps, t.appID)
}

// AppCommand returns the inbound command topic for this app.
//
// Example: apps/miio-bridge-01/command
func (t Topics) AppCommand() string {
	return fmt.Sprintf("%s/%s/command", TopicPrefixApps, t.appID)
}

// AppNotify returns the inbound notification topic for this app.
// A "reloadApplication" payload on this topic triggers a full reload.
//
// Example: apps/miio-bridge-01/notify
func (t Topics) AppNotify() string {
	return fmt.Sprintf("%s/%s/notify", TopicPrefixApps, t.appID)
}

// Datapoint returns the outbound telemetry topic for a datapoint id.
// Values published here are retained.
//
// Example: dps/42
func (Topics) Datapoint(datapointID string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixDatapoints, datapointID)
}

// DatapointControl returns the inbound control topic for a datapoint id.
//
// Example: dps/42/control
func (Topics) DatapointControl(datapointID string) string {
	return fmt.Sprintf("%s/%s/control", TopicPrefixDatapoints, datapointID)
}
