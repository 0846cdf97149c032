// Package mqtt provides Fora broker connectivity for the miio bridge.
//
// This package manages:
//   - Connection to the Fora broker with the app identity ("app:{appId}")
//   - Last Will and Testament on apps/{appId}/online for offline detection
//   - Message publishing (datapoint values are retained)
//   - Topic subscriptions with automatic restoration on reconnect
//   - Connection lifecycle callbacks (connect, disconnect, reconnecting)
//
// # Topic Scheme
//
//	apps/{appId}/online    retained liveness marker ("true"/"false")
//	apps/{appId}/log       outbound diagnostics
//	apps/{appId}/command   inbound commands (reserved)
//	apps/{appId}/notify    inbound notifications ("reloadApplication")
//	dps/{datapointId}          outbound telemetry, retained
//	dps/{datapointId}/control  inbound control messages
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.App)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.SetOnConnect(func() { /* subscribe + reload */ })
//	client.PublishRetained(client.Topics().Datapoint("42"), []byte("37"))
package mqtt
