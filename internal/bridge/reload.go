package bridge

import (
	"context"
	"fmt"

	"github.com/foraone/fora-contrib-app-miio/internal/datapoint"
	"github.com/foraone/fora-contrib-app-miio/internal/directory"
	"github.com/foraone/fora-contrib-app-miio/internal/miio"
)

// Reload performs a full resynchronisation against the directory:
// access tokens, device records, control topic bindings, and the
// discovery session. It is triggered at startup, on broker reconnect,
// and by the platform's reload notification.
//
// Reloads are serialised; a reload arriving while one is in flight
// waits its turn. Failures leave the previous state in place.
func (b *Bridge) Reload(ctx context.Context) {
	b.reloadMu.Lock()
	defer b.reloadMu.Unlock()

	select {
	case <-b.done:
		return
	default:
	}

	b.logger.Info("reloading application state")
	b.broker.Log("Fetching devices")

	if err := b.reloadTokens(ctx); err != nil {
		b.logger.Error("token reload failed", "error", err)
		return
	}
	if err := b.reloadRecords(ctx); err != nil {
		b.logger.Error("device record reload failed", "error", err)
		return
	}

	b.restartDiscovery()
}

// reloadTokens refreshes the access token table from the directory's app
// configuration, topped up with locally persisted tokens.
func (b *Bridge) reloadTokens(ctx context.Context) error {
	appCfg, err := b.dir.FetchAppConfig(ctx)
	if err != nil {
		return fmt.Errorf("fetch app config: %w", err)
	}

	loaded, skipped := b.tokens.Replace(appCfg.AccessTokens)
	for _, id := range skipped {
		b.logger.Warn("access token entry has malformed device id", "device_id", id)
	}

	if b.tokenStore != nil {
		persisted, err := b.tokenStore.LoadAll(ctx)
		if err != nil {
			b.logger.Warn("loading persisted tokens failed", "error", err)
		} else {
			b.tokens.Merge(persisted)
		}
		if err := b.tokenStore.SaveAll(ctx, b.tokens.Snapshot()); err != nil {
			b.logger.Warn("persisting tokens failed", "error", err)
		}
	}

	b.logger.Info("access tokens loaded", "count", b.tokens.Len(), "from_directory", loaded)
	return nil
}

// reloadRecords replaces the device record snapshot and reconciles the
// broker subscriptions against the rebuilt binding table.
func (b *Bridge) reloadRecords(ctx context.Context) error {
	records, err := b.dir.FetchDevices(ctx)
	if err != nil {
		return fmt.Errorf("fetch devices: %w", err)
	}

	b.records.Replace(records)
	added, removed := b.bindings.Rebuild(records, b.topics)

	for _, topic := range removed {
		if err := b.broker.Unsubscribe(topic); err != nil {
			b.logger.Warn("unsubscribe failed", "topic", topic, "error", err)
		}
	}
	for _, binding := range added {
		if err := b.broker.Subscribe(binding.Topic, b.qos, b.handleControlMessage); err != nil {
			b.logger.Warn("subscribe failed", "topic", binding.Topic, "error", err)
		}
	}

	b.logger.Info("device records loaded",
		"records", len(records),
		"bindings_added", len(added),
		"bindings_removed", len(removed))
	return nil
}

// restartDiscovery tears down the current discovery session and starts a
// fresh one.
func (b *Bridge) restartDiscovery() {
	b.stopDiscovery()

	browser, err := b.transport.Browse(b.ctx, miio.BrowseOptions{CacheTime: b.cacheTime})
	if err != nil {
		b.logger.Error("starting device discovery failed", "error", err)
		return
	}

	b.browserMu.Lock()
	b.browser = browser
	b.browserMu.Unlock()

	b.wg.Add(1)
	go b.discoveryLoop(browser)

	b.logger.Info("device discovery started", "cache_time_s", b.cacheTime)
}

// stopDiscovery stops the current discovery session, if any.
func (b *Bridge) stopDiscovery() {
	b.browserMu.Lock()
	defer b.browserMu.Unlock()
	if b.browser != nil {
		b.browser.Stop()
		b.browser = nil
	}
}

// discoveryLoop drains one discovery session until it is stopped.
func (b *Bridge) discoveryLoop(browser miio.Browser) {
	defer b.wg.Done()

	for {
		select {
		case reg, ok := <-browser.Registrations():
			if !ok {
				return
			}
			b.handleRegistration(reg)
		case <-b.done:
			return
		}
	}
}

// handleRegistration processes one discovery announcement. Devices whose
// token cannot be resolved are skipped with a diagnostic; everything else
// is opened and adopted.
func (b *Bridge) handleRegistration(reg miio.Registration) {
	if !b.tokens.Resolve(&reg) {
		b.logger.Debug("discovered device has no access token",
			"device_id", reg.ID, "address", reg.Address)
		b.broker.Log(fmt.Sprintf("No token available for device %d at %s", reg.ID, reg.Address))
		return
	}

	dev, err := b.transport.Open(b.ctx, reg)
	if err != nil {
		b.logger.Warn("opening device failed",
			"device_id", reg.ID, "address", reg.Address, "error", err)
		return
	}

	b.adoptDevice(dev)
}

// adoptDevice installs a device handle, introspects its capabilities,
// starts its event pump, reconciles it against the directory, and then
// adopts its children the same way.
//
// Discovery re-announces known devices; re-adoption replaces the previous
// handle so a device that changed address keeps a single live pump.
func (b *Bridge) adoptDevice(dev miio.Device) {
	descriptors := datapoint.Introspect(dev.Metadata())

	routes := make(map[string]string, len(descriptors))
	for _, d := range descriptors {
		if d.SourceEvent != "" {
			routes[d.SourceEvent] = d.Name
		}
	}

	b.devMu.Lock()
	if old, ok := b.devices[dev.ID()]; ok {
		// Closing the old handle ends its event stream and pump.
		if err := old.handle.Close(); err != nil {
			b.logger.Warn("closing replaced device handle", "device", dev.ID(), "error", err)
		}
	}
	b.devices[dev.ID()] = &liveDevice{handle: dev, routes: routes}
	b.devMu.Unlock()

	b.wg.Add(1)
	go b.pumpEvents(dev)

	b.logger.Info("device adopted",
		"device", dev.ID(), "model", dev.Model(), "datapoints", len(descriptors))

	b.reconcileDevice(dev, descriptors)

	for _, child := range dev.Children() {
		b.adoptDevice(child)
	}
}

// pumpEvents forwards one device's event stream onto the shared channel.
func (b *Bridge) pumpEvents(dev miio.Device) {
	defer b.wg.Done()

	for ev := range dev.Events() {
		select {
		case b.events <- ev:
		case <-b.done:
			return
		}
	}
}

// reconcileDevice checks the device against the directory snapshot and
// registers it when it is unknown. Registration happens at most once per
// device per snapshot: the pending record claims the slot before the
// request is sent, and only the next reload replaces it with the
// directory's confirmed copy.
func (b *Bridge) reconcileDevice(dev miio.Device, descriptors []datapoint.Descriptor) {
	if rec, ok := b.records.Get(dev.ID()); ok {
		if rec.IsRegistering {
			b.logger.Debug("ignoring announcement, registration in flight",
				"device", dev.ID())
		}
		return
	}

	name := dev.Model()
	if name == "" {
		name = "Unknown"
	}

	record := directory.DeviceRecord{
		AppID:  b.appID,
		Config: directory.AppSettings{},
		General: directory.General{
			Type: dev.ID(),
			Name: name,
		},
		Datapoints: directory.NewDatapoints(descriptors),
	}

	if !b.records.InsertPending(record) {
		// Another announcement won the race.
		return
	}

	b.logger.Info("registering new device", "device", dev.ID(), "name", name)
	b.broker.Log("Registering new device " + dev.ID())

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if _, err := b.dir.RegisterDevice(b.ctx, record); err != nil {
			b.logger.Error("device registration failed", "device", record.General.Type, "error", err)
			return
		}
		// The assigned datapoint ids arrive with the next reload; until
		// then the pending record keeps duplicates out.
		b.logger.Info("device registered", "device", record.General.Type)
	}()
}
