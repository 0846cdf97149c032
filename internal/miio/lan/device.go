package lan

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"reflect"
	"strconv"
	"sync"
	"time"

	"github.com/foraone/fora-contrib-app-miio/internal/datapoint"
	"github.com/foraone/fora-contrib-app-miio/internal/miio"
)

// deviceIDPrefix namespaces transport identifiers ("miio:12345678").
const deviceIDPrefix = "miio:"

// rpcResponse is the device side of one JSON-RPC exchange.
type rpcResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// rpcError is a device-reported call failure.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("device error %d: %s", e.Code, e.Message)
}

// device is an opened LAN device handle.
//
// Change events are derived by polling the profile's properties and
// diffing against the last seen values; the first poll seeds the retained
// state downstream.
type device struct {
	id      string
	model   string
	prof    profile
	conn    *net.UDPConn
	cipher  *tokenCipher
	devID   uint32
	stamp   uint32
	stampAt time.Time

	// exchangeMu serialises request/response exchanges on the socket.
	exchangeMu sync.Mutex
	requestID  int64

	events       chan miio.Event
	state        map[string]any
	pollInterval time.Duration
	callTimeout  time.Duration

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	logger    Logger
}

// openDevice dials a discovered device, handshakes, reads its model, and
// starts the property poller.
func openDevice(ctx context.Context, reg miio.Registration, pollInterval, callTimeout time.Duration, logger Logger) (miio.Device, error) {
	if !reg.HasToken() {
		return nil, fmt.Errorf("registration for device %d has no token", reg.ID)
	}

	c, err := newTokenCipher(reg.Token)
	if err != nil {
		return nil, fmt.Errorf("device %d: %w", reg.ID, err)
	}

	// Discovery reports bare IPs; an explicit port overrides the default.
	host := reg.Address
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, strconv.Itoa(Port))
	}
	addr, err := net.ResolveUDPAddr("udp4", host)
	if err != nil {
		return nil, fmt.Errorf("resolving device address: %w", err)
	}
	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dialing device: %w", err)
	}

	d := &device{
		conn:         conn,
		cipher:       c,
		events:       make(chan miio.Event, 16),
		state:        make(map[string]any),
		pollInterval: pollInterval,
		callTimeout:  callTimeout,
		done:         make(chan struct{}),
		logger:       logger,
	}

	if err := d.handshake(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake with device %d: %w", reg.ID, err)
	}
	d.id = deviceIDPrefix + strconv.FormatUint(uint64(d.devID), 10)

	// miIO.info is best effort: without a model the device is adopted
	// with empty capability metadata.
	var info struct {
		Model string `json:"model"`
	}
	if err := d.rpc(ctx, "miIO.info", []any{}, &info); err != nil {
		d.logger.Warn("reading device info failed", "device", d.id, "error", err)
	}
	d.model = info.Model
	d.prof = profileFor(d.model)

	d.wg.Add(1)
	go d.pollLoop()

	return d, nil
}

func (d *device) ID() string                      { return d.id }
func (d *device) Model() string                   { return d.model }
func (d *device) Metadata() datapoint.RawMetadata { return d.prof.metadata() }
func (d *device) Events() <-chan miio.Event       { return d.events }

// Children returns no sub-devices: the LAN transport only sees devices
// that answer discovery directly.
func (d *device) Children() []miio.Device { return nil }

// Call invokes a setter action on the device.
func (d *device) Call(ctx context.Context, action string, arg any) error {
	spec, ok := d.prof.setter(action)
	if !ok {
		return fmt.Errorf("device %s has no action %s", d.id, action)
	}

	value := arg
	if spec.OnOff {
		switch v := arg.(type) {
		case bool:
			if v {
				value = "on"
			} else {
				value = "off"
			}
		case string:
			value = v
		default:
			return fmt.Errorf("action %s expects a boolean, got %T", action, arg)
		}
	}

	var result []any
	if err := d.rpc(ctx, spec.Set, []any{value}, &result); err != nil {
		return err
	}
	return nil
}

// Close releases the handle and closes the event stream.
func (d *device) Close() error {
	d.closeOnce.Do(func() {
		close(d.done)
		d.conn.Close()
		d.wg.Wait()
		close(d.events)
	})
	return nil
}

// handshake sends the hello frame and records the device id and uptime
// stamp needed to frame data packets.
func (d *device) handshake(ctx context.Context) error {
	d.exchangeMu.Lock()
	defer d.exchangeMu.Unlock()

	if err := d.conn.SetDeadline(d.deadline(ctx)); err != nil {
		return err
	}
	if _, err := d.conn.Write(helloPacket()); err != nil {
		return err
	}

	buf := make([]byte, 1500)
	n, err := d.conn.Read(buf)
	if err != nil {
		return err
	}
	p, err := decodePacket(buf[:n])
	if err != nil {
		return err
	}

	d.devID = p.DeviceID
	d.stamp = p.Stamp
	d.stampAt = time.Now()
	return nil
}

// rpc performs one JSON-RPC exchange with the device.
func (d *device) rpc(ctx context.Context, method string, params, out any) error {
	d.exchangeMu.Lock()
	defer d.exchangeMu.Unlock()

	d.requestID++
	id := d.requestID

	body, err := json.Marshal(map[string]any{
		"id":     id,
		"method": method,
		"params": params,
	})
	if err != nil {
		return err
	}
	payload, err := d.cipher.encrypt(body)
	if err != nil {
		return err
	}

	// The stamp advances with the device's uptime clock.
	stamp := d.stamp + uint32(time.Since(d.stampAt)/time.Second) + 1
	frame := encodePacket(d.devID, stamp, d.cipher.token, payload)

	if err := d.conn.SetDeadline(d.deadline(ctx)); err != nil {
		return err
	}
	if _, err := d.conn.Write(frame); err != nil {
		return fmt.Errorf("sending %s: %w", method, err)
	}

	buf := make([]byte, 4096)
	for {
		n, err := d.conn.Read(buf)
		if err != nil {
			return fmt.Errorf("waiting for %s response: %w", method, err)
		}
		p, err := decodePacket(buf[:n])
		if err != nil || len(p.Payload) == 0 {
			continue
		}
		if !p.verifyChecksum(d.cipher.token) {
			d.logger.Debug("discarding packet with bad checksum", "device", d.id)
			continue
		}

		plain, err := d.cipher.decrypt(p.Payload)
		if err != nil {
			return fmt.Errorf("decrypting %s response: %w", method, err)
		}

		var resp rpcResponse
		if err := json.Unmarshal(plain, &resp); err != nil {
			return fmt.Errorf("parsing %s response: %w", method, err)
		}
		if resp.ID != id {
			// Stale answer to an earlier timed-out call.
			continue
		}
		if resp.Error != nil {
			return resp.Error
		}
		if out != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return fmt.Errorf("decoding %s result: %w", method, err)
			}
		}
		return nil
	}
}

// deadline resolves the effective exchange deadline from the context and
// the configured call timeout.
func (d *device) deadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(d.callTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		return ctxDeadline
	}
	return deadline
}

// pollLoop polls the profile's properties and emits change events.
func (d *device) pollLoop() {
	defer d.wg.Done()

	props := d.prof.propertyNames()
	if len(props) == 0 {
		return
	}

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		d.poll(props)

		select {
		case <-ticker.C:
		case <-d.done:
			return
		}
	}
}

// poll reads all properties in one call and emits events for changes.
func (d *device) poll(props []string) {
	ctx, cancel := context.WithTimeout(context.Background(), d.callTimeout)
	defer cancel()

	params := make([]any, len(props))
	for i, p := range props {
		params[i] = p
	}

	var values []any
	if err := d.rpc(ctx, "get_prop", params, &values); err != nil {
		d.logger.Debug("property poll failed", "device", d.id, "error", err)
		return
	}
	if len(values) != len(props) {
		d.logger.Debug("property poll returned wrong arity",
			"device", d.id, "want", len(props), "got", len(values))
		return
	}

	for i, spec := range d.prof.Properties {
		value := convertValue(spec, values[i])
		if prev, seen := d.state[spec.Name]; seen && valuesEqual(prev, value) {
			continue
		}
		d.state[spec.Name] = value

		select {
		case d.events <- miio.Event{DeviceID: d.id, Name: spec.Name + "Changed", Payload: value}:
		case <-d.done:
			return
		}
	}
}

// valuesEqual compares two polled values. Properties normally decode to
// JSON scalars, but a device may answer with an array or object, which
// the == operator cannot compare without panicking.
func valuesEqual(a, b any) bool {
	switch a.(type) {
	case nil, bool, string, float64:
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// convertValue maps a raw property value onto the canonical form.
func convertValue(spec propertySpec, raw any) any {
	if spec.OnOff {
		if s, ok := raw.(string); ok {
			return s == "on"
		}
	}
	if spec.Scale != 0 {
		if f, ok := raw.(float64); ok {
			return f * spec.Scale
		}
	}
	return raw
}
