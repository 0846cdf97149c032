package lan

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/foraone/fora-contrib-app-miio/internal/miio"
)

// fakeDevice simulates a miio device on a loopback UDP socket.
type fakeDevice struct {
	conn   *net.UDPConn
	cipher *tokenCipher
	model  string

	mu    sync.Mutex
	power string
	calls []string

	// propResult overrides the get_prop answer when non-nil.
	propResult []any

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newFakeDevice(t *testing.T, model string) *fakeDevice {
	t.Helper()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("listening: %v", err)
	}
	c, err := newTokenCipher(testToken)
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}

	f := &fakeDevice{
		conn:   conn,
		cipher: c,
		model:  model,
		power:  "on",
		done:   make(chan struct{}),
	}
	f.wg.Add(1)
	go f.serve()
	t.Cleanup(f.stop)
	return f
}

func (f *fakeDevice) addr() *net.UDPAddr {
	return f.conn.LocalAddr().(*net.UDPAddr)
}

func (f *fakeDevice) stop() {
	f.stopOnce.Do(func() {
		close(f.done)
		f.conn.Close()
		f.wg.Wait()
	})
}

func (f *fakeDevice) recordedCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeDevice) serve() {
	defer f.wg.Done()

	buf := make([]byte, 4096)
	for {
		n, addr, err := f.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		p, err := decodePacket(buf[:n])
		if err != nil {
			continue
		}

		if len(p.Payload) == 0 {
			// Handshake: answer with id and stamp, token hidden.
			resp := make([]byte, headerLength)
			binary.BigEndian.PutUint16(resp[0:2], packetMagic)
			binary.BigEndian.PutUint16(resp[2:4], headerLength)
			binary.BigEndian.PutUint32(resp[8:12], 99)
			binary.BigEndian.PutUint32(resp[12:16], 1000)
			for i := 16; i < 32; i++ {
				resp[i] = 0xff
			}
			f.conn.WriteToUDP(resp, addr)
			continue
		}

		plain, err := f.cipher.decrypt(p.Payload)
		if err != nil {
			continue
		}
		var req struct {
			ID     int64  `json:"id"`
			Method string `json:"method"`
			Params []any  `json:"params"`
		}
		if err := json.Unmarshal(plain, &req); err != nil {
			continue
		}

		var result any
		switch req.Method {
		case "miIO.info":
			result = map[string]any{"model": f.model}
		case "get_prop":
			f.mu.Lock()
			if f.propResult != nil {
				result = f.propResult
			} else {
				result = []any{f.power, 325}
			}
			f.mu.Unlock()
		case "set_power":
			f.mu.Lock()
			f.power = req.Params[0].(string)
			f.calls = append(f.calls, "set_power:"+f.power)
			f.mu.Unlock()
			result = []any{"ok"}
		default:
			continue
		}

		body, _ := json.Marshal(map[string]any{"id": req.ID, "result": result})
		payload, _ := f.cipher.encrypt(body)
		f.conn.WriteToUDP(encodePacket(99, p.Stamp, f.cipher.token, payload), addr)
	}
}

func openTestDevice(t *testing.T, f *fakeDevice) miio.Device {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dev, err := openDevice(ctx, miio.Registration{
		ID:      99,
		Address: "127.0.0.1:" + strconv.Itoa(f.addr().Port),
		Token:   testToken,
	}, 50*time.Millisecond, 2*time.Second, noopLogger{})
	if err != nil {
		t.Fatalf("openDevice failed: %v", err)
	}
	t.Cleanup(func() { dev.Close() })
	return dev
}

func TestOpenDeviceHandshake(t *testing.T) {
	f := newFakeDevice(t, "chuangmi.plug.m1")
	dev := openTestDevice(t, f)

	if dev.ID() != "miio:99" {
		t.Errorf("id = %q", dev.ID())
	}
	if dev.Model() != "chuangmi.plug.m1" {
		t.Errorf("model = %q", dev.Model())
	}
	if len(dev.Metadata().Events) == 0 {
		t.Error("expected capability metadata for known model")
	}
}

func TestDevicePollEmitsEvents(t *testing.T) {
	f := newFakeDevice(t, "chuangmi.plug.m1")
	dev := openTestDevice(t, f)

	got := map[string]any{}
	deadline := time.After(3 * time.Second)
	for len(got) < 2 {
		select {
		case ev := <-dev.Events():
			got[ev.Name] = ev.Payload
		case <-deadline:
			t.Fatalf("timed out; events so far: %v", got)
		}
	}

	if got["powerChanged"] != true {
		t.Errorf("powerChanged = %v", got["powerChanged"])
	}
	if got["temperatureChanged"] != 325.0 {
		t.Errorf("temperatureChanged = %v", got["temperatureChanged"])
	}
}

func (f *fakeDevice) setPropResult(values []any) {
	f.mu.Lock()
	f.propResult = values
	f.mu.Unlock()
}

func TestDevicePollStructuredValue(t *testing.T) {
	f := newFakeDevice(t, "chuangmi.plug.m1")
	f.setPropResult([]any{[]any{"on", 1}, 325})
	dev := openTestDevice(t, f)

	// Let several poll cycles run so the diff compares the structured
	// value against itself.
	powerEvents := 0
	deadline := time.After(500 * time.Millisecond)
	for {
		select {
		case ev := <-dev.Events():
			if ev.Name == "powerChanged" {
				powerEvents++
			}
		case <-deadline:
			if powerEvents != 1 {
				t.Errorf("powerChanged events = %d, want 1", powerEvents)
			}
			return
		}
	}
}

func TestValuesEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"equal bools", true, true, true},
		{"unequal floats", 1.0, 2.0, false},
		{"nil both", nil, nil, true},
		{"nil one side", nil, "on", false},
		{"equal slices", []any{"on", 1.0}, []any{"on", 1.0}, true},
		{"unequal slices", []any{"on"}, []any{"off"}, false},
		{"equal maps", map[string]any{"r": 255.0}, map[string]any{"r": 255.0}, true},
		{"scalar vs slice", "on", []any{"on"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := valuesEqual(tt.a, tt.b); got != tt.want {
				t.Errorf("valuesEqual(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestDeviceCall(t *testing.T) {
	f := newFakeDevice(t, "chuangmi.plug.m1")
	dev := openTestDevice(t, f)

	if err := dev.Call(context.Background(), "setPower", false); err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	calls := f.recordedCalls()
	if len(calls) != 1 || calls[0] != "set_power:off" {
		t.Errorf("recorded calls: %v", calls)
	}

	if err := dev.Call(context.Background(), "setNothing", true); err == nil {
		t.Error("expected error for unknown action")
	}
}

func TestUnknownModelAdoptedEmpty(t *testing.T) {
	f := newFakeDevice(t, "vendor.widget.v1")
	dev := openTestDevice(t, f)

	if len(dev.Metadata().Events) != 0 || len(dev.Metadata().Actions) != 0 {
		t.Error("unknown model must have empty metadata")
	}
}

func TestDeviceCloseClosesEvents(t *testing.T) {
	f := newFakeDevice(t, "chuangmi.plug.m1")
	dev := openTestDevice(t, f)

	dev.Close()
	dev.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-dev.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("event channel not closed")
		}
	}
}
