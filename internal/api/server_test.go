package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/foraone/fora-contrib-app-miio/internal/bridge"
	"github.com/foraone/fora-contrib-app-miio/internal/directory"
	"github.com/foraone/fora-contrib-app-miio/internal/infrastructure/config"
	"github.com/foraone/fora-contrib-app-miio/internal/infrastructure/logging"
)

// stubBridge implements BridgeStatus for handler tests.
type stubBridge struct {
	mu       sync.Mutex
	records  []directory.DeviceRecord
	bindings []bridge.Binding
	reloads  int
}

func (s *stubBridge) Records() []directory.DeviceRecord { return s.records }
func (s *stubBridge) Bindings() []bridge.Binding        { return s.bindings }
func (s *stubBridge) DeviceCount() int                  { return len(s.records) }

func (s *stubBridge) Reload(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloads++
}

func (s *stubBridge) reloadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloads
}

func newTestServer(t *testing.T, stub *stubBridge, checks map[string]HealthChecker) *Server {
	t.Helper()

	logger := logging.New(config.LoggingConfig{Level: "error", Format: "text"}, "test")
	s, err := New(Deps{
		Config:  config.APIConfig{Host: "127.0.0.1", Port: 0},
		Logger:  logger,
		Bridge:  stub,
		Version: "test",
		Checks:  checks,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.started = time.Now()
	return s
}

func doRequest(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, req)
	return rec
}

func TestNewValidation(t *testing.T) {
	logger := logging.New(config.LoggingConfig{}, "test")

	if _, err := New(Deps{Bridge: &stubBridge{}}); err == nil {
		t.Error("expected error without logger")
	}
	if _, err := New(Deps{Logger: logger}); err == nil {
		t.Error("expected error without bridge")
	}
}

func TestHandleHealth(t *testing.T) {
	stub := &stubBridge{
		records: []directory.DeviceRecord{{General: directory.General{Type: "miio:aaa"}}},
	}
	s := newTestServer(t, stub, map[string]HealthChecker{
		"mqtt": func(ctx context.Context) error { return nil },
	})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Status     string            `json:"status"`
		Devices    int               `json:"devices"`
		Components map[string]string `json:"components"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q", body.Status)
	}
	if body.Devices != 1 {
		t.Errorf("devices = %d", body.Devices)
	}
	if body.Components["mqtt"] != "ok" {
		t.Errorf("mqtt component = %q", body.Components["mqtt"])
	}
}

func TestHandleHealthDegraded(t *testing.T) {
	s := newTestServer(t, &stubBridge{}, map[string]HealthChecker{
		"database": func(ctx context.Context) error { return errors.New("locked") },
	})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/health")

	var body struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.Status != "degraded" {
		t.Errorf("status = %q", body.Status)
	}
	if body.Components["database"] != "locked" {
		t.Errorf("database component = %q", body.Components["database"])
	}
}

func TestHandleListDevices(t *testing.T) {
	stub := &stubBridge{
		records: []directory.DeviceRecord{
			{ID: "rec-1", General: directory.General{Type: "miio:aaa", Name: "Switch"}},
		},
	}
	s := newTestServer(t, stub, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/devices")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Count   int                      `json:"count"`
		Devices []directory.DeviceRecord `json:"devices"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.Count != 1 || body.Devices[0].General.Type != "miio:aaa" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestHandleListBindings(t *testing.T) {
	stub := &stubBridge{
		bindings: []bridge.Binding{
			{Topic: "dps/dp-1/control", DeviceTypeID: "miio:aaa", Action: "setPower"},
		},
	}
	s := newTestServer(t, stub, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/bindings")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Count    int              `json:"count"`
		Bindings []bridge.Binding `json:"bindings"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.Count != 1 || body.Bindings[0].Action != "setPower" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestHandleReload(t *testing.T) {
	stub := &stubBridge{}
	s := newTestServer(t, stub, nil)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/reload")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}

	deadline := time.Now().Add(2 * time.Second)
	for stub.reloadCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("reload was not triggered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(t, &stubBridge{}, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/health")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected generated request id header")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	rec = httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "fixed-id" {
		t.Errorf("request id = %q", got)
	}
}
