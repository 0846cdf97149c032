package directory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/foraone/fora-contrib-app-miio/internal/datapoint"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "bridge-app", "app-token", 5*time.Second)
}

func TestFetchDevices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/api/v1/apps/bridge-app/devices" {
			t.Errorf("path = %s, want /api/v1/apps/bridge-app/devices", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer app-token" {
			t.Errorf("Authorization = %q, want bearer app token", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{
				"_id": "rec-1",
				"appId": "bridge-app",
				"general": {"type": "miio:abc", "name": "zhimi.airpurifier.m1"},
				"datapoints": [
					{"_id": "42", "name": "power", "config": {"isStatusable": true, "isControllable": true, "type": "Boolean"}}
				]
			}
		]`))
	})

	records, err := client.FetchDevices(context.Background())
	if err != nil {
		t.Fatalf("FetchDevices() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("FetchDevices() returned %d records, want 1", len(records))
	}

	rec := records[0]
	if rec.General.Type != "miio:abc" {
		t.Errorf("General.Type = %q, want %q", rec.General.Type, "miio:abc")
	}
	if len(rec.Datapoints) != 1 || rec.Datapoints[0].ID != "42" {
		t.Errorf("Datapoints = %+v, want one with _id 42", rec.Datapoints)
	}
	if !rec.Datapoints[0].Config.IsControllable {
		t.Error("datapoint 42 should be controllable")
	}
}

func TestFetchAppConfig(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/apps/bridge-app" {
			t.Errorf("path = %s, want /api/v1/apps/bridge-app", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"config": {"AccessTokens": [{"deviceID": "123456", "token": "deadbeef"}]}}`))
	})

	cfg, err := client.FetchAppConfig(context.Background())
	if err != nil {
		t.Fatalf("FetchAppConfig() error = %v", err)
	}
	if len(cfg.AccessTokens) != 1 {
		t.Fatalf("AccessTokens = %+v, want one entry", cfg.AccessTokens)
	}
	if cfg.AccessTokens[0].DeviceID != "123456" || cfg.AccessTokens[0].Token != "deadbeef" {
		t.Errorf("token entry = %+v", cfg.AccessTokens[0])
	}
}

func TestRegisterDevice(t *testing.T) {
	var received DeviceRecord
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/devices" {
			t.Errorf("got %s %s, want POST /api/v1/devices", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decoding request: %v", err)
		}

		// Echo back with assigned ids, as the directory does.
		received.ID = "rec-9"
		for i := range received.Datapoints {
			received.Datapoints[i].ID = "dp-9"
		}
		_ = json.NewEncoder(w).Encode(received)
	})

	record := DeviceRecord{
		AppID:   "bridge-app",
		Config:  AppSettings{},
		General: General{Type: "miio:abc", Name: "Unknown"},
		Datapoints: NewDatapoints([]datapoint.Descriptor{
			{Name: "power", IsControllable: true, ValueType: datapoint.MapKind("boolean")},
		}),
	}

	registered, err := client.RegisterDevice(context.Background(), record)
	if err != nil {
		t.Fatalf("RegisterDevice() error = %v", err)
	}

	if received.General.Type != "miio:abc" {
		t.Errorf("submitted General.Type = %q, want %q", received.General.Type, "miio:abc")
	}
	if received.Datapoints[0].Config.Type != "Boolean" {
		t.Errorf("submitted datapoint type = %q, want Boolean", received.Datapoints[0].Config.Type)
	}
	if registered.ID != "rec-9" {
		t.Errorf("registered record id = %q, want rec-9", registered.ID)
	}
}

func TestSetConfigSchema(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/apps/bridge-app/setConfigSchema" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := client.SetConfigSchema(context.Background(), ConfigSchema()); err != nil {
		t.Fatalf("SetConfigSchema() error = %v", err)
	}
	if _, ok := body["config"]; !ok {
		t.Errorf("request body = %v, want a config wrapper", body)
	}
}

func TestUnexpectedStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})

	_, err := client.FetchDevices(context.Background())
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Errorf("FetchDevices() error = %v, want ErrUnexpectedStatus", err)
	}
}

func TestInvalidResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	})

	_, err := client.FetchDevices(context.Background())
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("FetchDevices() error = %v, want ErrInvalidResponse", err)
	}
}

func TestConnectError(t *testing.T) {
	client := New("http://127.0.0.1:1", "bridge-app", "tok", 500*time.Millisecond)

	_, err := client.FetchDevices(context.Background())
	if !errors.Is(err, ErrRequestFailed) {
		t.Errorf("FetchDevices() error = %v, want ErrRequestFailed", err)
	}
}
