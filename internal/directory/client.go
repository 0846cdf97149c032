package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// apiPrefix is the versioned path prefix of the directory API.
const apiPrefix = "/api/v1"

// maxResponseSize caps directory response bodies (4MB).
// A full device list for a large site stays well under this.
const maxResponseSize = 4 << 20

// Client is the Fora device directory HTTP client.
//
// All requests carry the app token as a bearer credential. The client has
// no retry policy: callers treat a failure as "no data this cycle" and
// recover on the next reload.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	baseURL string
	appID   string
	token   string
	http    *http.Client
}

// New creates a directory client for the given app.
//
// Parameters:
//   - baseURL: Directory service root without the /api/v1 suffix
//   - appID: This bridge's app id
//   - token: App token used as the bearer credential
//   - timeout: Per-request timeout
func New(baseURL, appID, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		appID:   appID,
		token:   token,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetConfigSchema uploads the app's configuration schema so the platform
// can render the AccessTokens form. Called once at startup.
func (c *Client) SetConfigSchema(ctx context.Context, schema any) error {
	path := fmt.Sprintf("/apps/%s/setConfigSchema", c.appID)
	body := map[string]any{"config": schema}
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// FetchAppConfig retrieves the app's remote configuration, including the
// device access token table.
func (c *Client) FetchAppConfig(ctx context.Context) (*AppConfig, error) {
	path := fmt.Sprintf("/apps/%s", c.appID)

	var resp struct {
		Config AppConfig `json:"config"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Config, nil
}

// FetchDevices retrieves the full device record snapshot for this app.
func (c *Client) FetchDevices(ctx context.Context) ([]DeviceRecord, error) {
	path := fmt.Sprintf("/apps/%s/devices", c.appID)

	var records []DeviceRecord
	if err := c.do(ctx, http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// RegisterDevice submits a new device record for registration.
// The directory assigns record and datapoint ids; the returned record
// carries them. The local record stays pending until the next full reload
// re-fetches the confirmed snapshot.
func (c *Client) RegisterDevice(ctx context.Context, record DeviceRecord) (*DeviceRecord, error) {
	var registered DeviceRecord
	if err := c.do(ctx, http.MethodPost, "/devices", record, &registered); err != nil {
		return nil, err
	}
	return &registered, nil
}

// do performs one authenticated request and decodes the JSON response
// into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	url := c.baseURL + apiPrefix + path

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		// Read a little of the body for diagnostics; ignore read errors.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s: status %d: %s",
			ErrUnexpectedStatus, method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}

	decoder := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize))
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrInvalidResponse, method, path, err)
	}

	return nil
}
