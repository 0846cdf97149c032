package tsdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDatapointValue records one accepted numeric datapoint value.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Called from the event bridge for every accepted Number-typed event, so
// platform dashboards get history beyond the broker's single retained
// value.
//
// Parameters:
//   - deviceTypeID: The device's transport identifier (e.g. "miio:158d...")
//   - name: The canonical datapoint name (e.g. "powerConsumed")
//   - value: The normalized numeric value
func (c *Client) WriteDatapointValue(deviceTypeID, name string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"datapoint_values",
		map[string]string{
			"device_type": deviceTypeID,
			"datapoint":   name,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
