package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDevicePing writes a full telemetry submission to InfluxDB.
//
// This is the primary method for recording tracker telemetry. The write is
// non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceToken: Unique device token
//   - ownerIdentity, subIdentity: The device's pair, used as tags
//   - lat, lng: Reported position
//   - signal: Reported signal strength, nil when not supplied
//
// Example:
//
//	client.WriteDevicePing("b4f1...", 3, 1, 51.5074, -0.1278, intPtr(-67))
func (c *Client) WriteDevicePing(deviceToken string, ownerIdentity, subIdentity int64, lat, lng float64, signal *int) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"lat": lat,
		"lng": lng,
	}
	if signal != nil {
		fields["signal"] = *signal
	}

	point := write.NewPoint(
		"device_pings",
		pairTags(deviceToken, ownerIdentity, subIdentity),
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDeviceSignal writes a signal-only telemetry submission.
//
// Used when a tracker reports signal strength without a position fix.
func (c *Client) WriteDeviceSignal(deviceToken string, ownerIdentity, subIdentity int64, signal int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_signal",
		pairTags(deviceToken, ownerIdentity, subIdentity),
		map[string]interface{}{
			"signal": signal,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// pairTags builds the tag set shared by all device measurements.
// Identities are stringified since InfluxDB tags are always strings.
func pairTags(deviceToken string, ownerIdentity, subIdentity int64) map[string]string {
	return map[string]string{
		"device_token":   deviceToken,
		"owner_identity": strconv.FormatInt(ownerIdentity, 10),
		"sub_identity":   strconv.FormatInt(subIdentity, 10),
	}
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "registry-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
