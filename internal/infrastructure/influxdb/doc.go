// Package influxdb provides InfluxDB connectivity for BeaconTrack.
//
// It wraps the official influxdb-client-go v2 library with BeaconTrack-specific
// patterns for connection management, telemetry export, and health monitoring.
//
// # Purpose
//
// This package handles time-series export of tracker telemetry:
//   - Ping submissions (position plus signal strength)
//   - Signal-only submissions
//
// The SQLite registry remains the source of truth; InfluxDB holds the
// long-lived movement history for dashboards and analysis.
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "beacontrack",
//	    Bucket:  "telemetry",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Export a ping
//	client.WriteDevicePing(dev.Token, dev.OwnerIdentity, dev.SubIdentity, 51.5, -0.12, dev.LastSignal)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// This reduces network overhead for high-frequency telemetry data.
package influxdb
