// Package api implements the HTTP REST API and WebSocket server for BeaconTrack.
//
// This package provides:
//   - REST endpoints for owner linking, sub-identity allocation, device
//     registration, and telemetry updates
//   - WebSocket hub for real-time registry event broadcasts
//   - Middleware stack (request ID, logging, recovery, CORS, body limits)
//
// # Architecture
//
// The server is one of two ingest paths into the device registry; the other
// is the MQTT telemetry ingestor. Both mutate through the same registry, so
// the registry's event sink sees every change regardless of origin. The API
// server installs itself as that sink on Start and fans events out to
// WebSocket subscribers, the InfluxDB movement history, and the MQTT event
// topics.
//
// # Graceful Degradation
//
// MQTT and InfluxDB are optional dependencies. When absent the server still
// serves the full REST surface and WebSocket broadcasts; only the external
// fan-out legs are skipped.
package api
