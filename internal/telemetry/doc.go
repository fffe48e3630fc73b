// Package telemetry ingests tracker telemetry from MQTT.
//
// Battery-powered trackers that cannot hold an HTTP connection publish their
// pings to the broker instead. The ingestor subscribes to the device
// telemetry topics and applies each submission through the same device
// registry the HTTP API uses, so both paths share validation, persistence,
// and event fan-out.
//
// Topics:
//
//	beacontrack/ping/{owner_identity}/{sub_identity}    full submission
//	beacontrack/signal/{owner_identity}/{sub_identity}  signal-only
//
// Payloads are JSON:
//
//	{"lat": 51.5074, "lng": -0.1278, "signal": -67}   ping (signal optional)
//	{"signal": -81}                                    signal-only
//
// Malformed payloads and submissions for unknown devices are logged and
// dropped. MQTT ingest is fire-and-forget; there is no reply channel to
// report errors back to the tracker.
package telemetry
