// Package mqtt provides MQTT client connectivity for BeaconTrack.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// BeaconTrack uses MQTT as an optional telemetry ingest path. Battery-powered
// trackers in the field publish pings over MQTT instead of HTTP, and the
// registry service subscribes to the telemetry topics and applies the
// submissions through the same device registry the HTTP API uses.
//
//	Tracker devices -> MQTT Broker -> BeaconTrack registry
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to ping submissions from every device
//	err = client.Subscribe(mqtt.Topics{}.AllDevicePings(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt
