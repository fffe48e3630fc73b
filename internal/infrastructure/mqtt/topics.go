package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// Topic prefixes for the BeaconTrack MQTT hierarchy.
//
// Telemetry topics address devices by their pair:
// beacontrack/{kind}/{owner_identity}/{sub_identity}
const (
	// TopicPrefix is the base for all BeaconTrack topics.
	TopicPrefix = "beacontrack"

	// TopicPrefixEvent is the base for registry event topics.
	TopicPrefixEvent = "beacontrack/event"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "beacontrack/system"
)

// Topics provides builders for BeaconTrack MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	pingTopic := topics.DevicePing(3, 1)
//	// Returns: "beacontrack/ping/3/1"
type Topics struct{}

// DevicePing returns the telemetry topic for full ping submissions
// (position plus optional signal) from a device.
//
// Example: beacontrack/ping/3/1
func (Topics) DevicePing(ownerIdentity, subIdentity int64) string {
	return fmt.Sprintf("%s/ping/%d/%d", TopicPrefix, ownerIdentity, subIdentity)
}

// DeviceSignal returns the telemetry topic for signal-only submissions.
//
// Example: beacontrack/signal/3/1
func (Topics) DeviceSignal(ownerIdentity, subIdentity int64) string {
	return fmt.Sprintf("%s/signal/%d/%d", TopicPrefix, ownerIdentity, subIdentity)
}

// Event returns the topic for registry events published by the service.
//
// Example: beacontrack/event/device.registered
func (Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixEvent, eventType)
}

// SystemStatus returns the system status topic used for LWT and
// online/offline announcements.
//
// Example: beacontrack/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllDevicePings returns a pattern matching ping submissions from every device.
//
// Pattern: beacontrack/ping/+/+
func (Topics) AllDevicePings() string {
	return fmt.Sprintf("%s/ping/+/+", TopicPrefix)
}

// AllDeviceSignals returns a pattern matching signal-only submissions from
// every device.
//
// Pattern: beacontrack/signal/+/+
func (Topics) AllDeviceSignals() string {
	return fmt.Sprintf("%s/signal/+/+", TopicPrefix)
}

// AllTopics returns a pattern matching all BeaconTrack topics.
// Use with caution, this receives ALL traffic.
//
// Pattern: beacontrack/#
func (Topics) AllTopics() string {
	return "beacontrack/#"
}

// ParseDeviceTopic extracts the owner and sub-identity pair from a telemetry
// topic of the form beacontrack/{kind}/{owner}/{sub}. The kind segment
// ("ping" or "signal") is returned so subscribers with wildcard patterns can
// dispatch on it.
func ParseDeviceTopic(topic string) (kind string, ownerIdentity, subIdentity int64, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix {
		return "", 0, 0, fmt.Errorf("%w: %q is not a device telemetry topic", ErrInvalidTopic, topic)
	}

	kind = parts[1]
	if kind != "ping" && kind != "signal" {
		return "", 0, 0, fmt.Errorf("%w: unknown telemetry kind %q", ErrInvalidTopic, kind)
	}

	ownerIdentity, err = strconv.ParseInt(parts[2], 10, 64)
	if err != nil || ownerIdentity < 1 {
		return "", 0, 0, fmt.Errorf("%w: invalid owner identity %q", ErrInvalidTopic, parts[2])
	}

	subIdentity, err = strconv.ParseInt(parts[3], 10, 64)
	if err != nil || subIdentity < 1 {
		return "", 0, 0, fmt.Errorf("%w: invalid sub-identity %q", ErrInvalidTopic, parts[3])
	}

	return kind, ownerIdentity, subIdentity, nil
}
