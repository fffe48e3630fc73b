package device

import "time"

// Device represents one physical locator. This matches the devices table
// created by the initial schema migration.
type Device struct {
	// Token is the globally unique device token. Generated by the registry
	// if the caller omits it at registration.
	Token string `json:"token"`

	// Name is a free-form display name.
	Name string `json:"name"`

	// OwnerToken is the external user token this device belongs to.
	// Denormalised from the owners table; allocation logic depends on the
	// owner existing but no foreign key enforces the reference.
	OwnerToken string `json:"owner_token"`

	// OwnerIdentity equals the owner's numeric identity. Immutable.
	OwnerIdentity int64 `json:"owner_identity"`

	// SubIdentity identifies the device within its owner's scope. Allocated
	// at creation, immutable. Unique per owner among live devices.
	SubIdentity int64 `json:"sub_identity"`

	// Active is a mutable lifecycle flag, true by default.
	Active bool `json:"active"`

	// PairedAt is set once at creation. Immutable.
	PairedAt time.Time `json:"paired_at"`

	// LastSeenAt is refreshed by every telemetry submission.
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`

	// LastSignal is the most recent reported signal strength (RSSI, dBm).
	LastSignal *int `json:"last_signal,omitempty"`

	// BatteryPercent is settable at creation only; telemetry submissions do
	// not update it. Battery is expected to be reported out-of-band.
	BatteryPercent *int `json:"battery_percent,omitempty"`

	// Lat and Lng are the last reported coordinates.
	Lat *float64 `json:"lat,omitempty"`
	Lng *float64 `json:"lng,omitempty"`
}

// Telemetry carries optional initial readings supplied at registration.
type Telemetry struct {
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
	Signal  *int     `json:"signal,omitempty"`
	Battery *int     `json:"battery,omitempty"`
}

// RegisterInput describes a device registration request.
type RegisterInput struct {
	// Token is optional; a collision-resistant token is generated when empty.
	Token string

	// Name is the display name. May be empty.
	Name string

	// OwnerToken must refer to a registered owner.
	OwnerToken string

	// SubIdentity is optional. When zero the registry allocates the next
	// value for the owner; when set it is used as-is (callers that obtained
	// it from NextSubIdentity). Either way the unique pair index arbitrates
	// concurrent registrations.
	SubIdentity int64

	// Active defaults to true when nil.
	Active *bool

	// Telemetry optionally seeds the initial readings.
	Telemetry *Telemetry
}
