package owner

import "time"

// Owner represents an external user that has been issued a numeric identity.
// This matches the owners table created by the initial schema migration.
type Owner struct {
	// Identity is the system-assigned numeric identity. Allocated once,
	// monotonically increasing, immutable.
	Identity int64 `json:"identity"`

	// Token is the opaque external token supplied by the caller. Unique.
	Token string `json:"token"`

	// CreatedAt records when the identity was first allocated.
	CreatedAt time.Time `json:"created_at"`
}
