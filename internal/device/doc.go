// Package device provides the Device Registry for BeaconTrack Core.
//
// The Device Registry is the catalogue of physical locator devices. It owns
// device records keyed by a globally unique device token and by the composite
// (owner identity, sub-identity) pair, allocates sub-identities per owner,
// and applies lifecycle and telemetry mutations.
//
// # Architecture
//
//   - Registry (registry.go): business operations - registration with
//     sub-identity allocation, telemetry application, lifecycle changes.
//   - Repository (repository.go): SQLite persistence for device rows.
//   - PingHistoryRepository (ping_history.go): append-only telemetry trail.
//   - Validation (validation.go): input checks shared by all entry points.
//
// # Sub-identity allocation
//
// Sub-identities are allocated per owner with a high-water mark: the next
// value is max(sub_identity)+1 over the owner's current devices, or 1 when
// the owner has none. Values freed by deletion are not reused while other
// devices remain; once the owner has no devices the mark resets to 1.
//
// NextSubIdentity is a pure read and does not reserve the value. The
// allocate-then-insert race under concurrent registration is resolved by the
// UNIQUE(owner_identity, sub_identity) index: Register recomputes and retries
// when an insert loses the race.
//
// # Usage
//
//	owners := owner.NewSQLiteRepository(db)
//	repo := device.NewSQLiteRepository(db)
//	registry := device.NewRegistry(repo, owners)
//
//	dev, err := registry.Register(ctx, device.RegisterInput{
//	    Name:       "Keys",
//	    OwnerToken: "alice",
//	})
//
// # Thread Safety
//
// The Registry is safe for concurrent use. Every operation is a direct
// read-modify-write against the database; there is no in-process cache.
package device
