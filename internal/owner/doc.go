// Package owner provides the Identity Registry for BeaconTrack Core.
//
// The Identity Registry maps opaque external user tokens to stable,
// system-assigned numeric identities. An identity is allocated exactly once
// per token, on first registration, and is immutable thereafter: repeated
// registration with the same token always returns the same identity.
//
// Identities are monotonically increasing integers starting at 1. They are
// never reallocated, and owners are never deleted.
//
// # Concurrency
//
// Registration is a check-then-insert across two storage operations, which
// races under concurrent first-time registrations for the same token. The
// repository relies on the UNIQUE constraint on the token column: a losing
// insert is treated as "someone else just created it" and resolved by
// re-reading the canonical row. The race is invisible to callers.
//
// # Usage
//
//	repo := owner.NewSQLiteRepository(db)
//	o, err := repo.RegisterOrGet(ctx, "alice")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(o.Identity) // 1 on a fresh database
package owner
