package owner

import "errors"

// Domain errors for the owner package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, owner.ErrOwnerNotFound) {
//	    // handle not found case
//	}
var (
	// ErrOwnerNotFound is returned when no owner is registered under a token
	// or identity.
	ErrOwnerNotFound = errors.New("owner: not found")

	// ErrTokenRequired is returned when registration is attempted with an
	// empty external token.
	ErrTokenRequired = errors.New("owner: token is required")
)
