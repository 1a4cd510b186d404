package credentials

import "fmt"

// Reason classifies a credential failure.
type Reason int

const (
	// ReasonNotRegistered: no active credential is stored for the
	// mailbox. Terminal until the owner completes authorization.
	ReasonNotRegistered Reason = iota + 1
	// ReasonRevoked: the provider rejected the refresh token. The
	// credential has been deactivated; terminal until re-authorization.
	ReasonRevoked
)

func (r Reason) String() string {
	switch r {
	case ReasonNotRegistered:
		return "not registered"
	case ReasonRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// Error is a credential-level failure for one mailbox.
type Error struct {
	Reason  Reason
	Address string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("credential for %s: %s: %v", e.Address, e.Reason, e.Err)
	}
	return fmt.Sprintf("credential for %s: %s", e.Address, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }
