package retrieval

import "fmt"

// BadAliasError reports a malformed alias (no domain part). Rejected
// before any I/O.
type BadAliasError struct {
	Alias string
}

func (e *BadAliasError) Error() string {
	return fmt.Sprintf("alias %q must include a domain (e.g. name@example.com)", e.Alias)
}

// NoProviderError reports that no backend resolves for an owner/alias
// pair. The boundary layer must not tell the caller which resolution
// step failed.
type NoProviderError struct {
	OwnerID int64
	Alias   string
}

func (e *NoProviderError) Error() string {
	return fmt.Sprintf("no provider configured for alias %s", e.Alias)
}
