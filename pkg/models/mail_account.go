package models

import (
	"fmt"
	"strings"
	"time"
)

// TransportKind identifies which mail transport serves an account.
type TransportKind string

const (
	// KindOAuth is an OAuth-authenticated webmail mailbox. Connection
	// parameters are not stored on the account; credentials live in
	// OAuthCredential.
	KindOAuth TransportKind = "oauth"
	// KindIMAP is a dedicated or catch-all IMAP mailbox.
	KindIMAP TransportKind = "imap"
)

// MailAccount represents one mailbox the system can serve mail from
type MailAccount struct {
	ID       int64         `db:"id"`
	OwnerID  int64         `db:"owner_id"`
	Address  string        `db:"address"`
	Kind     TransportKind `db:"kind"`
	Active   bool          `db:"active"`
	CatchAll bool          `db:"catch_all"` // IMAP only; serves every alias under the address domain

	// IMAP connection parameters (unused for oauth accounts)
	IMAPHost string `db:"imap_host"`
	IMAPPort int    `db:"imap_port"`
	UseTLS   bool   `db:"use_tls"`
	Password string `db:"password"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Domain returns the domain part of the account address, or "" if the
// address is malformed.
func (a *MailAccount) Domain() string {
	_, domain, err := SplitAddress(a.Address)
	if err != nil {
		return ""
	}
	return domain
}

// SplitAddress splits an email address into local and domain parts.
// Both parts must be non-empty.
func SplitAddress(address string) (local, domain string, err error) {
	addr := strings.ToLower(strings.TrimSpace(address))
	at := strings.LastIndex(addr, "@")
	if at <= 0 || at == len(addr)-1 {
		return "", "", fmt.Errorf("address %q has no domain part", address)
	}
	return addr[:at], addr[at+1:], nil
}
