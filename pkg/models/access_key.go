package models

import "time"

// AccessKey maps a public (alias, platform, secret) triple to the owner
// whose mailboxes may serve that alias. Used by the unified public
// endpoint; ownership resolution happens before provider resolution.
type AccessKey struct {
	ID        int64     `db:"id"`
	OwnerID   int64     `db:"owner_id"`
	Platform  string    `db:"platform"`
	Alias     string    `db:"alias"`
	Secret    string    `db:"secret"`
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
}
