package models

import "time"

// OAuthToken is a versioned, fully-typed token record as returned by the
// upstream provider.
type OAuthToken struct {
	AccessToken  string    `db:"access_token" json:"access_token"`
	TokenType    string    `db:"token_type" json:"token_type,omitempty"`
	RefreshToken string    `db:"refresh_token" json:"refresh_token,omitempty"`
	Expiry       time.Time `db:"expiry" json:"expiry,omitempty"`
	Scope        string    `db:"scope" json:"scope,omitempty"`
}

// OAuthCredential stores the token set for one (owner, address) mailbox.
// Exactly one credential exists per oauth MailAccount. A credential is
// marked inactive, never deleted, when the provider rejects its refresh
// token.
type OAuthCredential struct {
	ID      int64  `db:"id"`
	OwnerID int64  `db:"owner_id"`
	Address string `db:"address"`
	OAuthToken
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// MergeToken combines a freshly issued token with the previously stored
// one. A refresh response that omits the refresh token keeps the stored
// refresh token: once known, it is never silently dropped.
func MergeToken(stored *OAuthToken, fresh OAuthToken) OAuthToken {
	if fresh.RefreshToken == "" && stored != nil {
		fresh.RefreshToken = stored.RefreshToken
	}
	if fresh.Scope == "" && stored != nil {
		fresh.Scope = stored.Scope
	}
	return fresh
}
