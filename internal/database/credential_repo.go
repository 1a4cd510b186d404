package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aliasmail/aliasmaild/pkg/models"
)

// GetCredential returns the OAuth credential for an (owner, address) pair
func (db *DB) GetCredential(ctx context.Context, ownerID int64, address string) (*models.OAuthCredential, error) {
	var cred models.OAuthCredential
	query := `SELECT * FROM oauth_credentials WHERE owner_id = ? AND address = ?`
	err := db.GetContext(ctx, &cred, query, ownerID, address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return &cred, nil
}

// UpsertCredential stores a credential, replacing any previous token set
// for the same (owner, address) pair. Last write wins; the store offers
// no transaction across the read that preceded it.
func (db *DB) UpsertCredential(ctx context.Context, cred *models.OAuthCredential) error {
	query := `
		INSERT INTO oauth_credentials (owner_id, address, access_token, token_type, refresh_token, expiry, scope, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, address) DO UPDATE SET
			access_token = excluded.access_token,
			token_type = excluded.token_type,
			refresh_token = excluded.refresh_token,
			expiry = excluded.expiry,
			scope = excluded.scope,
			active = excluded.active,
			updated_at = excluded.updated_at
	`
	now := time.Now()
	_, err := db.ExecContext(ctx, query,
		cred.OwnerID,
		cred.Address,
		cred.AccessToken,
		cred.TokenType,
		cred.RefreshToken,
		cred.Expiry,
		cred.Scope,
		cred.Active,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}
	return nil
}

// DeactivateCredential marks a credential inactive without deleting it
func (db *DB) DeactivateCredential(ctx context.Context, ownerID int64, address string) error {
	query := `UPDATE oauth_credentials SET active = false, updated_at = ? WHERE owner_id = ? AND address = ?`
	_, err := db.ExecContext(ctx, query, time.Now(), ownerID, address)
	if err != nil {
		return fmt.Errorf("failed to deactivate credential: %w", err)
	}
	return nil
}
