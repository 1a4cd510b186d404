package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aliasmail/aliasmaild/pkg/models"
)

// CreateAccessKey creates a new access key
func (db *DB) CreateAccessKey(ctx context.Context, key *models.AccessKey) error {
	query := `
		INSERT INTO access_keys (owner_id, platform, alias, secret, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		key.OwnerID,
		key.Platform,
		key.Alias,
		key.Secret,
		key.Active,
		now,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create access key: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	key.ID = id
	key.CreatedAt = now
	return nil
}

// GetAccessKey returns the access key registered for a (platform, alias) pair
func (db *DB) GetAccessKey(ctx context.Context, platform, alias string) (*models.AccessKey, error) {
	var key models.AccessKey
	query := `SELECT * FROM access_keys WHERE platform = ? AND alias = ?`
	err := db.GetContext(ctx, &key, query, platform, alias)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get access key: %w", err)
	}
	return &key, nil
}

// GetAccessKeysByOwner returns all access keys for an owner, newest first
func (db *DB) GetAccessKeysByOwner(ctx context.Context, ownerID int64) ([]*models.AccessKey, error) {
	var keys []*models.AccessKey
	query := `SELECT * FROM access_keys WHERE owner_id = ? ORDER BY created_at DESC, id DESC`
	err := db.SelectContext(ctx, &keys, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get access keys: %w", err)
	}
	return keys, nil
}

// DeactivateAccessKey marks an owner's access key inactive
func (db *DB) DeactivateAccessKey(ctx context.Context, ownerID, id int64) error {
	query := `UPDATE access_keys SET active = false WHERE id = ? AND owner_id = ?`
	result, err := db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to deactivate access key: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
