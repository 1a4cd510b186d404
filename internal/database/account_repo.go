package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/aliasmail/aliasmaild/pkg/models"
)

// ErrNotFound is returned when a record is not found
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists is returned when trying to insert a duplicate record
var ErrAlreadyExists = errors.New("record already exists")

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// CreateAccount creates a new mail account
func (db *DB) CreateAccount(ctx context.Context, account *models.MailAccount) error {
	query := `
		INSERT INTO mail_accounts (owner_id, address, kind, active, catch_all, imap_host, imap_port, use_tls, password, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		account.OwnerID,
		account.Address,
		account.Kind,
		account.Active,
		account.CatchAll,
		account.IMAPHost,
		account.IMAPPort,
		account.UseTLS,
		account.Password,
		now,
		now,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	account.ID = id
	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

// GetAccount returns the account for an (owner, address) pair
func (db *DB) GetAccount(ctx context.Context, ownerID int64, address string) (*models.MailAccount, error) {
	var account models.MailAccount
	query := `SELECT * FROM mail_accounts WHERE owner_id = ? AND address = ?`
	err := db.GetContext(ctx, &account, query, ownerID, address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// GetAccountByID returns an owner's account by ID
func (db *DB) GetAccountByID(ctx context.Context, ownerID, id int64) (*models.MailAccount, error) {
	var account models.MailAccount
	query := `SELECT * FROM mail_accounts WHERE id = ? AND owner_id = ?`
	err := db.GetContext(ctx, &account, query, id, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// GetAccountsByOwner returns all accounts for an owner, newest first
func (db *DB) GetAccountsByOwner(ctx context.Context, ownerID int64) ([]*models.MailAccount, error) {
	var accounts []*models.MailAccount
	query := `SELECT * FROM mail_accounts WHERE owner_id = ? ORDER BY created_at DESC, id DESC`
	err := db.SelectContext(ctx, &accounts, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get accounts: %w", err)
	}
	return accounts, nil
}

// FindActiveCatchAllByDomain returns the owner's active catch-all accounts
// whose address domain equals the given domain, newest first.
func (db *DB) FindActiveCatchAllByDomain(ctx context.Context, ownerID int64, domain string) ([]*models.MailAccount, error) {
	var accounts []*models.MailAccount
	query := `
		SELECT * FROM mail_accounts
		WHERE owner_id = ? AND catch_all = true AND active = true AND address LIKE '%@' || ?
		ORDER BY created_at DESC, id DESC
	`
	err := db.SelectContext(ctx, &accounts, query, ownerID, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to find catch-all accounts: %w", err)
	}
	return accounts, nil
}

// UpdateAccount persists all mutable account fields
func (db *DB) UpdateAccount(ctx context.Context, account *models.MailAccount) error {
	query := `
		UPDATE mail_accounts
		SET address = ?, active = ?, catch_all = ?, imap_host = ?, imap_port = ?, use_tls = ?, password = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?
	`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		account.Address,
		account.Active,
		account.CatchAll,
		account.IMAPHost,
		account.IMAPPort,
		account.UseTLS,
		account.Password,
		now,
		account.ID,
		account.OwnerID,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	account.UpdatedAt = now
	return nil
}

// DeleteAccount deletes an owner's account
func (db *DB) DeleteAccount(ctx context.Context, ownerID, id int64) error {
	query := `DELETE FROM mail_accounts WHERE id = ? AND owner_id = ?`
	result, err := db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
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
