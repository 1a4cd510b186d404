// Package accounts manages the registration lifecycle of IMAP mail
// accounts: creation, updates, activation and catch-all designation.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aliasmail/aliasmaild/internal/database"
	"github.com/aliasmail/aliasmaild/pkg/models"
)

// ErrCatchAllInactive is returned when marking an inactive account as
// catch-all.
var ErrCatchAllInactive = errors.New("account must be active to be marked catch-all")

// Store is the durable account store.
type Store interface {
	CreateAccount(ctx context.Context, account *models.MailAccount) error
	GetAccountByID(ctx context.Context, ownerID, id int64) (*models.MailAccount, error)
	GetAccountsByOwner(ctx context.Context, ownerID int64) ([]*models.MailAccount, error)
	UpdateAccount(ctx context.Context, account *models.MailAccount) error
	DeleteAccount(ctx context.Context, ownerID, id int64) error
}

// Service applies account business rules on top of the store.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates an account service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger.With("component", "accounts")}
}

// RegisterInput are the parameters for registering an IMAP account.
type RegisterInput struct {
	OwnerID  int64
	Address  string
	Password string
	IMAPHost string
	IMAPPort int
	UseTLS   *bool
	CatchAll bool
}

// Register creates an active IMAP account for the owner. The address is
// normalized; duplicates per (owner, address) are rejected with
// database.ErrAlreadyExists.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.MailAccount, error) {
	local, domain, err := models.SplitAddress(in.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}
	password := strings.TrimSpace(in.Password)
	if password == "" {
		return nil, errors.New("password is required")
	}
	host := strings.ToLower(strings.TrimSpace(in.IMAPHost))
	if host == "" {
		return nil, errors.New("imap host is required")
	}
	port := in.IMAPPort
	if port == 0 {
		port = 993
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid imap port %d", in.IMAPPort)
	}
	useTLS := true
	if in.UseTLS != nil {
		useTLS = *in.UseTLS
	}

	account := &models.MailAccount{
		OwnerID:  in.OwnerID,
		Address:  local + "@" + domain,
		Kind:     models.KindIMAP,
		Active:   true,
		CatchAll: in.CatchAll,
		IMAPHost: host,
		IMAPPort: port,
		UseTLS:   useTLS,
		Password: password,
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("account registered", "owner_id", in.OwnerID, "address", account.Address, "catch_all", account.CatchAll)
	return account, nil
}

// List returns the owner's accounts, newest first.
func (s *Service) List(ctx context.Context, ownerID int64) ([]*models.MailAccount, error) {
	return s.store.GetAccountsByOwner(ctx, ownerID)
}

// SetActive toggles an account. Deactivating also clears the catch-all
// flag so an inactive account can never shadow domain resolution.
func (s *Service) SetActive(ctx context.Context, ownerID, id int64, active bool) (*models.MailAccount, error) {
	account, err := s.store.GetAccountByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	account.Active = active
	if !active {
		account.CatchAll = false
	}
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("account toggled", "owner_id", ownerID, "address", account.Address, "active", active)
	return account, nil
}

// SetCatchAll marks or unmarks an account as the catch-all for its
// domain. Marking requires the account to be active.
func (s *Service) SetCatchAll(ctx context.Context, ownerID, id int64, catchAll bool) (*models.MailAccount, error) {
	account, err := s.store.GetAccountByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if catchAll && !account.Active {
		return nil, ErrCatchAllInactive
	}
	account.CatchAll = catchAll
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// UpdateInput carries optional account mutations; nil fields are left
// unchanged.
type UpdateInput struct {
	Address  *string
	Password *string
	IMAPHost *string
	IMAPPort *int
	UseTLS   *bool
	Active   *bool
	CatchAll *bool
}

// Update applies a partial update under the same rules as the dedicated
// setters: deactivation clears catch-all, and catch-all requires the
// resulting active state to be true.
func (s *Service) Update(ctx context.Context, ownerID, id int64, in UpdateInput) (*models.MailAccount, error) {
	account, err := s.store.GetAccountByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if in.Address != nil {
		local, domain, err := models.SplitAddress(*in.Address)
		if err != nil {
			return nil, fmt.Errorf("invalid address: %w", err)
		}
		account.Address = local + "@" + domain
	}
	if in.Password != nil {
		password := strings.TrimSpace(*in.Password)
		if password == "" {
			return nil, errors.New("password cannot be empty")
		}
		account.Password = password
	}
	if in.IMAPHost != nil {
		host := strings.ToLower(strings.TrimSpace(*in.IMAPHost))
		if host == "" {
			return nil, errors.New("imap host cannot be empty")
		}
		account.IMAPHost = host
	}
	if in.IMAPPort != nil {
		if *in.IMAPPort < 1 || *in.IMAPPort > 65535 {
			return nil, fmt.Errorf("invalid imap port %d", *in.IMAPPort)
		}
		account.IMAPPort = *in.IMAPPort
	}
	if in.UseTLS != nil {
		account.UseTLS = *in.UseTLS
	}
	if in.Active != nil {
		account.Active = *in.Active
		if !account.Active {
			account.CatchAll = false
		}
	}
	if in.CatchAll != nil {
		if *in.CatchAll && !account.Active {
			return nil, ErrCatchAllInactive
		}
		account.CatchAll = *in.CatchAll
	}

	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Delete removes an owner's account.
func (s *Service) Delete(ctx context.Context, ownerID, id int64) error {
	if err := s.store.DeleteAccount(ctx, ownerID, id); err != nil {
		return err
	}
	s.logger.Info("account deleted", "owner_id", ownerID, "account_id", id)
	return nil
}

// NotFound reports whether err is the store's not-found condition.
func NotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}
