// Package credentials manages the OAuth credential lifecycle for webmail
// mailboxes: authorization URLs, code exchange, silent refresh and
// revocation handling. It is the only writer of stored credentials.
package credentials

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/aliasmail/aliasmaild/internal/database"
	"github.com/aliasmail/aliasmaild/pkg/models"
)

// Store is the durable credential store the manager writes through.
type Store interface {
	GetCredential(ctx context.Context, ownerID int64, address string) (*models.OAuthCredential, error)
	UpsertCredential(ctx context.Context, cred *models.OAuthCredential) error
	DeactivateCredential(ctx context.Context, ownerID int64, address string) error
}

// Config holds the OAuth application settings.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// Manager obtains, validates and refreshes OAuth credentials.
type Manager struct {
	store  Store
	oauth  *oauth2.Config
	logger *slog.Logger

	// tokenSource is swapped out in tests to avoid upstream calls
	tokenSource func(ctx context.Context, t *oauth2.Token) oauth2.TokenSource
}

// NewManager creates a credential manager for the Google endpoint.
func NewManager(store Store, cfg Config, logger *slog.Logger) *Manager {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"https://www.googleapis.com/auth/gmail.readonly"}
	}
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	}
	return &Manager{
		store:  store,
		oauth:  oc,
		logger: logger.With("component", "credentials"),
		tokenSource: func(ctx context.Context, t *oauth2.Token) oauth2.TokenSource {
			return oc.TokenSource(ctx, t)
		},
	}
}

type authState struct {
	OwnerID int64  `json:"owner_id"`
	Address string `json:"address"`
}

// AuthURL returns the provider consent URL for connecting a mailbox.
// The (owner, address) pair rides along in the state parameter.
func (m *Manager) AuthURL(ownerID int64, address string) string {
	state, _ := json.Marshal(authState{OwnerID: ownerID, Address: address})
	return m.oauth.AuthCodeURL(
		base64.RawURLEncoding.EncodeToString(state),
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// ExchangeCode trades an authorization code for a token set and persists
// it for the (owner, address) carried in the state parameter.
func (m *Manager) ExchangeCode(ctx context.Context, code, state string) (int64, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(state)
	if err != nil {
		return 0, "", fmt.Errorf("failed to decode state: %w", err)
	}
	var st authState
	if err := json.Unmarshal(raw, &st); err != nil {
		return 0, "", fmt.Errorf("failed to decode state: %w", err)
	}

	tok, err := m.oauth.Exchange(ctx, code)
	if err != nil {
		return 0, "", fmt.Errorf("failed to exchange code: %w", err)
	}

	if err := m.saveToken(ctx, st.OwnerID, st.Address, tok); err != nil {
		return 0, "", err
	}

	m.logger.Info("mailbox authorized", "owner_id", st.OwnerID, "address", st.Address)
	return st.OwnerID, st.Address, nil
}

// TokenExists reports whether an active credential is stored for the
// (owner, address) pair.
func (m *Manager) TokenExists(ctx context.Context, ownerID int64, address string) (bool, error) {
	cred, err := m.store.GetCredential(ctx, ownerID, address)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return cred.Active, nil
}

// EnsureValid returns an HTTP client authorized for the mailbox,
// refreshing the stored token when it has expired. A rotated access
// token is persisted immediately, merged so the refresh token never
// regresses. A rejected refresh token deactivates the credential and
// returns Error with ReasonRevoked.
//
// Two concurrent calls for the same account may both refresh upstream;
// the store's upsert is last-write-wins and the duplicate refresh is
// accepted inefficiency.
func (m *Manager) EnsureValid(ctx context.Context, ownerID int64, address string) (*http.Client, error) {
	cred, err := m.store.GetCredential(ctx, ownerID, address)
	if errors.Is(err, database.ErrNotFound) {
		return nil, &Error{Reason: ReasonNotRegistered, Address: address}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	if !cred.Active {
		return nil, &Error{Reason: ReasonNotRegistered, Address: address}
	}

	stored := &oauth2.Token{
		AccessToken:  cred.AccessToken,
		TokenType:    cred.TokenType,
		RefreshToken: cred.RefreshToken,
		Expiry:       cred.Expiry,
	}

	fresh, err := m.tokenSource(ctx, stored).Token()
	if err != nil {
		if isInvalidGrant(err) {
			m.logger.Warn("refresh token rejected, deactivating credential",
				"owner_id", ownerID, "address", address, "error", err)
			if derr := m.store.DeactivateCredential(ctx, ownerID, address); derr != nil {
				m.logger.Error("failed to deactivate credential", "address", address, "error", derr)
			}
			return nil, &Error{Reason: ReasonRevoked, Address: address, Err: err}
		}
		return nil, fmt.Errorf("failed to refresh token for %s: %w", address, err)
	}

	if fresh.AccessToken != cred.AccessToken {
		if err := m.saveToken(ctx, ownerID, address, fresh); err != nil {
			return nil, err
		}
		m.logger.Info("access token rotated", "owner_id", ownerID, "address", address)
	}

	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(fresh)), nil
}

// saveToken persists a token set, keeping the previously stored refresh
// token when the response omits one.
func (m *Manager) saveToken(ctx context.Context, ownerID int64, address string, tok *oauth2.Token) error {
	var stored *models.OAuthToken
	existing, err := m.store.GetCredential(ctx, ownerID, address)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("failed to load credential: %w", err)
	}
	if existing != nil {
		stored = &existing.OAuthToken
	}

	merged := models.MergeToken(stored, models.OAuthToken{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
		Scope:        tokenScope(tok),
	})

	cred := &models.OAuthCredential{
		OwnerID:    ownerID,
		Address:    address,
		OAuthToken: merged,
		Active:     true,
	}
	if err := m.store.UpsertCredential(ctx, cred); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

// tokenScope reads the granted scope from the token response. The
// upstream returns it as an extra field, not a typed one.
func tokenScope(tok *oauth2.Token) string {
	s, _ := tok.Extra("scope").(string)
	return s
}

// isInvalidGrant reports whether the upstream permanently rejected the
// grant (revoked or invalid refresh token) as opposed to a transient
// failure.
func isInvalidGrant(err error) bool {
	var rerr *oauth2.RetrieveError
	if !errors.As(err, &rerr) {
		return false
	}
	if rerr.ErrorCode == "invalid_grant" {
		return true
	}
	return rerr.Response != nil &&
		(rerr.Response.StatusCode == http.StatusBadRequest || rerr.Response.StatusCode == http.StatusUnauthorized)
}
