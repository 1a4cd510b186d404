// Package retrieval implements the core retrieval path: resolving which
// backend serves an alias, matching mailbox messages against a platform,
// and orchestrating one fetch-latest request end to end.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/aliasmail/aliasmaild/internal/database"
	"github.com/aliasmail/aliasmaild/pkg/models"
)

// AccountStore is the read-only account lookup the resolver needs.
type AccountStore interface {
	GetAccount(ctx context.Context, ownerID int64, address string) (*models.MailAccount, error)
	FindActiveCatchAllByDomain(ctx context.Context, ownerID int64, domain string) ([]*models.MailAccount, error)
}

// CredentialReader checks for stored OAuth credentials during resolution.
type CredentialReader interface {
	GetCredential(ctx context.Context, ownerID int64, address string) (*models.OAuthCredential, error)
}

// BackendKind tags the variant of a resolved backend.
type BackendKind int

const (
	// BackendOAuth serves the alias from an OAuth webmail mailbox.
	BackendOAuth BackendKind = iota + 1
	// BackendIMAP serves the alias from its dedicated IMAP account.
	BackendIMAP
	// BackendCatchAll serves the alias from a catch-all IMAP account
	// covering the alias domain.
	BackendCatchAll
)

func (k BackendKind) String() string {
	switch k {
	case BackendOAuth:
		return "oauth"
	case BackendIMAP:
		return "imap"
	case BackendCatchAll:
		return "catch-all"
	default:
		return "unknown"
	}
}

// Backend describes which transport and credentials serve a request.
// Account is nil for the OAuth variant.
type Backend struct {
	Kind    BackendKind
	Address string
	Account *models.MailAccount
}

// Resolver decides which backend serves an alias. Resolution is
// read-only; it performs no mutation.
type Resolver struct {
	accounts     AccountStore
	creds        CredentialReader
	oauthDomains []string
}

// NewResolver creates a resolver. oauthDomains are the webmail domains
// eligible for the OAuth backend (e.g. gmail.com).
func NewResolver(accounts AccountStore, creds CredentialReader, oauthDomains []string) *Resolver {
	return &Resolver{accounts: accounts, creds: creds, oauthDomains: oauthDomains}
}

// Resolve applies the precedence rules in order, first match wins:
//
//  1. alias on an OAuth webmail domain with an active stored credential;
//  2. dedicated (non-catch-all) active IMAP account for the alias;
//  3. newest active catch-all IMAP account for the alias domain;
//  4. NoProviderError.
func (r *Resolver) Resolve(ctx context.Context, ownerID int64, alias string) (*Backend, error) {
	_, domain, err := models.SplitAddress(alias)
	if err != nil {
		return nil, &BadAliasError{Alias: alias}
	}

	// Rule 1: OAuth webmail
	if slices.Contains(r.oauthDomains, domain) {
		cred, err := r.creds.GetCredential(ctx, ownerID, alias)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("failed to check credential: %w", err)
		}
		if cred != nil && cred.Active {
			return &Backend{Kind: BackendOAuth, Address: alias}, nil
		}
	}

	// Rule 2: dedicated IMAP account
	account, err := r.accounts.GetAccount(ctx, ownerID, alias)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if account != nil && account.Kind == models.KindIMAP && account.Active && !account.CatchAll {
		return &Backend{Kind: BackendIMAP, Address: account.Address, Account: account}, nil
	}

	// Rule 3: catch-all by domain, newest registration wins
	catchAlls, err := r.accounts.FindActiveCatchAllByDomain(ctx, ownerID, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to look up catch-all accounts: %w", err)
	}
	if len(catchAlls) > 0 {
		acc := catchAlls[0]
		return &Backend{Kind: BackendCatchAll, Address: acc.Address, Account: acc}, nil
	}

	return nil, &NoProviderError{OwnerID: ownerID, Alias: alias}
}
