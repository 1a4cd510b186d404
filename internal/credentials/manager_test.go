package credentials

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/aliasmail/aliasmaild/internal/database"
	"github.com/aliasmail/aliasmaild/pkg/models"
)

type fakeStore struct {
	creds       map[string]*models.OAuthCredential
	deactivated []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{creds: make(map[string]*models.OAuthCredential)}
}

func key(ownerID int64, address string) string {
	return address // owner is constant in these tests
}

func (s *fakeStore) GetCredential(ctx context.Context, ownerID int64, address string) (*models.OAuthCredential, error) {
	cred, ok := s.creds[key(ownerID, address)]
	if !ok {
		return nil, database.ErrNotFound
	}
	c := *cred
	return &c, nil
}

func (s *fakeStore) UpsertCredential(ctx context.Context, cred *models.OAuthCredential) error {
	c := *cred
	s.creds[key(cred.OwnerID, cred.Address)] = &c
	return nil
}

func (s *fakeStore) DeactivateCredential(ctx context.Context, ownerID int64, address string) error {
	s.deactivated = append(s.deactivated, address)
	if cred, ok := s.creds[key(ownerID, address)]; ok {
		cred.Active = false
	}
	return nil
}

type stubTokenSource struct {
	tok *oauth2.Token
	err error
}

func (s stubTokenSource) Token() (*oauth2.Token, error) { return s.tok, s.err }

func newTestManager(store Store) *Manager {
	return NewManager(store, Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "https://example.com/callback",
	}, slog.New(slog.DiscardHandler))
}

func storedCred(active bool) *models.OAuthCredential {
	return &models.OAuthCredential{
		OwnerID: 1,
		Address: "alice@gmail.com",
		OAuthToken: models.OAuthToken{
			AccessToken:  "old-access",
			RefreshToken: "stored-refresh",
			TokenType:    "Bearer",
			Expiry:       time.Now().Add(-time.Hour),
		},
		Active: active,
	}
}

func TestEnsureValidNotRegistered(t *testing.T) {
	m := newTestManager(newFakeStore())

	_, err := m.EnsureValid(context.Background(), 1, "alice@gmail.com")

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ReasonNotRegistered, cerr.Reason)
}

func TestEnsureValidInactiveCredentialIsNotRegistered(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.UpsertCredential(context.Background(), storedCred(true)))
	require.NoError(t, store.DeactivateCredential(context.Background(), 1, "alice@gmail.com"))
	m := newTestManager(store)

	_, err := m.EnsureValid(context.Background(), 1, "alice@gmail.com")

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ReasonNotRegistered, cerr.Reason)
}

func TestEnsureValidRotatedTokenMergesRefreshToken(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.UpsertCredential(context.Background(), storedCred(true)))
	m := newTestManager(store)

	// Refresh response carries a new access token but no refresh token
	m.tokenSource = func(ctx context.Context, t *oauth2.Token) oauth2.TokenSource {
		return stubTokenSource{tok: &oauth2.Token{
			AccessToken: "new-access",
			TokenType:   "Bearer",
			Expiry:      time.Now().Add(time.Hour),
		}}
	}

	client, err := m.EnsureValid(context.Background(), 1, "alice@gmail.com")
	require.NoError(t, err)
	require.NotNil(t, client)

	saved := store.creds["alice@gmail.com"]
	assert.Equal(t, "new-access", saved.AccessToken)
	assert.Equal(t, "stored-refresh", saved.RefreshToken, "refresh token must never regress")
	assert.True(t, saved.Active)
}

func TestEnsureValidPersistsGrantedScope(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.UpsertCredential(context.Background(), storedCred(true)))
	m := newTestManager(store)

	// First refresh carries the granted scope as an extra field
	granted := "https://www.googleapis.com/auth/gmail.readonly"
	m.tokenSource = func(ctx context.Context, t *oauth2.Token) oauth2.TokenSource {
		tok := (&oauth2.Token{
			AccessToken: "new-access",
			TokenType:   "Bearer",
			Expiry:      time.Now().Add(time.Hour),
		}).WithExtra(map[string]interface{}{"scope": granted})
		return stubTokenSource{tok: tok}
	}

	_, err := m.EnsureValid(context.Background(), 1, "alice@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, granted, store.creds["alice@gmail.com"].Scope)

	// A later refresh without a scope field keeps the stored scope
	m.tokenSource = func(ctx context.Context, t *oauth2.Token) oauth2.TokenSource {
		return stubTokenSource{tok: &oauth2.Token{
			AccessToken: "newer-access",
			TokenType:   "Bearer",
			Expiry:      time.Now().Add(time.Hour),
		}}
	}

	_, err = m.EnsureValid(context.Background(), 1, "alice@gmail.com")
	require.NoError(t, err)
	saved := store.creds["alice@gmail.com"]
	assert.Equal(t, "newer-access", saved.AccessToken)
	assert.Equal(t, granted, saved.Scope)
}

func TestEnsureValidUnchangedTokenDoesNotWrite(t *testing.T) {
	store := newFakeStore()
	cred := storedCred(true)
	cred.Expiry = time.Now().Add(time.Hour)
	require.NoError(t, store.UpsertCredential(context.Background(), cred))
	m := newTestManager(store)

	m.tokenSource = func(ctx context.Context, t *oauth2.Token) oauth2.TokenSource {
		return stubTokenSource{tok: &oauth2.Token{
			AccessToken:  "old-access",
			RefreshToken: "stored-refresh",
		}}
	}

	_, err := m.EnsureValid(context.Background(), 1, "alice@gmail.com")
	require.NoError(t, err)

	saved := store.creds["alice@gmail.com"]
	assert.Equal(t, "old-access", saved.AccessToken)
	assert.Equal(t, "stored-refresh", saved.RefreshToken)
}

func TestEnsureValidInvalidGrantDeactivates(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.UpsertCredential(context.Background(), storedCred(true)))
	m := newTestManager(store)

	m.tokenSource = func(ctx context.Context, t *oauth2.Token) oauth2.TokenSource {
		return stubTokenSource{err: &oauth2.RetrieveError{
			Response:  &http.Response{StatusCode: http.StatusBadRequest},
			ErrorCode: "invalid_grant",
		}}
	}

	_, err := m.EnsureValid(context.Background(), 1, "alice@gmail.com")

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ReasonRevoked, cerr.Reason)
	assert.Contains(t, store.deactivated, "alice@gmail.com")
	assert.False(t, store.creds["alice@gmail.com"].Active)

	// A later call finds the credential inactive
	_, err = m.EnsureValid(context.Background(), 1, "alice@gmail.com")
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ReasonNotRegistered, cerr.Reason)
}

func TestEnsureValidTransientRefreshFailure(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.UpsertCredential(context.Background(), storedCred(true)))
	m := newTestManager(store)

	m.tokenSource = func(ctx context.Context, t *oauth2.Token) oauth2.TokenSource {
		return stubTokenSource{err: errors.New("connection refused")}
	}

	_, err := m.EnsureValid(context.Background(), 1, "alice@gmail.com")
	require.Error(t, err)

	var cerr *Error
	assert.False(t, errors.As(err, &cerr), "transient failure must not be a credential error")
	assert.True(t, store.creds["alice@gmail.com"].Active, "transient failure must not deactivate")
}

func TestTokenExists(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store)

	ok, err := m.TokenExists(context.Background(), 1, "alice@gmail.com")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.UpsertCredential(context.Background(), storedCred(true)))
	ok, err = m.TokenExists(context.Background(), 1, "alice@gmail.com")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.DeactivateCredential(context.Background(), 1, "alice@gmail.com"))
	ok, err = m.TokenExists(context.Background(), 1, "alice@gmail.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMergeTokenKeepsStoredRefreshToken(t *testing.T) {
	stored := &models.OAuthToken{AccessToken: "a", RefreshToken: "keep-me", Scope: "mail"}

	merged := models.MergeToken(stored, models.OAuthToken{AccessToken: "b"})
	assert.Equal(t, "keep-me", merged.RefreshToken)
	assert.Equal(t, "mail", merged.Scope)

	merged = models.MergeToken(stored, models.OAuthToken{AccessToken: "b", RefreshToken: "new"})
	assert.Equal(t, "new", merged.RefreshToken)

	merged = models.MergeToken(nil, models.OAuthToken{AccessToken: "b"})
	assert.Empty(t, merged.RefreshToken)
}
