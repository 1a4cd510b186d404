package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliasmail/aliasmaild/pkg/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func catchAllAccount(address string) *models.MailAccount {
	return &models.MailAccount{
		OwnerID:  1,
		Address:  address,
		Kind:     models.KindIMAP,
		Active:   true,
		CatchAll: true,
		IMAPHost: "imap.corp.example",
		IMAPPort: 993,
		UseTLS:   true,
		Password: "secret",
	}
}

func TestFindActiveCatchAllByDomainNewestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := catchAllAccount("first@corp.example")
	require.NoError(t, db.CreateAccount(ctx, first))
	time.Sleep(5 * time.Millisecond)
	second := catchAllAccount("second@corp.example")
	require.NoError(t, db.CreateAccount(ctx, second))

	// A catch-all for another domain and an inactive one must not appear
	other := catchAllAccount("all@other.example")
	require.NoError(t, db.CreateAccount(ctx, other))
	inactive := catchAllAccount("off@corp.example")
	inactive.Active = false
	require.NoError(t, db.CreateAccount(ctx, inactive))

	found, err := db.FindActiveCatchAllByDomain(ctx, 1, "corp.example")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "second@corp.example", found[0].Address, "newest registration first")
	assert.Equal(t, "first@corp.example", found[1].Address)
}

func TestCreateAccountDuplicate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateAccount(ctx, catchAllAccount("bob@corp.example")))
	err := db.CreateAccount(ctx, catchAllAccount("bob@corp.example"))
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestUpsertCredentialLastWriteWins(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	cred := &models.OAuthCredential{
		OwnerID: 1,
		Address: "alice@gmail.com",
		OAuthToken: models.OAuthToken{
			AccessToken:  "first",
			RefreshToken: "refresh-1",
			Expiry:       time.Now().Add(time.Hour),
		},
		Active: true,
	}
	require.NoError(t, db.UpsertCredential(ctx, cred))

	cred.AccessToken = "second"
	require.NoError(t, db.UpsertCredential(ctx, cred))

	got, err := db.GetCredential(ctx, 1, "alice@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, "second", got.AccessToken)
	assert.Equal(t, "refresh-1", got.RefreshToken)
	assert.True(t, got.Active)

	require.NoError(t, db.DeactivateCredential(ctx, 1, "alice@gmail.com"))
	got, err = db.GetCredential(ctx, 1, "alice@gmail.com")
	require.NoError(t, err)
	assert.False(t, got.Active, "deactivation must keep the record")
	assert.Equal(t, "refresh-1", got.RefreshToken)
}

func TestGetCredentialNotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetCredential(context.Background(), 1, "missing@gmail.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAccessKeyRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	key := &models.AccessKey{OwnerID: 1, Platform: "netflix", Alias: "alice@corp.example", Secret: "s3cret", Active: true}
	require.NoError(t, db.CreateAccessKey(ctx, key))

	err := db.CreateAccessKey(ctx, &models.AccessKey{OwnerID: 2, Platform: "netflix", Alias: "alice@corp.example", Secret: "other", Active: true})
	assert.ErrorIs(t, err, ErrAlreadyExists, "one key per (platform, alias)")

	got, err := db.GetAccessKey(ctx, "netflix", "alice@corp.example")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.OwnerID)

	require.NoError(t, db.DeactivateAccessKey(ctx, 1, key.ID))
	got, err = db.GetAccessKey(ctx, "netflix", "alice@corp.example")
	require.NoError(t, err)
	assert.False(t, got.Active)
}
