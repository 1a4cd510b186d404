package accounts

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliasmail/aliasmaild/internal/database"
)

func newTestService(t *testing.T) (*Service, *database.DB) {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	return NewService(db, slog.New(slog.DiscardHandler)), db
}

func register(t *testing.T, s *Service, address string) int64 {
	t.Helper()
	account, err := s.Register(context.Background(), RegisterInput{
		OwnerID:  1,
		Address:  address,
		Password: "secret",
		IMAPHost: "imap.corp.example",
	})
	require.NoError(t, err)
	return account.ID
}

func TestRegisterNormalizesAndDefaults(t *testing.T) {
	s, _ := newTestService(t)

	account, err := s.Register(context.Background(), RegisterInput{
		OwnerID:  1,
		Address:  "  Bob@Corp.Example ",
		Password: "secret",
		IMAPHost: " IMAP.Corp.Example ",
	})
	require.NoError(t, err)

	assert.Equal(t, "bob@corp.example", account.Address)
	assert.Equal(t, "imap.corp.example", account.IMAPHost)
	assert.Equal(t, 993, account.IMAPPort)
	assert.True(t, account.UseTLS)
	assert.True(t, account.Active)
	assert.False(t, account.CatchAll)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	s, _ := newTestService(t)
	register(t, s, "bob@corp.example")

	_, err := s.Register(context.Background(), RegisterInput{
		OwnerID:  1,
		Address:  "bob@corp.example",
		Password: "other",
		IMAPHost: "imap.corp.example",
	})
	assert.ErrorIs(t, err, database.ErrAlreadyExists)
}

func TestRegisterValidation(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, RegisterInput{OwnerID: 1, Address: "nodomain", Password: "x", IMAPHost: "h"})
	assert.Error(t, err)

	_, err = s.Register(ctx, RegisterInput{OwnerID: 1, Address: "a@b.example", Password: "", IMAPHost: "h"})
	assert.Error(t, err)

	_, err = s.Register(ctx, RegisterInput{OwnerID: 1, Address: "a@b.example", Password: "x", IMAPHost: ""})
	assert.Error(t, err)

	_, err = s.Register(ctx, RegisterInput{OwnerID: 1, Address: "a@b.example", Password: "x", IMAPHost: "h", IMAPPort: 70000})
	assert.Error(t, err)
}

func TestDeactivateClearsCatchAll(t *testing.T) {
	s, _ := newTestService(t)
	id := register(t, s, "bob@corp.example")

	_, err := s.SetCatchAll(context.Background(), 1, id, true)
	require.NoError(t, err)

	account, err := s.SetActive(context.Background(), 1, id, false)
	require.NoError(t, err)
	assert.False(t, account.Active)
	assert.False(t, account.CatchAll, "deactivation must clear catch-all")
}

func TestCatchAllRequiresActive(t *testing.T) {
	s, _ := newTestService(t)
	id := register(t, s, "bob@corp.example")

	_, err := s.SetActive(context.Background(), 1, id, false)
	require.NoError(t, err)

	_, err = s.SetCatchAll(context.Background(), 1, id, true)
	assert.ErrorIs(t, err, ErrCatchAllInactive)
}

func TestUpdateCatchAllWithActiveChange(t *testing.T) {
	s, _ := newTestService(t)
	id := register(t, s, "bob@corp.example")

	// Deactivating and setting catch-all in one update is rejected
	active := false
	catchAll := true
	_, err := s.Update(context.Background(), 1, id, UpdateInput{Active: &active, CatchAll: &catchAll})
	assert.ErrorIs(t, err, ErrCatchAllInactive)

	// Activating and setting catch-all together works
	active = true
	account, err := s.Update(context.Background(), 1, id, UpdateInput{Active: &active, CatchAll: &catchAll})
	require.NoError(t, err)
	assert.True(t, account.CatchAll)
}

func TestDeleteIsOwnerScoped(t *testing.T) {
	s, _ := newTestService(t)
	id := register(t, s, "bob@corp.example")

	err := s.Delete(context.Background(), 2, id)
	assert.True(t, NotFound(err), "other owners must not delete the account")

	require.NoError(t, s.Delete(context.Background(), 1, id))

	list, err := s.List(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, list)
}
