// Package accesskey verifies the public (alias, platform, key) triples
// of the unified endpoint and resolves them to an owner. It sits in
// front of provider resolution and must fail without revealing whether
// the alias, the platform or the key was wrong.
package accesskey

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/aliasmail/aliasmaild/internal/database"
	"github.com/aliasmail/aliasmaild/pkg/models"
)

// ErrInvalid is the single failure for every verification miss: unknown
// triple, inactive key or wrong secret.
var ErrInvalid = errors.New("invalid access key")

// Store is the durable access key store.
type Store interface {
	GetAccessKey(ctx context.Context, platform, alias string) (*models.AccessKey, error)
	CreateAccessKey(ctx context.Context, key *models.AccessKey) error
	GetAccessKeysByOwner(ctx context.Context, ownerID int64) ([]*models.AccessKey, error)
	DeactivateAccessKey(ctx context.Context, ownerID, id int64) error
}

// Service verifies and issues access keys.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates an access key service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger.With("component", "accesskey")}
}

// dummySecret keeps the comparison cost flat when no key exists.
const dummySecret = "00000000-0000-0000-0000-000000000000"

// ResolveOwner verifies the triple and returns the owning identity. The
// secret comparison is constant-time, and an unknown triple burns the
// same comparison against a dummy secret.
func (s *Service) ResolveOwner(ctx context.Context, alias, platform, secret string) (int64, error) {
	alias = strings.ToLower(strings.TrimSpace(alias))
	platform = strings.ToLower(strings.TrimSpace(platform))

	key, err := s.store.GetAccessKey(ctx, platform, alias)
	if errors.Is(err, database.ErrNotFound) {
		subtle.ConstantTimeCompare([]byte(dummySecret), []byte(secret))
		return 0, ErrInvalid
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up access key: %w", err)
	}

	match := subtle.ConstantTimeCompare([]byte(key.Secret), []byte(secret)) == 1
	if !match || !key.Active {
		return 0, ErrInvalid
	}

	return key.OwnerID, nil
}

// Issue creates a new key for an (alias, platform) pair. The secret is
// generated, never caller-supplied.
func (s *Service) Issue(ctx context.Context, ownerID int64, alias, platform string) (*models.AccessKey, error) {
	local, domain, err := models.SplitAddress(alias)
	if err != nil {
		return nil, fmt.Errorf("invalid alias: %w", err)
	}
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "" {
		return nil, errors.New("platform is required")
	}

	key := &models.AccessKey{
		OwnerID:  ownerID,
		Platform: platform,
		Alias:    local + "@" + domain,
		Secret:   uuid.NewString(),
		Active:   true,
	}
	if err := s.store.CreateAccessKey(ctx, key); err != nil {
		return nil, err
	}

	s.logger.Info("access key issued", "owner_id", ownerID, "alias", key.Alias, "platform", platform)
	return key, nil
}

// List returns the owner's keys, newest first.
func (s *Service) List(ctx context.Context, ownerID int64) ([]*models.AccessKey, error) {
	return s.store.GetAccessKeysByOwner(ctx, ownerID)
}

// Revoke deactivates an owner's key.
func (s *Service) Revoke(ctx context.Context, ownerID, id int64) error {
	return s.store.DeactivateAccessKey(ctx, ownerID, id)
}
