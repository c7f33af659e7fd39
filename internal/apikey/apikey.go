// Package apikey provides opaque bearer-credential issuance and
// verification for the HTTP transport, grounded on the teacher's
// internal/platform/user package (its Service/Repository split and
// logging conventions) but adapted from password login to random-token
// API keys, since spec.md §1/§3 places authentication outside ledger
// semantics.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/netledger/netledger/internal/ledger"
	"github.com/netledger/netledger/pkg/logger"
)

var (
	ErrKeyNotFound = errors.New("api key not found")
	ErrKeyInactive = errors.New("api key is inactive")
	ErrInvalidName = errors.New("api key name must not be empty")
)

// tokenBytes is the amount of randomness behind an issued key. 32 bytes
// (256 bits) is far beyond what a lookup-indexed SHA-256 digest needs to
// resist brute force, so unlike password hashing this does not need a
// deliberately slow KDF such as bcrypt.
const tokenBytes = 32

// Issued is returned exactly once, at creation time: Token is the
// plaintext bearer credential the caller must store. It is never
// persisted or retrievable again.
type Issued struct {
	Key   *ledger.ApiKey
	Token string
}

// Service issues and verifies opaque API keys.
type Service struct {
	repo   ledger.ApiKeyRepository
	clock  ledger.Clock
	logger *logger.Logger
}

func NewService(repo ledger.ApiKeyRepository, clock ledger.Clock, log *logger.Logger) *Service {
	return &Service{repo: repo, clock: clock, logger: log.WithField("component", "apikey")}
}

// Create generates a new random key, persists its digest, and returns
// the plaintext token for one-time delivery to the caller.
func (s *Service) Create(ctx context.Context, name string, isAdmin bool) (*Issued, error) {
	if name == "" {
		return nil, ErrInvalidName
	}

	token, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("generating api key: %w", err)
	}

	key := &ledger.ApiKey{
		Guid:       uuid.New(),
		Name:       name,
		KeyHash:    digest(token),
		Active:     true,
		IsAdmin:    isAdmin,
		CreatedUtc: s.clock.Now(),
	}
	if err := s.repo.Create(ctx, key); err != nil {
		return nil, fmt.Errorf("creating api key: %w", err)
	}
	s.logger.Info("api key created", "key_guid", key.Guid, "name", name, "is_admin", isAdmin)

	return &Issued{Key: key, Token: token}, nil
}

// Verify looks up the key backing token and confirms it's active.
func (s *Service) Verify(ctx context.Context, token string) (*ledger.ApiKey, error) {
	key, err := s.repo.ReadByKeyHash(ctx, digest(token))
	if err != nil {
		return nil, fmt.Errorf("looking up api key: %w", err)
	}
	if key == nil {
		return nil, ErrKeyNotFound
	}
	if !key.Active {
		return nil, ErrKeyInactive
	}
	return key, nil
}

// Revoke deletes a key by guid; a revoked key's token immediately stops
// verifying since ReadByKeyHash can no longer find it.
func (s *Service) Revoke(ctx context.Context, guid uuid.UUID) error {
	if err := s.repo.Delete(ctx, guid); err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}
	s.logger.Info("api key revoked", "key_guid", guid)
	return nil
}

// EnsureAdminKey creates an admin key at the given guid if nothing is
// stored there yet, otherwise leaves the existing key untouched. guid is
// deterministic across restarts (derived by the caller from a fixed
// name) so bootstrap never mints a second admin key on redeploy.
func (s *Service) EnsureAdminKey(ctx context.Context, guid uuid.UUID, name string) (*Issued, bool, error) {
	existing, err := s.repo.ReadByGuid(ctx, guid)
	if err != nil {
		return nil, false, fmt.Errorf("checking for existing admin key: %w", err)
	}
	if existing != nil {
		return nil, false, nil
	}

	token, err := randomToken()
	if err != nil {
		return nil, false, fmt.Errorf("generating api key: %w", err)
	}

	key := &ledger.ApiKey{
		Guid:       guid,
		Name:       name,
		KeyHash:    digest(token),
		Active:     true,
		IsAdmin:    true,
		CreatedUtc: s.clock.Now(),
	}
	if err := s.repo.Create(ctx, key); err != nil {
		return nil, false, fmt.Errorf("creating admin api key: %w", err)
	}
	s.logger.Info("admin api key bootstrapped", "key_guid", key.Guid, "name", name)

	return &Issued{Key: key, Token: token}, true, nil
}

func randomToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// digest returns the SHA-256 hex digest used as the repository's lookup
// key. Tokens already carry 256 bits of entropy, so a deterministic
// digest gives the same brute-force resistance a slow password hash
// would, while still allowing indexed lookup by hash (a bcrypt hash
// embeds a random salt and cannot be looked up this way).
func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

