package store

import (
	"context"
	"errors"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

const (
	UseSignature  = "sig"
	UseEncryption = "enc"
)

var (
	ErrKeyNotFound = errors.New("key not found")
	ErrKeyRevoked  = errors.New("key revoked")
)

// Key is a managed JSON Web Key together with its lifecycle metadata.
// Material holds the private key; callers that publish keys must derive
// the public half themselves.
type Key struct {
	ID        string
	Use       string
	Algorithm string
	Material  jwk.Key
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

func (k *Key) Revoked() bool {
	return k.RevokedAt != nil
}

func (k *Key) Expired(now time.Time) bool {
	return now.After(k.ExpiresAt)
}

// Active reports whether the key may be used for new cryptographic
// operations.
func (k *Key) Active(now time.Time) bool {
	return !k.Revoked() && !k.Expired(now)
}

// Store persists managed keys. Implementations must keep revoked and
// expired keys until Clear so that historical material stays listable.
type Store interface {
	// Save persists a new key.
	Save(ctx context.Context, key *Key) error
	// Get returns the key with the given ID, revoked or not.
	Get(ctx context.Context, kid string) (*Key, error)
	// Current returns the newest non-revoked key for the given use.
	Current(ctx context.Context, use string) (*Key, error)
	// Last returns up to n keys for the given use, newest first,
	// including revoked and expired ones. n <= 0 means no limit.
	Last(ctx context.Context, use string, n int) ([]*Key, error)
	// Revoke marks the key with the given ID as revoked.
	Revoke(ctx context.Context, kid string) error
	// Clear removes all keys.
	Clear(ctx context.Context) error
}
