package keys

import (
	"context"
	"errors"
	"sync"
	"time"

	"dario.cat/mergo"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"hawton.dev/log4g"

	"github.com/kirill-gerasimenko-da/security-jwt/pkg/store"
)

var log = log4g.Category("keys")

// Options control rotation policy and the algorithms used for newly
// generated credentials.
type Options struct {
	SigningAlgorithm    string
	EncryptionAlgorithm string
	RotationDays        int
	HistorySize         int
}

var DefaultOptions = Options{
	SigningAlgorithm:    jwa.RS256.String(),
	EncryptionAlgorithm: jwa.RSA_OAEP_256.String(),
	RotationDays:        90,
	HistorySize:         5,
}

// Service manages signing and encrypting credentials on top of a key
// store: lazily generating the current key, rotating it when it ages
// past the rotation window, and exposing the public key set.
type Service struct {
	store store.Store
	opts  Options

	// Guards the check-then-generate path so concurrent callers
	// cannot both decide a new key is needed.
	mu sync.Mutex
}

func NewService(st store.Store, opts Options) (*Service, error) {
	if st == nil {
		return nil, errors.New("nil store")
	}
	if err := mergo.Merge(&opts, DefaultOptions); err != nil {
		return nil, err
	}
	if _, ok := signingAlgorithms[jwa.SignatureAlgorithm(opts.SigningAlgorithm)]; !ok {
		return nil, ErrUnsupportedAlgorithm
	}
	if _, ok := encryptionAlgorithms[jwa.KeyEncryptionAlgorithm(opts.EncryptionAlgorithm)]; !ok {
		return nil, ErrUnsupportedAlgorithm
	}

	return &Service{store: st, opts: opts}, nil
}

func (s *Service) Options() Options {
	return s.opts
}

// CurrentSigningCredentials returns the key new tokens must be signed
// with, generating one when none exists or the current one has aged
// out.
func (s *Service) CurrentSigningCredentials(ctx context.Context) (*store.Key, error) {
	return s.current(ctx, store.UseSignature, s.opts.SigningAlgorithm)
}

// CurrentEncryptingCredentials returns the key new tokens must be
// encrypted with, generating one when needed.
func (s *Service) CurrentEncryptingCredentials(ctx context.Context) (*store.Key, error) {
	return s.current(ctx, store.UseEncryption, s.opts.EncryptionAlgorithm)
}

func (s *Service) current(ctx context.Context, use, alg string) (*store.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, err := s.store.Current(ctx, use)
	if err == nil && key.Active(time.Now().UTC()) && key.Algorithm == alg {
		return key, nil
	}
	if err != nil && !errors.Is(err, store.ErrKeyNotFound) {
		return nil, err
	}

	return s.generate(ctx, use, alg)
}

// Rotate forces a new current key for the given use. The previous key
// stays in the store so older tokens remain verifiable.
func (s *Service) Rotate(ctx context.Context, use string) (*store.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch use {
	case store.UseSignature:
		return s.generate(ctx, use, s.opts.SigningAlgorithm)
	case store.UseEncryption:
		return s.generate(ctx, use, s.opts.EncryptionAlgorithm)
	}
	return nil, errors.New("unknown key use: " + use)
}

// GenerateCredentials creates and persists a key for an explicit
// algorithm, independent of the configured defaults.
func (s *Service) GenerateCredentials(ctx context.Context, alg, use string) (*store.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.generate(ctx, use, alg)
}

func (s *Service) generate(ctx context.Context, use, alg string) (*store.Key, error) {
	material, err := Generate(alg, use)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	key := &store.Key{
		ID:        material.KeyID(),
		Use:       use,
		Algorithm: alg,
		Material:  material,
		CreatedAt: now,
		ExpiresAt: now.AddDate(0, 0, s.opts.RotationDays),
	}
	if err := s.store.Save(ctx, key); err != nil {
		return nil, err
	}

	log.Debug("generated new %s key %s (%s), expires %s", use, key.ID, alg, key.ExpiresAt)
	return key, nil
}

// RotateIfNeeded refreshes the current signing and encrypting keys when
// they have expired. It is intended to be driven by a scheduler.
func (s *Service) RotateIfNeeded(ctx context.Context) error {
	if _, err := s.CurrentSigningCredentials(ctx); err != nil {
		return err
	}
	_, err := s.CurrentEncryptingCredentials(ctx)
	return err
}

// LastCredentials lists up to n keys for the given use, newest first,
// including revoked and expired ones.
func (s *Service) LastCredentials(ctx context.Context, use string, n int) ([]*store.Key, error) {
	return s.store.Last(ctx, use, n)
}

// GetKey returns a single key by ID.
func (s *Service) GetKey(ctx context.Context, kid string) (*store.Key, error) {
	return s.store.Get(ctx, kid)
}

// Revoke marks a key as revoked. Revoked keys are removed from the
// public JWKS and never selected as current again.
func (s *Service) Revoke(ctx context.Context, kid string) error {
	return s.store.Revoke(ctx, kid)
}

// PublicJWKS returns the publishable key set: the public halves of all
// non-revoked asymmetric keys, newest first. Symmetric keys are never
// published.
func (s *Service) PublicJWKS(ctx context.Context) (jwk.Set, error) {
	set := jwk.NewSet()
	for _, use := range []string{store.UseSignature, store.UseEncryption} {
		keys, err := s.store.Last(ctx, use, s.opts.HistorySize)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if k.Revoked() || k.Material.KeyType() == jwa.OctetSeq {
				continue
			}
			pub, err := jwk.PublicKeyOf(k.Material)
			if err != nil {
				return nil, err
			}
			if err := set.AddKey(pub); err != nil {
				return nil, err
			}
		}
	}
	return set, nil
}

// VerificationSet returns the key set used to verify locally issued
// tokens. Unlike PublicJWKS it includes symmetric keys, so it must
// never be served to clients.
func (s *Service) VerificationSet(ctx context.Context) (jwk.Set, error) {
	set := jwk.NewSet()
	keys, err := s.store.Last(ctx, store.UseSignature, s.opts.HistorySize)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if k.Revoked() {
			continue
		}
		vk := k.Material
		if vk.KeyType() != jwa.OctetSeq {
			if vk, err = jwk.PublicKeyOf(vk); err != nil {
				return nil, err
			}
		}
		if err := set.AddKey(vk); err != nil {
			return nil, err
		}
	}
	return set, nil
}
