package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwe"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/kirill-gerasimenko-da/security-jwt/pkg/keys"
	"github.com/kirill-gerasimenko-da/security-jwt/pkg/store"
)

var (
	ErrNoKeys       = fmt.Errorf("no keys available")
	ErrInvalidToken = fmt.Errorf("invalid token")
)

// Provider issues and validates JWTs using the credentials managed by a
// key service.
type Provider struct {
	keys *keys.Service

	// ContentEncryption is the "enc" used when wrapping tokens.
	ContentEncryption jwa.ContentEncryptionAlgorithm
}

func NewProvider(ks *keys.Service) *Provider {
	return &Provider{
		keys:              ks,
		ContentEncryption: jwa.A256GCM,
	}
}

// CreateToken signs a new JWT with the current signing credentials. The
// signed token carries the key ID so verifiers can match it against the
// published JWKS.
func (p *Provider) CreateToken(ctx context.Context, issuer, audience, subject string, ttl int, claims map[string]interface{}) ([]byte, error) {
	cred, err := p.keys.CurrentSigningCredentials(ctx)
	if err != nil {
		return nil, err
	}

	token := jwt.New()
	token.Set(jwt.IssuerKey, issuer)
	token.Set(jwt.AudienceKey, audience)
	token.Set(jwt.SubjectKey, subject)
	token.Set(jwt.JwtIDKey, uuid.NewString())
	token.Set(jwt.IssuedAtKey, time.Now())
	token.Set(jwt.ExpirationKey, time.Now().Add(time.Duration(ttl)*time.Second).Unix())
	for k, v := range claims {
		token.Set(k, v)
	}

	return jwt.Sign(token, jwt.WithKey(cred.Material.Algorithm(), cred.Material))
}

// ValidateToken verifies the signature against the service's
// verification set and validates the standard time claims. Empty issuer
// or audience skips that check.
func (p *Provider) ValidateToken(ctx context.Context, raw []byte, issuer, audience string) (jwt.Token, error) {
	set, err := p.keys.VerificationSet(ctx)
	if err != nil {
		return nil, err
	}
	if set.Len() == 0 {
		return nil, ErrNoKeys
	}

	opts := []jwt.ParseOption{
		jwt.WithKeySet(set),
		jwt.WithValidate(true),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	token, err := jwt.Parse(raw, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}
	return token, nil
}

// EncryptToken wraps an already signed token in a JWE using the current
// encrypting credentials.
func (p *Provider) EncryptToken(ctx context.Context, signed []byte) ([]byte, error) {
	cred, err := p.keys.CurrentEncryptingCredentials(ctx)
	if err != nil {
		return nil, err
	}

	encKey := cred.Material
	if encKey.KeyType() != jwa.OctetSeq {
		if encKey, err = jwk.PublicKeyOf(encKey); err != nil {
			return nil, err
		}
	}

	return jwe.Encrypt(signed,
		jwe.WithKey(jwa.KeyEncryptionAlgorithm(cred.Algorithm), encKey),
		jwe.WithContentEncryption(p.ContentEncryption),
	)
}

// DecryptToken unwraps a JWE produced by EncryptToken, trying each
// non-revoked encrypting key newest first.
func (p *Provider) DecryptToken(ctx context.Context, encrypted []byte) ([]byte, error) {
	creds, err := p.keys.LastCredentials(ctx, store.UseEncryption, 0)
	if err != nil {
		return nil, err
	}

	for _, cred := range creds {
		if cred.Revoked() {
			continue
		}
		signed, err := jwe.Decrypt(encrypted,
			jwe.WithKey(jwa.KeyEncryptionAlgorithm(cred.Algorithm), cred.Material),
		)
		if err == nil {
			return signed, nil
		}
	}
	return nil, errors.New("no encrypting key could decrypt the token")
}
