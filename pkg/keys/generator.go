package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/kirill-gerasimenko-da/security-jwt/pkg/store"
)

const rsaKeySize = 2048

var (
	ErrUnsupportedAlgorithm = fmt.Errorf("unsupported algorithm")
)

// signingAlgorithms maps each supported signature algorithm to a
// generator for its raw key material.
var signingAlgorithms = map[jwa.SignatureAlgorithm]func() (interface{}, error){
	jwa.HS256: func() (interface{}, error) { return randomBytes(32) },
	jwa.HS384: func() (interface{}, error) { return randomBytes(48) },
	jwa.HS512: func() (interface{}, error) { return randomBytes(64) },
	jwa.RS256: generateRSA,
	jwa.RS384: generateRSA,
	jwa.RS512: generateRSA,
	jwa.PS256: generateRSA,
	jwa.PS384: generateRSA,
	jwa.PS512: generateRSA,
	jwa.ES256: func() (interface{}, error) { return ecdsa.GenerateKey(elliptic.P256(), rand.Reader) },
	jwa.ES384: func() (interface{}, error) { return ecdsa.GenerateKey(elliptic.P384(), rand.Reader) },
	jwa.ES512: func() (interface{}, error) { return ecdsa.GenerateKey(elliptic.P521(), rand.Reader) },
}

var encryptionAlgorithms = map[jwa.KeyEncryptionAlgorithm]func() (interface{}, error){
	jwa.RSA_OAEP:     generateRSA,
	jwa.RSA_OAEP_256: generateRSA,
	jwa.A128KW:       func() (interface{}, error) { return randomBytes(16) },
	jwa.A192KW:       func() (interface{}, error) { return randomBytes(24) },
	jwa.A256KW:       func() (interface{}, error) { return randomBytes(32) },
}

// SigningAlgorithms returns the supported signature algorithm names.
func SigningAlgorithms() []string {
	out := make([]string, 0, len(signingAlgorithms))
	for alg := range signingAlgorithms {
		out = append(out, alg.String())
	}
	return out
}

// EncryptionAlgorithms returns the supported key-wrap algorithm names.
func EncryptionAlgorithms() []string {
	out := make([]string, 0, len(encryptionAlgorithms))
	for alg := range encryptionAlgorithms {
		out = append(out, alg.String())
	}
	return out
}

// Generate creates a fresh private JWK for the given algorithm and use,
// stamped with a nanoid key ID.
func Generate(alg, use string) (jwk.Key, error) {
	var material interface{}
	var err error

	switch use {
	case store.UseSignature:
		gen, ok := signingAlgorithms[jwa.SignatureAlgorithm(alg)]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
		}
		material, err = gen()
	case store.UseEncryption:
		gen, ok := encryptionAlgorithms[jwa.KeyEncryptionAlgorithm(alg)]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
		}
		material, err = gen()
	default:
		return nil, fmt.Errorf("unknown key use: %s", use)
	}
	if err != nil {
		return nil, err
	}

	key, err := jwk.FromRaw(material)
	if err != nil {
		return nil, err
	}

	kid, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	if err := key.Set(jwk.KeyIDKey, kid); err != nil {
		return nil, err
	}
	if err := key.Set(jwk.KeyUsageKey, use); err != nil {
		return nil, err
	}
	if err := key.Set(jwk.AlgorithmKey, alg); err != nil {
		return nil, err
	}

	return key, nil
}

func generateRSA() (interface{}, error) {
	return rsa.GenerateKey(rand.Reader, rsaKeySize)
}

func randomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}
