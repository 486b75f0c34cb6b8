package v1

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirill-gerasimenko-da/security-jwt/pkg/keys"
	"github.com/kirill-gerasimenko-da/security-jwt/pkg/store"
	"github.com/kirill-gerasimenko-da/security-jwt/pkg/tokens"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestRouter(t *testing.T, opts keys.Options) *gin.Engine {
	t.Helper()

	svc, err := keys.NewService(store.NewMemoryStore(), opts)
	require.NoError(t, err)
	Setup(svc, tokens.NewProvider(svc))

	e := gin.New()
	WellKnownRoutes(e.Group("/.well-known"))
	Routes(e.Group("/v1"))
	return e
}

func doRequest(e *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func TestGetJWKSBeforeFirstKey(t *testing.T) {
	e := newTestRouter(t, keys.Options{})

	w := doRequest(e, http.MethodGet, "/.well-known/jwks.json", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetJWKSAfterRotation(t *testing.T) {
	e := newTestRouter(t, keys.Options{})

	w := doRequest(e, http.MethodPost, "/v1/keys/rotate", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var rotated KeyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rotated))
	assert.Equal(t, "active", rotated.Status)
	assert.Equal(t, store.UseSignature, rotated.Use)

	w = doRequest(e, http.MethodGet, "/.well-known/jwks.json", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var jwks struct {
		Keys []map[string]interface{} `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &jwks))
	require.Len(t, jwks.Keys, 1)

	key := jwks.Keys[0]
	assert.Equal(t, "RSA", key["kty"])
	assert.Equal(t, "sig", key["use"])
	assert.Equal(t, "RS256", key["alg"])
	assert.Equal(t, rotated.KeyID, key["kid"])
	assert.NotEmpty(t, key["n"])
	assert.NotEmpty(t, key["e"])
	assert.NotContains(t, key, "d")
}

func TestGetOIDCConfig(t *testing.T) {
	e := newTestRouter(t, keys.Options{})

	w := doRequest(e, http.MethodGet, "/.well-known/openid-configuration", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var cfg OIDCConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	assert.Contains(t, cfg.JwksUri, "/.well-known/jwks.json")
	assert.Contains(t, cfg.IdTokenSigningAlgValuesSupported, "RS256")
}

func TestGetCurrentKey(t *testing.T) {
	e := newTestRouter(t, keys.Options{})

	w := doRequest(e, http.MethodGet, "/v1/keys/current", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var key KeyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &key))
	assert.Equal(t, store.UseSignature, key.Use)
	assert.Equal(t, "active", key.Status)

	w = doRequest(e, http.MethodGet, "/v1/keys/current?use=enc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &key))
	assert.Equal(t, store.UseEncryption, key.Use)

	w = doRequest(e, http.MethodGet, "/v1/keys/current?use=mac", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetKeysListsHistory(t *testing.T) {
	e := newTestRouter(t, keys.Options{})

	for i := 0; i < 2; i++ {
		w := doRequest(e, http.MethodPost, "/v1/keys/rotate", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := doRequest(e, http.MethodGet, "/v1/keys", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Keys []KeyResponse `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Keys, 2)
}

func TestRotateInvalidUse(t *testing.T) {
	e := newTestRouter(t, keys.Options{})

	w := doRequest(e, http.MethodPost, "/v1/keys/rotate?use=mac", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteKey(t *testing.T) {
	e := newTestRouter(t, keys.Options{})

	w := doRequest(e, http.MethodPost, "/v1/keys/rotate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rotated KeyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rotated))

	w = doRequest(e, http.MethodDelete, "/v1/keys/"+rotated.KeyID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// Revoked keys disappear from the JWKS.
	w = doRequest(e, http.MethodGet, "/.well-known/jwks.json", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(e, http.MethodDelete, "/v1/keys/"+rotated.KeyID, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(e, http.MethodDelete, "/v1/keys/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTokenIssueAndValidate(t *testing.T) {
	e := newTestRouter(t, keys.Options{})

	w := doRequest(e, http.MethodPost, "/v1/token", map[string]interface{}{
		"audience": "api",
		"subject":  "user123",
		"ttl":      300,
		"claims":   map[string]interface{}{"roles": []string{"admin"}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var tr TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tr))
	assert.NotEmpty(t, tr.AccessToken)
	assert.Equal(t, "bearer", tr.TokenType)
	assert.Equal(t, 300, tr.ExpiresIn)

	w = doRequest(e, http.MethodPost, "/v1/token/validate", map[string]interface{}{
		"token":    tr.AccessToken,
		"audience": "api",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var vr struct {
		Valid  bool                   `json:"valid"`
		Claims map[string]interface{} `json:"claims"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vr))
	assert.True(t, vr.Valid)
	assert.Equal(t, "user123", vr.Claims["sub"])
}

func TestTokenValidateRejectsGarbage(t *testing.T) {
	e := newTestRouter(t, keys.Options{})

	// Prime a key so validation fails on the token, not on an empty set.
	w := doRequest(e, http.MethodPost, "/v1/keys/rotate", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(e, http.MethodPost, "/v1/token/validate", map[string]interface{}{
		"token": "not.a.jwt",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTokenMissingFields(t *testing.T) {
	e := newTestRouter(t, keys.Options{})

	w := doRequest(e, http.MethodPost, "/v1/token", map[string]interface{}{
		"audience": "api",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEncryptedTokenRoundTripOverHTTP(t *testing.T) {
	e := newTestRouter(t, keys.Options{EncryptionAlgorithm: "A256KW"})

	w := doRequest(e, http.MethodPost, "/v1/token", map[string]interface{}{
		"audience": "api",
		"subject":  "user123",
		"encrypt":  true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var tr TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tr))

	w = doRequest(e, http.MethodPost, "/v1/token/validate", map[string]interface{}{
		"token":     tr.AccessToken,
		"audience":  "api",
		"encrypted": true,
	})
	require.Equal(t, http.StatusOK, w.Code)
}
