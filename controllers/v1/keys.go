package v1

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"hawton.dev/log4g"

	"github.com/kirill-gerasimenko-da/security-jwt/pkg/keys"
	"github.com/kirill-gerasimenko-da/security-jwt/pkg/store"
	"github.com/kirill-gerasimenko-da/security-jwt/pkg/tokens"
)

var (
	service  *keys.Service
	provider *tokens.Provider
)

// Setup wires the handlers to the key service and token provider. Must
// be called before the routes are registered.
func Setup(ks *keys.Service, p *tokens.Provider) {
	service = ks
	provider = p
}

func Routes(g *gin.RouterGroup) {
	g.GET("/keys", GetKeys)
	g.GET("/keys/current", GetCurrentKey)
	g.POST("/keys/rotate", PostRotateKeys)
	g.DELETE("/keys/:kid", DeleteKey)
	g.POST("/token", PostToken)
	g.POST("/token/validate", PostValidateToken)
}

type KeyResponse struct {
	KeyID     string     `json:"kid"`
	Algorithm string     `json:"alg"`
	Use       string     `json:"use"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

func keyResponse(k *store.Key) KeyResponse {
	status := "active"
	switch {
	case k.Revoked():
		status = "revoked"
	case k.Expired(time.Now().UTC()):
		status = "expired"
	}

	return KeyResponse{
		KeyID:     k.ID,
		Algorithm: k.Algorithm,
		Use:       k.Use,
		Status:    status,
		CreatedAt: k.CreatedAt,
		ExpiresAt: k.ExpiresAt,
		RevokedAt: k.RevokedAt,
	}
}

// GetKeys lists key history for both uses, newest first. Private
// material is never included.
func GetKeys(c *gin.Context) {
	var out []KeyResponse
	for _, use := range []string{store.UseSignature, store.UseEncryption} {
		list, err := service.LastCredentials(c.Request.Context(), use, 0)
		if err != nil {
			log4g.Category("controllers/keys").Error("Error listing keys: %s", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		for _, k := range list {
			out = append(out, keyResponse(k))
		}
	}

	c.JSON(http.StatusOK, gin.H{"keys": out})
}

func GetCurrentKey(c *gin.Context) {
	use := c.DefaultQuery("use", store.UseSignature)

	var k *store.Key
	var err error
	switch use {
	case store.UseSignature:
		k, err = service.CurrentSigningCredentials(c.Request.Context())
	case store.UseEncryption:
		k, err = service.CurrentEncryptingCredentials(c.Request.Context())
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid use, expected sig or enc"})
		return
	}
	if err != nil {
		log4g.Category("controllers/keys").Error("Error fetching current key: %s", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, keyResponse(k))
}

func PostRotateKeys(c *gin.Context) {
	use := c.DefaultQuery("use", store.UseSignature)
	if use != store.UseSignature && use != store.UseEncryption {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid use, expected sig or enc"})
		return
	}

	k, err := service.Rotate(c.Request.Context(), use)
	if err != nil {
		log4g.Category("controllers/keys").Error("Error rotating keys: %s", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, keyResponse(k))
}

func DeleteKey(c *gin.Context) {
	err := service.Revoke(c.Request.Context(), c.Param("kid"))
	switch {
	case errors.Is(err, store.ErrKeyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
	case errors.Is(err, store.ErrKeyRevoked):
		c.JSON(http.StatusConflict, gin.H{"error": "key already revoked"})
	case err != nil:
		log4g.Category("controllers/keys").Error("Error revoking key: %s", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.Status(http.StatusNoContent)
	}
}
