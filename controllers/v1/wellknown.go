package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"hawton.dev/log4g"

	"github.com/kirill-gerasimenko-da/security-jwt/pkg/keys"
)

type OIDCConfig struct {
	Issuer                           string   `json:"issuer"`
	JwksUri                          string   `json:"jwks_uri"`
	IdTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
}

func WellKnownRoutes(g *gin.RouterGroup) {
	g.GET("/jwks.json", GetJWKS)
	g.GET("/openid-configuration", GetOIDCConfig)
}

// GetJWKS serves the public key set. Clients are expected to cache it
// and refresh on unknown kids. Before the first key has been generated
// there is nothing to serve, so the endpoint 404s rather than minting a
// key on a read path.
func GetJWKS(c *gin.Context) {
	set, err := service.PublicJWKS(c.Request.Context())
	if err != nil {
		log4g.Category("controllers/wellknown").Error("Error building JWKS: %s", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if set.Len() == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "JWKS does not exist yet"})
		return
	}

	c.JSON(http.StatusOK, set)
}

func GetOIDCConfig(c *gin.Context) {
	host := c.Request.Host
	config := OIDCConfig{
		Issuer:                           "https://" + host,
		JwksUri:                          "https://" + host + "/.well-known/jwks.json",
		IdTokenSigningAlgValuesSupported: keys.SigningAlgorithms(),
	}

	c.JSON(http.StatusOK, config)
}
