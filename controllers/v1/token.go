package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"hawton.dev/log4g"

	"github.com/kirill-gerasimenko-da/security-jwt/pkg/config"
)

type TokenRequest struct {
	Audience string                 `form:"audience" json:"audience" binding:"required"`
	Subject  string                 `form:"subject" json:"subject" binding:"required"`
	TTL      int                    `form:"ttl" json:"ttl"`
	Claims   map[string]interface{} `form:"claims" json:"claims"`
	Encrypt  bool                   `form:"encrypt" json:"encrypt"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type ValidateRequest struct {
	Token     string `form:"token" json:"token" binding:"required"`
	Audience  string `form:"audience" json:"audience"`
	Encrypted bool   `form:"encrypted" json:"encrypted"`
}

func PostToken(c *gin.Context) {
	treq := TokenRequest{}
	if err := c.ShouldBind(&treq); err != nil {
		log4g.Category("controllers/token").Error("Invalid request, missing field(s)")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if treq.TTL == 0 {
		treq.TTL = config.Cfg.Keys.TokenTTL
	}

	accessToken, err := provider.CreateToken(
		c.Request.Context(),
		config.Cfg.Keys.Issuer,
		treq.Audience,
		treq.Subject,
		treq.TTL,
		treq.Claims,
	)
	if err != nil {
		log4g.Category("controllers/token").Error("Error creating access token: %s", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if treq.Encrypt {
		accessToken, err = provider.EncryptToken(c.Request.Context(), accessToken)
		if err != nil {
			log4g.Category("controllers/token").Error("Error encrypting access token: %s", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: string(accessToken),
		ExpiresIn:   treq.TTL,
		TokenType:   "bearer",
	})
}

func PostValidateToken(c *gin.Context) {
	vreq := ValidateRequest{}
	if err := c.ShouldBind(&vreq); err != nil {
		log4g.Category("controllers/token").Error("Invalid request, missing field(s)")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	raw := []byte(vreq.Token)
	if vreq.Encrypted {
		var err error
		raw, err = provider.DecryptToken(c.Request.Context(), raw)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}
	}

	token, err := provider.ValidateToken(c.Request.Context(), raw, config.Cfg.Keys.Issuer, vreq.Audience)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
		return
	}

	claims, err := token.AsMap(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true, "claims": claims})
}
