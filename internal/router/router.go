package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"hawton.dev/log4g"

	v1 "github.com/kirill-gerasimenko-da/security-jwt/controllers/v1"
)

var (
	log         = log4g.Category("router")
	routeGroups map[string]func(g *gin.RouterGroup)
)

func init() {
	routeGroups = make(map[string]func(g *gin.RouterGroup))
	routeGroups["/.well-known"] = v1.WellKnownRoutes
	routeGroups["/v1"] = v1.Routes
}

func SetupRoutes(e *gin.Engine) {
	e.GET("/healthz", healthCheckHandler)
	e.GET("/ready", readyCheckHandler)

	for prefix, group := range routeGroups {
		log.Info("Loading route prefix: %s", prefix)
		group(e.Group(prefix))
	}
}

func healthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func readyCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
