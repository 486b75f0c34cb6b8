package main

import (
	"os"

	"github.com/common-nighthawk/go-figure"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"hawton.dev/log4g"

	"github.com/kirill-gerasimenko-da/security-jwt/cmd/keyserv/app"
	"github.com/kirill-gerasimenko-da/security-jwt/pkg/utils"
)

var log = log4g.Category("main")

func main() {
	intro := figure.NewFigure("keyserv", "", false).Slicify()
	for i := 0; i < len(intro); i++ {
		log.Info(intro[i])
	}

	log.Info("Checking for .env, loading if exists")
	if _, err := os.Stat(".env"); err == nil {
		log.Info("Found, loading")
		if err := godotenv.Load(); err != nil {
			log.Error("Error loading .env file: " + err.Error())
		}
	}

	if utils.Getenv("APP_ENV", "dev") == "production" {
		log.Info("Setting gin to Release Mode")
		gin.SetMode(gin.ReleaseMode)
	}

	if err := app.NewRootCommand().Run(os.Args); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}
