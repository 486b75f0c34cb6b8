package app

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
	"hawton.dev/log4g"

	"github.com/kirill-gerasimenko-da/security-jwt/controllers/v1"
	"github.com/kirill-gerasimenko-da/security-jwt/internal/router"
	"github.com/kirill-gerasimenko-da/security-jwt/pkg/config"
	"github.com/kirill-gerasimenko-da/security-jwt/pkg/keys"
	"github.com/kirill-gerasimenko-da/security-jwt/pkg/server"
	"github.com/kirill-gerasimenko-da/security-jwt/pkg/store"
	"github.com/kirill-gerasimenko-da/security-jwt/pkg/tokens"
)

var log = log4g.Category("app")

func newServerCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Start the key service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to the configuration file",
				Value:   "config.yaml",
				EnvVars: []string{"CONFIG"},
			},
		},
		Action: func(c *cli.Context) error {
			log.Info("Starting key service")
			log.Info("config=%s", c.String("config"))

			log.Info("Loading configuration...")
			err := config.LoadConfig(c.String("config"))
			if err != nil {
				return err
			}
			if err := config.Cfg.Validate(); err != nil {
				return err
			}

			st, err := buildStore()
			if err != nil {
				return err
			}

			svc, err := keys.NewService(st, keys.Options{
				SigningAlgorithm:    config.Cfg.Keys.SigningAlgorithm,
				EncryptionAlgorithm: config.Cfg.Keys.EncryptionAlgorithm,
				RotationDays:        config.Cfg.Keys.RotationDays,
				HistorySize:         config.Cfg.Keys.HistorySize,
			})
			if err != nil {
				return err
			}

			log.Info("Generating initial credentials if needed")
			if err := svc.RotateIfNeeded(context.Background()); err != nil {
				return err
			}

			v1.Setup(svc, tokens.NewProvider(svc))

			log.Info("Configuring scheduled jobs")
			jobs := cron.New()
			_, err = jobs.AddFunc(config.Cfg.Keys.RotationCheck, func() {
				if err := svc.RotateIfNeeded(context.Background()); err != nil {
					log4g.Category("job/rotate").Error("Error rotating keys: %s", err.Error())
				}
			})
			if err != nil {
				return err
			}
			jobs.Start()
			defer jobs.Stop()

			log.Info("Building web server...")
			srvr := server.NewServer(router.SetupRoutes)

			log.Info("Building routes...")
			srvr.BuildRoutes()

			log.Info("Done with setup, starting web server...")
			return srvr.Start()
		},
	}
}

func buildStore() (store.Store, error) {
	if config.Cfg.Store.Type == "database" {
		log.Info("Connecting to database")
		return store.Connect(store.DBOptions{
			Driver:   config.Cfg.Store.Driver,
			Host:     config.Cfg.Store.Host,
			Port:     config.Cfg.Store.Port,
			User:     config.Cfg.Store.User,
			Password: config.Cfg.Store.Password,
			Database: config.Cfg.Store.Database,
			CACert:   config.Cfg.Store.CACert,
		})
	}

	log.Info("Using in-memory key store")
	return store.NewMemoryStore(), nil
}
