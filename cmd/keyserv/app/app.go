package app

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
	"hawton.dev/log4g"
)

func NewRootCommand() *cli.App {
	return &cli.App{
		Name:  "keyserv",
		Usage: "JSON Web Key Set signing and encryption key service",
		Commands: []*cli.Command{
			newServerCommand(),
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set the log level",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			switch strings.ToLower(c.String("log-level")) {
			case "debug":
				log4g.SetLogLevel(log4g.DEBUG)
			case "info":
				log4g.SetLogLevel(log4g.INFO)
			default:
				return fmt.Errorf("invalid log level: %s", c.String("log-level"))
			}

			return nil
		},
	}
}
