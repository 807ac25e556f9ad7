package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/aegisfleet/console/pkg/monitor"
	"github.com/aegisfleet/console/pkg/util"

	_ "time/tzdata"
)

func main() {
	if util.Env("AEGIS_LOG_FORMAT", "TEXT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if util.Env("AEGIS_DEBUG", "NO") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	app := &cli.App{
		Name:        "console",
		Description: "Aegis fleet-safety operations console - live vehicle tracking and driver alerting",

		Commands: []*cli.Command{
			monitor.RegisterCLI(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
