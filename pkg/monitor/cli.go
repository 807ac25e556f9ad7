// Package monitor wires the console together: snapshot seed, push channel,
// state store, alert surfaces, renderer and the operator API.
package monitor

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kr/pretty"
	"github.com/urfave/cli/v2"

	"github.com/aegisfleet/console/pkg/config"
	"github.com/aegisfleet/console/pkg/fleet"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "monitor",
		Usage: "Live fleet monitoring console - tracks vehicles and surfaces safety alerts",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run an instance of the monitoring console",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "config",
						Value: "config.yml",
						Usage: "path to the console configuration file",
					},
					&cli.StringFlag{
						Name:  "listen",
						Usage: "listen target for the console web server (overrides config)",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}
					if c.String("listen") != "" {
						cfg.Server.Listen = c.String("listen")
					}

					console, err := NewConsole(cfg)
					if err != nil {
						return err
					}

					console.Run(context.Background())

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					console.Stop()

					return nil
				},
			},
			{
				Name:      "decode-event",
				Usage:     "decode a raw push-channel frame and dump the result",
				ArgsUsage: "<file>",
				Action: func(c *cli.Context) error {
					raw, err := os.ReadFile(c.Args().First())
					if err != nil {
						return err
					}

					message, err := fleet.DecodeChannelMessage(raw)
					if err != nil {
						return err
					}

					pretty.Println(message)

					return nil
				},
			},
		},
	}
}
