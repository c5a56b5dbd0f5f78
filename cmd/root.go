package cmd

import (
	"github.com/urfave/cli/v2"
)

var version = "dev"

func App() *cli.App {
	return &cli.App{
		Name:    "printrelay",
		Version: version,
		Usage:   "Asynchronous print-job broker: accept jobs over HTTP, relay them to workers near the printers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
				EnvVars: []string{"PRINTRELAY_CONFIG_PATH"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"PRINTRELAY_LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			serverCmd(),
			workerCmd(),
			submitCmd(),
		},
	}
}
