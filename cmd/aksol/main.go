package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:  "aksol",
		Usage: "AKSOL transfer panel CLI",
		Description: `A command-line tool for driving and debugging the AKSOL transfer panel.

Use this CLI to submit transfers and swaps, inspect transaction status,
and follow the panel's live activity stream.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			transferCommand(),
			swapCommand(),
			txCommand(),
			activityCommand(),
			balanceCommand(),
			priceCommand(),
			historyCommand(),
			streamCommand(),
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
