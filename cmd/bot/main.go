package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.NewApp()
	app.Name = "community-bot"
	app.Usage = "Support tickets and engagement levels for a Discord community"
	app.Action = runServe
	app.Commands = []*cli.Command{
		{
			Action:      runServe,
			Name:        "serve",
			Usage:       "Connect to the gateway and serve the HTTP API",
			Category:    "Bot",
			Description: `Runs ticket handling, the engagement ledger and reward resolution until interrupted.`,
		},
		{
			Action:      runRegisterCommands,
			Name:        "register-commands",
			Usage:       "Overwrite the guild's slash commands",
			Category:    "Bot",
			Description: `Registers panel, rank, leaderboard and roles for GUILD_ID using CLIENT_ID.`,
		},
		{
			Action:   runIssueToken,
			Name:     "issue-token",
			Usage:    "Mint a bearer token for the dashboard API",
			Category: "API",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "subject", Usage: "who the token is for", Required: true},
				&cli.StringFlag{Name: "scope", Usage: "read or admin", Value: "read"},
			},
		},
		{
			Action:   runMigrate,
			Name:     "migrate",
			Usage:    "Apply SQL migrations to the archive database",
			Category: "Database",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "dir", Usage: "migrations directory (defaults to POSTGRES_MIGRATIONS_DIR)"},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
