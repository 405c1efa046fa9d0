package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "moarnews",
		Usage: "An RSS feed aggregator",
		Description: `An RSS feed aggregator with a web API.

		Moarnews periodically pulls the feeds listed in feeds.toml,
		stores deduplicated articles in an SQLite database and serves
		them freshest-first over HTTP, including a best-effort
		discussion link for sources that have one (Hacker News,
		Lobste.rs, feeds with a <comments> element).

		Flags can generally be set via environment variables, e.g.:

		--database => MOARNEWS_DATABASE=moarnews.db
		--config => MOARNEWS_CONFIG=feeds.toml
		`,
		Commands: []*cli.Command{
			serveCmd(),
			migrateCmd(),
			rollbackCmd(),
			syncCmd(),
			refreshCmd(),
			addCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func databaseFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "database",
		Aliases: []string{"d"},
		Value:   "moarnews.db",
		Usage:   "SQLite database file location",
		EnvVars: []string{"MOARNEWS_DATABASE"},
	}
}

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   "feeds.toml",
		Usage:   "Path to feeds configuration file",
		EnvVars: []string{"MOARNEWS_CONFIG"},
	}
}
