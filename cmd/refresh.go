package cmd

import (
	"fmt"

	"moarnews/config"
	"moarnews/db"
	"moarnews/fetcher"

	"github.com/urfave/cli/v2"
)

func refreshCmd() *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "Run one refresh cycle and exit",
		Description: `Fetches every configured feed once, upserts the parsed items into
the database and records each feed's fetch status. Useful from cron or
for testing a feed configuration without starting the server.`,
		Flags: []cli.Flag{
			databaseFlag(),
			configFlag(),
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := config.Load(ctx.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			database := ctx.String("database")
			if err := db.Migrate(database); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}

			store, err := db.NewStore(database)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.SyncFeeds(cfg.Feeds); err != nil {
				return fmt.Errorf("failed to sync feeds: %w", err)
			}

			return fetcher.New(store).RefreshAll(ctx.Context)
		},
	}
}
