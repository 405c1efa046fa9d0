package cmd

import (
	"fmt"

	"moarnews/config"
	"moarnews/db"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func syncCmd() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Reconcile configured feeds into the database",
		Description: `Reads feeds.toml and upserts every configured feed into the
database, keyed by url. New feeds are created, existing ones get their
name and discussion flag updated. Feeds removed from the configuration
are left untouched.`,
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
				return err
			}

			log.WithFields(log.Fields{"count": len(cfg.Feeds)}).Info("Feeds synced")
			return nil
		},
	}
}
