package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"moarnews/config"
	"moarnews/db"
	"moarnews/fetcher"
	"moarnews/server"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the moarnews aggregator",
		Description: `Starts the moarnews HTTP server and the background feed refresher.

Runs database migrations, reconciles the configured feeds into the
database, fetches all feeds immediately and then on the configured
interval, and serves the aggregated items over HTTP.`,
		Flags: []cli.Flag{
			databaseFlag(),
			configFlag(),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   3000,
				Usage:   "Port to listen on",
				EnvVars: []string{"MOARNEWS_PORT"},
			},
		},
		Action: func(ctx *cli.Context) error {
			// Malformed configuration is fatal, the process does not start
			cfg, err := config.Load(ctx.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log.WithFields(log.Fields{"count": len(cfg.Feeds)}).Info("Loaded feeds from configuration")

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

			feeds, err := store.ListFeeds()
			if err != nil {
				return err
			}
			log.WithFields(log.Fields{"feeds": server.FeedNames(feeds)}).Info("Database initialized")

			f := fetcher.New(store)

			bgCtx, cancel := context.WithCancel(ctx.Context)
			defer cancel()

			go func() {
				interval := time.Duration(cfg.RefreshInterval) * time.Minute
				fetcher.StartBackgroundRefresh(bgCtx, f, interval)
			}()

			app := server.Server(&server.ServerConfig{
				Store:   store,
				Fetcher: f,
			})

			// Graceful shutdown
			c := make(chan os.Signal, 1)
			signal.Notify(c, os.Interrupt)

			go func() {
				<-c
				fmt.Println("Gracefully shutting down...")
				cancel()
				app.ShutdownWithTimeout(60 * time.Second)
			}()

			log.WithFields(log.Fields{"port": ctx.Int("port")}).Info("Starting server")
			if err := app.Listen(fmt.Sprintf(":%d", ctx.Int("port"))); err != nil {
				return err
			}

			fmt.Println("Done!")
			return nil
		},
	}
}
