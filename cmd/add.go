package cmd

import (
	"errors"
	"fmt"
	"os"

	"moarnews/config"

	"github.com/cqroot/prompt"
	"github.com/urfave/cli/v2"
)

func addCmd() *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Add a feed to the configuration",
		Description: `Interactively adds a feed to feeds.toml.

Prompts for the feed's display name, url and whether the source carries
discussion links. Run the sync command afterwards (or restart serve) to
pick up the change.`,
		Flags: []cli.Flag{
			configFlag(),
		},
		Action: func(ctx *cli.Context) error {
			path := ctx.String("config")

			cfg, err := config.Load(path)
			if errors.Is(err, os.ErrNotExist) {
				cfg = &config.Config{RefreshInterval: config.DefaultRefreshInterval}
			} else if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			name, err := prompt.New().Ask("Name:").Input("My Feed")
			if err != nil {
				return err
			}

			url, err := prompt.New().Ask("Feed URL:").Input("https://example.com/rss")
			if err != nil {
				return err
			}

			hasDiscussion, err := prompt.New().Ask("Does the source have discussion links?").
				Choose([]string{"no", "yes"})
			if err != nil {
				return err
			}

			cfg.Feeds = append(cfg.Feeds, config.FeedConfig{
				Name:          name,
				Url:           url,
				HasDiscussion: hasDiscussion == "yes",
			})

			if err := config.Save(path, cfg); err != nil {
				return err
			}

			fmt.Println("Added feed...", name)
			return nil
		},
	}
}
