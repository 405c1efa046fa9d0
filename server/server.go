package server

import (
	"context"
	"time"

	"moarnews/db"
	"moarnews/fetcher"
	"moarnews/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// ItemsPerPage is the page size for item listings
const ItemsPerPage = 15

type ServerConfig struct {

	// The store to read feeds and items from
	Store *db.Store

	// The fetcher to trigger and inspect refreshes on
	Fetcher *fetcher.Fetcher
}

// FeedWithItems is one feed with its first page of items
type FeedWithItems struct {
	Feed    models.Feed   `json:"feed"`
	Items   []models.Item `json:"items"`
	HasMore bool          `json:"hasMore"`
}

// ItemsPage is a further page of items for one feed
type ItemsPage struct {
	Feed    models.Feed   `json:"feed"`
	Items   []models.Item `json:"items"`
	Offset  int           `json:"offset"`
	HasMore bool          `json:"hasMore"`
}

type RefreshStatus struct {
	Refreshing bool `json:"refreshing"`
}

// Returns a fiber.App instance to be used as the HTTP server for the
// aggregator
func Server(config *ServerConfig) *fiber.App {

	app := fiber.New()

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		// start timer
		start := time.Now()

		// next routes
		err := c.Next()

		// stop timer
		stop := time.Now()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"latency": stop.Sub(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())

	// All feeds with their first page of items
	app.Get("/", func(c *fiber.Ctx) error {
		feeds, err := config.Store.ListFeeds()
		if err != nil {
			log.WithFields(log.Fields{"error": err}).Error("Error listing feeds")
			return c.Status(500).SendString("Error listing feeds")
		}

		pages := make([]FeedWithItems, 0, len(feeds))
		for _, feed := range feeds {
			items, err := config.Store.ListItems(feed.Id, ItemsPerPage, 0)
			if err != nil {
				log.WithFields(log.Fields{"feed": feed.Name, "error": err}).Error("Error listing items")
				return c.Status(500).SendString("Error listing items")
			}
			total, err := config.Store.CountItems(feed.Id)
			if err != nil {
				log.WithFields(log.Fields{"feed": feed.Name, "error": err}).Error("Error counting items")
				return c.Status(500).SendString("Error counting items")
			}

			pages = append(pages, FeedWithItems{
				Feed:    feed,
				Items:   items,
				HasMore: total > ItemsPerPage,
			})
		}

		return c.JSON(pages)
	})

	// A further page of items for one feed
	app.Get("/feeds/:id/items", func(c *fiber.Ctx) error {
		feedId, err := c.ParamsInt("id")
		if err != nil {
			return c.Status(400).SendString("Invalid feed id")
		}
		offset := c.QueryInt("offset", 0)
		if offset < 0 {
			offset = 0
		}

		feed, err := config.Store.GetFeed(int64(feedId))
		if err != nil {
			log.WithFields(log.Fields{"feedId": feedId, "error": err}).Error("Error getting feed")
			return c.Status(500).SendString("Error getting feed")
		}
		if feed == nil {
			return c.Status(404).SendString("Feed not found")
		}

		items, err := config.Store.ListItems(feed.Id, ItemsPerPage, offset)
		if err != nil {
			log.WithFields(log.Fields{"feed": feed.Name, "error": err}).Error("Error listing items")
			return c.Status(500).SendString("Error listing items")
		}
		total, err := config.Store.CountItems(feed.Id)
		if err != nil {
			log.WithFields(log.Fields{"feed": feed.Name, "error": err}).Error("Error counting items")
			return c.Status(500).SendString("Error counting items")
		}

		return c.JSON(ItemsPage{
			Feed:    *feed,
			Items:   items,
			Offset:  offset + ItemsPerPage,
			HasMore: int64(offset+ItemsPerPage) < total,
		})
	})

	// Fire-and-forget refresh trigger; a running cycle absorbs the
	// request
	app.Post("/refresh", func(c *fiber.Ctx) error {
		go func() {
			if err := config.Fetcher.RefreshAll(context.Background()); err != nil {
				log.WithFields(log.Fields{"error": err}).Error("Refresh failed")
			}
		}()

		return c.JSON(RefreshStatus{Refreshing: true})
	})

	app.Get("/refresh/status", func(c *fiber.Ctx) error {
		return c.JSON(RefreshStatus{Refreshing: config.Fetcher.IsRefreshing()})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	return app
}

// FeedNames is a convenience for log output on startup
func FeedNames(feeds []models.Feed) []string {
	return lo.Map(feeds, func(feed models.Feed, _ int) string {
		return feed.Name
	})
}
