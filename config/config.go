package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// DefaultRefreshInterval is the fallback refresh period in minutes
const DefaultRefreshInterval = 15

// FeedConfig represents a single [[feeds]] entry
type FeedConfig struct {
	Name          string `toml:"name"`
	Url           string `toml:"url"`
	HasDiscussion bool   `toml:"has_discussion,omitempty"`
}

// Config represents the top-level feeds.toml configuration
type Config struct {
	// Refresh interval in minutes
	RefreshInterval int          `toml:"refresh_interval,omitempty"`
	Feeds           []FeedConfig `toml:"feeds"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return Parse(string(data))
}

// Parse decodes a TOML document into a Config. Split out from Load so
// tests can feed it strings directly.
func Parse(content string) (*Config, error) {
	config := Config{
		RefreshInterval: DefaultRefreshInterval,
	}
	if err := toml.Unmarshal([]byte(content), &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Save writes the configuration back to disk, used by the add command
func Save(path string, config *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("error encoding config file: %w", err)
	}
	return nil
}

func validate(config *Config) error {
	if config.RefreshInterval < 1 {
		return fmt.Errorf("refresh_interval must be at least 1 minute, got %d", config.RefreshInterval)
	}

	seen := map[string]bool{}
	for i, feed := range config.Feeds {
		if feed.Name == "" {
			return fmt.Errorf("feed %d has no name", i)
		}
		if feed.Url == "" {
			return fmt.Errorf("feed %q has no url", feed.Name)
		}
		if seen[feed.Url] {
			return fmt.Errorf("duplicate feed url %q", feed.Url)
		}
		seen[feed.Url] = true
	}

	return nil
}
