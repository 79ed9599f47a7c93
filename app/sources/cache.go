package sources

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Cache loads source configurations from a directory of .yml files and
// keeps them in memory for the lifetime of the process. Configurations
// are not hot-reloaded; a cycle always sees a consistent set.
type Cache struct {
	sourcesDir string
	cache      map[string]*Config
	mu         sync.RWMutex
}

func NewCache(sourcesDir string) *Cache {
	return &Cache{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*Config),
	}
}

func (c *Cache) Run() error {
	if _, err := os.Stat(c.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(c.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		fileName := filepath.Base(file)
		sourceID := strings.TrimSuffix(fileName, ".yml")

		config, err := c.LoadConfig(sourceID)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source configuration loaded", "source", sourceID, "kind", config.Kind, "enabled", config.Settings.Enabled)
	}

	return nil
}

func (c *Cache) LoadConfig(sourceID string) (*Config, error) {
	configFile := c.getConfigFilePath(sourceID)
	config, err := c.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	config.ID = sourceID

	if err := c.validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[config.ID] = config

	return config, nil
}

func (c *Cache) GetConfig(sourceID string) (*Config, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	config, ok := c.cache[sourceID]
	if !ok {
		return nil, fmt.Errorf("source config with id '%s' not found", sourceID)
	}
	return config, nil
}

// GetEnabledConfigs returns enabled sources ordered by ID. The order is
// stable across calls; digest grouping follows it.
func (c *Cache) GetEnabledConfigs() []*Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var configs []*Config
	for _, config := range c.cache {
		if config.Settings.Enabled {
			configs = append(configs, config)
		}
	}

	sort.Slice(configs, func(i, j int) bool {
		return configs[i].ID < configs[j].ID
	})

	return configs
}

func (c *Cache) GetConfigCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

func (c *Cache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if config.Settings.MaxItems == 0 {
		config.Settings.MaxItems = 50
	}

	return &config, nil
}

func (c *Cache) validateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	switch config.Kind {
	case KindBlog:
		if config.FeedURL == "" {
			return fmt.Errorf("feed_url is required for blog sources")
		}
	case KindVideo:
		if config.Channel == "" {
			return fmt.Errorf("channel is required for video sources")
		}
	default:
		return fmt.Errorf("unknown source kind: %q", config.Kind)
	}

	if config.Label == "" {
		return fmt.Errorf("label is required")
	}

	if config.Settings.MaxItems < 0 {
		return fmt.Errorf("max items must be non-negative")
	}

	return nil
}

func (c *Cache) getConfigFilePath(sourceID string) string {
	return filepath.Join(c.sourcesDir, sourceID+".yml")
}
