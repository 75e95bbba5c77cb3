package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"autopost/internal/config"
	"autopost/internal/logging"
	"autopost/internal/media"
	"autopost/internal/pipeline"
	"autopost/internal/publish"
	"autopost/internal/services/captioner"
	"autopost/internal/services/disk"
	"autopost/internal/services/uploadpost"
	"autopost/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) openStore() (*store.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg)
}

func (c *commandContext) newLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewFromConfig(cfg)
}

// diskClient builds the remote storage client from configuration.
func diskClient(cfg *config.Config) *disk.Client {
	return disk.NewClient(disk.Config{
		BaseURL:        cfg.Storage.BaseURL,
		Token:          cfg.Storage.Token,
		RequestTimeout: cfg.Storage.RequestTimeout,
		ListLimit:      cfg.Storage.ListLimit,
	})
}

func publisherClient(cfg *config.Config) *uploadpost.Client {
	return uploadpost.NewClient(uploadpost.Config{
		APIKey:         cfg.Publisher.APIKey,
		BaseURL:        cfg.Publisher.BaseURL,
		RequestTimeout: cfg.Publisher.RequestTimeout,
	})
}

func captionerClient(cfg *config.Config) *captioner.Client {
	return captioner.NewClient(captioner.Config{
		APIKey:         cfg.Captioner.APIKey,
		BaseURL:        cfg.Captioner.BaseURL,
		Model:          cfg.Captioner.Model,
		Referer:        cfg.Captioner.Referer,
		Title:          cfg.Captioner.Title,
		TimeoutSeconds: cfg.Captioner.TimeoutSeconds,
	})
}

func brandPrompts(cfg *config.Config) map[string]string {
	prompts := make(map[string]string, len(cfg.Brands))
	for _, brand := range cfg.Brands {
		if brand.Prompt == "" {
			continue
		}
		prompts[media.NormalizeKey(brand.Name)] = brand.Prompt
	}
	return prompts
}

// buildRunner wires the full pipeline on top of an open store.
func buildRunner(cfg *config.Config, st *store.Store, logger *slog.Logger) *pipeline.Runner {
	storage := diskClient(cfg)
	publisher := publisherClient(cfg)
	orchestrator := publish.New(storage, captionerClient(cfg), publisher, st, logger,
		publish.WithBrandPrompts(brandPrompts(cfg)))
	return pipeline.New(cfg, storage, publisher, st, orchestrator, logger)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
