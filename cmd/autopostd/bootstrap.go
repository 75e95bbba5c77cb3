package main

import (
	"log/slog"

	"autopost/internal/config"
	"autopost/internal/media"
	"autopost/internal/pipeline"
	"autopost/internal/publish"
	"autopost/internal/services/captioner"
	"autopost/internal/services/disk"
	"autopost/internal/services/uploadpost"
	"autopost/internal/store"
)

func buildPipeline(cfg *config.Config, st *store.Store, logger *slog.Logger) *pipeline.Runner {
	storage := disk.NewClient(disk.Config{
		BaseURL:        cfg.Storage.BaseURL,
		Token:          cfg.Storage.Token,
		RequestTimeout: cfg.Storage.RequestTimeout,
		ListLimit:      cfg.Storage.ListLimit,
	})
	publisher := uploadpost.NewClient(uploadpost.Config{
		APIKey:         cfg.Publisher.APIKey,
		BaseURL:        cfg.Publisher.BaseURL,
		RequestTimeout: cfg.Publisher.RequestTimeout,
	})
	captions := captioner.NewClient(captioner.Config{
		APIKey:         cfg.Captioner.APIKey,
		BaseURL:        cfg.Captioner.BaseURL,
		Model:          cfg.Captioner.Model,
		Referer:        cfg.Captioner.Referer,
		Title:          cfg.Captioner.Title,
		TimeoutSeconds: cfg.Captioner.TimeoutSeconds,
	})

	prompts := make(map[string]string, len(cfg.Brands))
	for _, brand := range cfg.Brands {
		if brand.Prompt != "" {
			prompts[media.NormalizeKey(brand.Name)] = brand.Prompt
		}
	}

	orchestrator := publish.New(storage, captions, publisher, st, logger,
		publish.WithBrandPrompts(prompts))
	return pipeline.New(cfg, storage, publisher, st, orchestrator, logger)
}
