package config

import "fmt"

// Default returns the default configuration values.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: "~/.local/share/autopost",
			LogDir:  "~/.local/share/autopost/logs",
		},
		Storage: Storage{
			BaseURL:        "https://cloud-api.yandex.net/v1/disk",
			RequestTimeout: 30,
			ListLimit:      200,
		},
		Captioner: Captioner{
			BaseURL:        "https://openrouter.ai/api/v1",
			Model:          "openai/gpt-4o-mini",
			TimeoutSeconds: 60,
		},
		Publisher: Publisher{
			BaseURL:        "https://api.upload-post.com/api",
			RequestTimeout: 120,
		},
		Scheduler: Scheduler{
			DaysToGenerate:     1,
			WindowStartHour:    8,
			WindowEndHour:      23,
			MinSlotGapMinutes:  45,
			SlotSearchAttempts: 15,
			DailyRunTime:       "07:30",
		},
		Limits: Limits{
			Instagram: 10,
			TikTok:    10,
			YouTube:   2,
		},
		Logging: Logging{
			Format: "text",
			Level:  "info",
		},
	}
}

// normalize expands paths and fills zero values left by partial config files.
func (c *Config) normalize() error {
	defaults := Default()

	var err error
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = defaults.Paths.DataDir
	}
	if c.Paths.LogDir == "" {
		c.Paths.LogDir = defaults.Paths.LogDir
	}
	if c.Paths.DataDir, err = ExpandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("expand data_dir: %w", err)
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("expand log_dir: %w", err)
	}

	if c.Storage.BaseURL == "" {
		c.Storage.BaseURL = defaults.Storage.BaseURL
	}
	if c.Storage.RequestTimeout <= 0 {
		c.Storage.RequestTimeout = defaults.Storage.RequestTimeout
	}
	if c.Storage.ListLimit <= 0 {
		c.Storage.ListLimit = defaults.Storage.ListLimit
	}

	if c.Captioner.BaseURL == "" {
		c.Captioner.BaseURL = defaults.Captioner.BaseURL
	}
	if c.Captioner.Model == "" {
		c.Captioner.Model = defaults.Captioner.Model
	}
	if c.Captioner.TimeoutSeconds <= 0 {
		c.Captioner.TimeoutSeconds = defaults.Captioner.TimeoutSeconds
	}

	if c.Publisher.BaseURL == "" {
		c.Publisher.BaseURL = defaults.Publisher.BaseURL
	}
	if c.Publisher.RequestTimeout <= 0 {
		c.Publisher.RequestTimeout = defaults.Publisher.RequestTimeout
	}

	if c.Scheduler.DaysToGenerate <= 0 {
		c.Scheduler.DaysToGenerate = defaults.Scheduler.DaysToGenerate
	}
	if c.Scheduler.WindowStartHour == 0 && c.Scheduler.WindowEndHour == 0 {
		c.Scheduler.WindowStartHour = defaults.Scheduler.WindowStartHour
		c.Scheduler.WindowEndHour = defaults.Scheduler.WindowEndHour
	}
	if c.Scheduler.MinSlotGapMinutes <= 0 {
		c.Scheduler.MinSlotGapMinutes = defaults.Scheduler.MinSlotGapMinutes
	}
	if c.Scheduler.SlotSearchAttempts <= 0 {
		c.Scheduler.SlotSearchAttempts = defaults.Scheduler.SlotSearchAttempts
	}

	if c.Limits.Instagram <= 0 {
		c.Limits.Instagram = defaults.Limits.Instagram
	}
	if c.Limits.TikTok <= 0 {
		c.Limits.TikTok = defaults.Limits.TikTok
	}
	if c.Limits.YouTube <= 0 {
		c.Limits.YouTube = defaults.Limits.YouTube
	}

	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}

	return nil
}
