package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"autopost/internal/media"
	"autopost/internal/platform"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Storage contains configuration for the remote disk storage API.
type Storage struct {
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token"`
	RequestTimeout int    `toml:"request_timeout"`
	ListLimit      int    `toml:"list_limit"`
}

// Captioner contains settings for the LLM caption generator.
type Captioner struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Publisher contains settings for the upload-post publishing API.
type Publisher struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Scheduler contains allocation timing and the daily trigger.
type Scheduler struct {
	DaysToGenerate     int    `toml:"days_to_generate"`
	WindowStartHour    int    `toml:"window_start_hour"`
	WindowEndHour      int    `toml:"window_end_hour"`
	MinSlotGapMinutes  int    `toml:"min_slot_gap_minutes"`
	SlotSearchAttempts int    `toml:"slot_search_attempts"`
	DailyRunTime       string `toml:"daily_run_time"` // "HH:MM"; empty disables the trigger
}

// Limits holds the global per-platform daily post defaults.
type Limits struct {
	Instagram int `toml:"instagram"`
	TikTok    int `toml:"tiktok"`
	YouTube   int `toml:"youtube"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Profile is a social account with its theme subscription and quotas.
// Profiles are edited through configuration and read-only during a run.
type Profile struct {
	Handle    string   `toml:"handle"`
	Theme     string   `toml:"theme"`
	Platforms []string `toml:"platforms"`
	Enabled   bool     `toml:"enabled"`

	InstagramLimit *int `toml:"instagram_limit"`
	TikTokLimit    *int `toml:"tiktok_limit"`
	YouTubeLimit   *int `toml:"youtube_limit"`

	// Limit is the deprecated single per-day cap kept for old config files.
	Limit *int `toml:"limit"`
}

// Brand carries the caption prompt and monthly quota for one client brand.
type Brand struct {
	Name   string `toml:"name"`
	Prompt string `toml:"prompt"`
	Quota  int    `toml:"quota"`
}

// Config encapsulates all configuration values for autopost.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Storage   Storage   `toml:"storage"`
	Captioner Captioner `toml:"captioner"`
	Publisher Publisher `toml:"publisher"`
	Scheduler Scheduler `toml:"scheduler"`
	Limits    Limits    `toml:"limits"`
	Logging   Logging   `toml:"logging"`

	Profiles []Profile           `toml:"profiles"`
	Brands   []Brand             `toml:"brands"`
	Aliases  map[string][]string `toml:"aliases"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/autopost/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("autopost.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// AliasTable returns the theme alias table for the classifier.
func (c *Config) AliasTable() media.AliasTable {
	return media.AliasTable(c.Aliases)
}

// EnabledProfiles returns the profiles eligible for allocation: enabled and
// subscribed to at least one valid platform.
func (c *Config) EnabledProfiles() []Profile {
	eligible := make([]Profile, 0, len(c.Profiles))
	for _, p := range c.Profiles {
		if !p.Enabled || len(p.PlatformList()) == 0 {
			continue
		}
		eligible = append(eligible, p)
	}
	return eligible
}

// BrandByKey finds the brand whose normalized name matches the supplied
// classifier brand key.
func (c *Config) BrandByKey(key string) (Brand, bool) {
	for _, b := range c.Brands {
		if media.NormalizeKey(b.Name) == key {
			return b, true
		}
	}
	return Brand{}, false
}

// BrandQuotas returns the configured monthly quota for every brand, keyed
// by the brand's normalized name so allocation can match classifier output.
func (c *Config) BrandQuotas() map[string]int {
	quotas := make(map[string]int, len(c.Brands))
	for _, b := range c.Brands {
		if b.Quota <= 0 {
			continue
		}
		quotas[media.NormalizeKey(b.Name)] = b.Quota
	}
	return quotas
}

// PlatformList parses the profile's platform subscriptions, dropping
// anything unrecognized.
func (p Profile) PlatformList() []platform.Platform {
	parsed := make([]platform.Platform, 0, len(p.Platforms))
	for _, raw := range p.Platforms {
		pl, ok := platform.Parse(raw)
		if !ok {
			continue
		}
		parsed = append(parsed, pl)
	}
	return parsed
}

// LimitFor resolves the effective daily limit for a profile and platform:
// per-platform override, then the deprecated profile-wide limit, then the
// global default.
func (c *Config) LimitFor(p Profile, pl platform.Platform) int {
	var override *int
	switch pl {
	case platform.Instagram:
		override = p.InstagramLimit
	case platform.TikTok:
		override = p.TikTokLimit
	case platform.YouTube:
		override = p.YouTubeLimit
	}
	if override != nil {
		return *override
	}
	if p.Limit != nil {
		return *p.Limit
	}
	switch pl {
	case platform.Instagram:
		return c.Limits.Instagram
	case platform.TikTok:
		return c.Limits.TikTok
	case platform.YouTube:
		return c.Limits.YouTube
	default:
		return 1
	}
}

// ExpandPath resolves ~ and returns an absolute, cleaned path.
func ExpandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
