package config

import (
	"fmt"
	"strconv"
	"strings"

	"autopost/internal/platform"
)

// Validate checks configuration for fatal problems. Validation failures are
// configuration errors and abort startup.
func (c *Config) Validate() error {
	var problems []string

	if c.Storage.Token == "" {
		problems = append(problems, "storage.token is required")
	}
	if c.Publisher.APIKey == "" {
		problems = append(problems, "publisher.api_key is required")
	}

	if c.Scheduler.WindowStartHour < 0 || c.Scheduler.WindowStartHour > 23 {
		problems = append(problems, fmt.Sprintf("scheduler.window_start_hour %d out of range 0-23", c.Scheduler.WindowStartHour))
	}
	if c.Scheduler.WindowEndHour < 1 || c.Scheduler.WindowEndHour > 24 {
		problems = append(problems, fmt.Sprintf("scheduler.window_end_hour %d out of range 1-24", c.Scheduler.WindowEndHour))
	}
	if c.Scheduler.WindowEndHour <= c.Scheduler.WindowStartHour {
		problems = append(problems, "scheduler.window_end_hour must be after window_start_hour")
	}
	if c.Scheduler.DailyRunTime != "" {
		if _, _, err := ParseClock(c.Scheduler.DailyRunTime); err != nil {
			problems = append(problems, fmt.Sprintf("scheduler.daily_run_time: %v", err))
		}
	}

	handles := make(map[string]struct{}, len(c.Profiles))
	for i, p := range c.Profiles {
		if p.Handle == "" {
			problems = append(problems, fmt.Sprintf("profiles[%d]: handle is required", i))
			continue
		}
		if _, dup := handles[p.Handle]; dup {
			problems = append(problems, fmt.Sprintf("profiles[%d]: duplicate handle %q", i, p.Handle))
		}
		handles[p.Handle] = struct{}{}
		if p.Theme == "" {
			problems = append(problems, fmt.Sprintf("profile %q: theme is required", p.Handle))
		}
		for _, raw := range p.Platforms {
			if _, ok := platform.Parse(raw); !ok {
				problems = append(problems, fmt.Sprintf("profile %q: unknown platform %q", p.Handle, raw))
			}
		}
		for name, limit := range map[string]*int{
			"instagram_limit": p.InstagramLimit,
			"tiktok_limit":    p.TikTokLimit,
			"youtube_limit":   p.YouTubeLimit,
			"limit":           p.Limit,
		} {
			if limit != nil && *limit < 0 {
				problems = append(problems, fmt.Sprintf("profile %q: %s must not be negative", p.Handle, name))
			}
		}
	}

	for i, b := range c.Brands {
		if b.Name == "" {
			problems = append(problems, fmt.Sprintf("brands[%d]: name is required", i))
		}
		if b.Quota < 0 {
			problems = append(problems, fmt.Sprintf("brand %q: quota must not be negative", b.Name))
		}
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q must be text or json", c.Logging.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// ParseClock parses a "HH:MM" wall-clock value.
func ParseClock(value string) (hour, minute int, err error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%q is not in HH:MM form", value)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%q has an invalid hour", value)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%q has an invalid minute", value)
	}
	return hour, minute, nil
}
