package platform

import (
	"strings"
	"time"
	"unicode/utf8"
)

// TitleDelimiter separates the generated title from the body in captions
// produced for platforms that expect a structured title + description.
const TitleDelimiter = "$$$"

const maxSynthesizedTitleRunes = 50

// Request carries the inputs a strategy needs to build publish form fields.
type Request struct {
	Profile     string
	VideoURL    string
	Caption     string
	Title       string
	ScheduledAt time.Time
}

// Strategy encapsulates per-platform publish behavior: how the upload
// request is shaped and how generated caption text maps to title/body.
type Strategy interface {
	BuildRequest(req Request) map[string]string
	ParseTitle(raw string) (title, body string)
}

var strategies = map[Platform]Strategy{
	Instagram: instagramStrategy{},
	TikTok:    tiktokStrategy{},
	YouTube:   youtubeStrategy{},
}

// StrategyFor returns the strategy registered for a platform.
func StrategyFor(p Platform) (Strategy, bool) {
	s, ok := strategies[p]
	return s, ok
}

func baseFields(p Platform, req Request) map[string]string {
	fields := map[string]string{
		"user":       req.Profile,
		"platform[]": string(p),
		"video":      req.VideoURL,
		"title":      req.Caption,
	}
	if !req.ScheduledAt.IsZero() {
		fields["scheduled_date"] = req.ScheduledAt.Format(time.RFC3339)
	}
	return fields
}

type instagramStrategy struct{}

func (instagramStrategy) BuildRequest(req Request) map[string]string {
	fields := baseFields(Instagram, req)
	fields["instagram_title"] = req.Caption
	fields["media_type"] = "REELS"
	return fields
}

func (instagramStrategy) ParseTitle(raw string) (string, string) {
	return "", strings.TrimSpace(raw)
}

type tiktokStrategy struct{}

func (tiktokStrategy) BuildRequest(req Request) map[string]string {
	fields := baseFields(TikTok, req)
	fields["tiktok_title"] = req.Caption
	fields["post_mode"] = "DIRECT_POST"
	return fields
}

func (tiktokStrategy) ParseTitle(raw string) (string, string) {
	return "", strings.TrimSpace(raw)
}

type youtubeStrategy struct{}

func (youtubeStrategy) BuildRequest(req Request) map[string]string {
	fields := baseFields(YouTube, req)
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = synthesizeTitle(req.Caption)
	}
	fields["youtube_title"] = title
	fields["youtube_description"] = req.Caption
	fields["categoryId"] = "22"
	fields["privacyStatus"] = "public"
	return fields
}

func (youtubeStrategy) ParseTitle(raw string) (string, string) {
	raw = strings.TrimSpace(raw)
	if idx := strings.Index(raw, TitleDelimiter); idx >= 0 {
		title := strings.TrimSpace(raw[:idx])
		body := strings.TrimSpace(raw[idx+len(TitleDelimiter):])
		return title, body
	}
	return synthesizeTitle(raw), raw
}

// synthesizeTitle derives a short title from body text when the model did not
// supply one. Truncation happens on rune boundaries, preferring a word break.
func synthesizeTitle(body string) string {
	body = strings.TrimSpace(body)
	if line, _, found := strings.Cut(body, "\n"); found {
		body = strings.TrimSpace(line)
	}
	if utf8.RuneCountInString(body) <= maxSynthesizedTitleRunes {
		return body
	}
	runes := []rune(body)
	cut := string(runes[:maxSynthesizedTitleRunes])
	if idx := strings.LastIndex(cut, " "); idx > maxSynthesizedTitleRunes/2 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut)
}
