package platform

import "strings"

// Platform identifies a supported publishing target.
type Platform string

const (
	Instagram Platform = "instagram"
	TikTok    Platform = "tiktok"
	YouTube   Platform = "youtube"
)

var all = []Platform{Instagram, TikTok, YouTube}

var platformSet = func() map[Platform]struct{} {
	set := make(map[Platform]struct{}, len(all))
	for _, p := range all {
		set[p] = struct{}{}
	}
	return set
}()

// All returns the ordered list of supported platforms.
func All() []Platform {
	cp := make([]Platform, len(all))
	copy(cp, all)
	return cp
}

// Parse converts a string into a known Platform.
func Parse(value string) (Platform, bool) {
	normalized := Platform(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := platformSet[normalized]
	return normalized, ok
}

// Valid reports whether the platform is one of the supported targets.
func (p Platform) Valid() bool {
	_, ok := platformSet[p]
	return ok
}

func (p Platform) String() string {
	return string(p)
}
