package media

import (
	"path"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// AliasTable maps a canonical theme key to the alias substrings that should
// resolve to it. Supplied by configuration; read-only during a run.
type AliasTable map[string][]string

// Identity is the theme/brand/author triple derived from a file's folder
// path. It is recomputed on demand and never stored.
type Identity struct {
	Theme  string
	Brand  string
	Author string
}

const unknownKey = "unknown"

// rootMarker is the synthetic storage root prefix present on remote paths.
const rootMarker = "disk:"

// mediaRootMarkers are the folder names that anchor the
// root/<author>/<theme>/<brand> layout, in both accepted spellings.
var mediaRootMarkers = map[string]struct{}{
	"video": {},
	"видео": {},
}

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".mov":  {},
	".avi":  {},
	".mkv":  {},
	".webm": {},
}

// Classify derives the theme/brand/author identity from a remote file path.
// Pure and deterministic; safe for concurrent use.
func Classify(filePath string, aliases AliasTable) Identity {
	segments := splitPath(filePath)

	markerIdx := -1
	for i, seg := range segments {
		if _, ok := mediaRootMarkers[strings.ToLower(seg)]; ok {
			markerIdx = i
			break
		}
	}

	identity := Identity{Theme: unknownKey, Brand: "", Author: unknownKey}

	var themeCandidate string
	if markerIdx >= 0 {
		if markerIdx+1 < len(segments) {
			identity.Author = cleanAuthor(segments[markerIdx+1])
		}
		if markerIdx+2 < len(segments) {
			themeCandidate = segments[markerIdx+2]
		}
		if markerIdx+3 < len(segments) {
			identity.Brand = normalizeBrand(segments[markerIdx+3])
		}
	} else if len(segments) >= 2 {
		themeCandidate = segments[len(segments)-2]
	}

	if themeCandidate != "" {
		identity.Theme = ResolveTheme(themeCandidate, aliases)
	}
	return identity
}

// GroupByTheme partitions a listing by theme and, within a theme, by brand.
func GroupByTheme(items []Item, aliases AliasTable) map[string]map[string][]Item {
	groups := make(map[string]map[string][]Item)
	for _, item := range items {
		id := Classify(item.Path, aliases)
		brands, ok := groups[id.Theme]
		if !ok {
			brands = make(map[string][]Item)
			groups[id.Theme] = brands
		}
		brands[id.Brand] = append(brands[id.Brand], item)
	}
	return groups
}

// ResolveTheme normalizes a raw folder name and resolves it through the alias
// table. Unmatched candidates surface in their normalized form so new folder
// names remain visible in reporting.
func ResolveTheme(candidate string, aliases AliasTable) string {
	normalized := NormalizeKey(stripDecorations(candidate))
	if normalized == "" {
		return unknownKey
	}

	type aliasEntry struct {
		canonical  string
		normalized string
	}
	entries := make([]aliasEntry, 0)
	for canonical, list := range aliases {
		if NormalizeKey(canonical) == normalized {
			return canonical
		}
		for _, alias := range list {
			na := NormalizeKey(alias)
			if na == "" {
				continue
			}
			if na == normalized {
				return canonical
			}
			entries = append(entries, aliasEntry{canonical: canonical, normalized: na})
		}
	}

	// Substring containment, longer aliases first, so a short alias cannot
	// claim a candidate that a longer, more specific alias also matches.
	sort.Slice(entries, func(i, j int) bool {
		if len(entries[i].normalized) != len(entries[j].normalized) {
			return len(entries[i].normalized) > len(entries[j].normalized)
		}
		return entries[i].normalized < entries[j].normalized
	})
	for _, entry := range entries {
		if strings.Contains(entry.normalized, normalized) || strings.Contains(normalized, entry.normalized) {
			return entry.canonical
		}
	}
	return normalized
}

// NormalizeKey produces the canonical comparison form of a folder or brand
// name: lowercase, ё folded to е, everything outside Latin letters, digits,
// and Cyrillic letters stripped.
func NormalizeKey(value string) string {
	lowered := strings.ToLower(strings.TrimSpace(value))
	lowered = strings.ReplaceAll(lowered, "ё", "е")

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'а' && r <= 'я':
			b.WriteRune(r)
		}
	}
	return b.String()
}

func splitPath(filePath string) []string {
	// Storage APIs occasionally hand back decomposed Unicode for Cyrillic
	// folder names; compose first so rune comparisons hold.
	composed := norm.NFC.String(filePath)
	composed = strings.ReplaceAll(composed, "\\", "/")

	parts := strings.Split(composed, "/")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" || strings.EqualFold(trimmed, rootMarker) {
			continue
		}
		segments = append(segments, trimmed)
	}
	return segments
}

// stripDecorations removes the trailing asterisk marker and any parenthetical
// annotation from a folder name, e.g. "Acme* (old)" -> "Acme".
func stripDecorations(value string) string {
	if idx := strings.Index(value, "*"); idx >= 0 {
		value = value[:idx]
	}
	if idx := strings.Index(value, "("); idx >= 0 {
		value = value[:idx]
	}
	return strings.TrimSpace(value)
}

func cleanAuthor(segment string) string {
	author := stripDecorations(segment)
	if author == "" {
		return unknownKey
	}
	if _, ok := videoExtensions[strings.ToLower(path.Ext(author))]; ok {
		return unknownKey
	}
	return author
}

func normalizeBrand(segment string) string {
	raw := stripDecorations(segment)
	if raw == "" || strings.Contains(raw, ".") {
		return unknownKey
	}
	normalized := NormalizeKey(raw)
	if normalized == "" {
		return unknownKey
	}
	return normalized
}
