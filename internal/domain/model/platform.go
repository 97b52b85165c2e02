package model

import (
	"sort"
	"strings"

	"telegram-ai-autoposter/internal/domain"
)

// Platform identifies an external publishing target. The set is closed.
type Platform string

const (
	PlatformMedium Platform = "medium"
	PlatformDevTo  Platform = "devto"
	PlatformReddit Platform = "reddit"
)

// AllPlatforms lists every known platform in display order.
func AllPlatforms() []Platform {
	return []Platform{PlatformDevTo, PlatformMedium, PlatformReddit}
}

func (p Platform) Valid() bool {
	switch p {
	case PlatformMedium, PlatformDevTo, PlatformReddit:
		return true
	}
	return false
}

// DisplayName is the human readable platform name.
func (p Platform) DisplayName() string {
	switch p {
	case PlatformMedium:
		return "Medium"
	case PlatformDevTo:
		return "Dev.to"
	case PlatformReddit:
		return "Reddit"
	}
	return string(p)
}

// ParsePlatform accepts the canonical id plus the spellings used in chat ("dev.to", "dev_to").
func ParsePlatform(s string) (Platform, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "dev.to", "dev_to", "dev-to":
		v = string(PlatformDevTo)
	}
	p := Platform(v)
	if !p.Valid() {
		return "", domain.Validationf("unknown platform %q", s)
	}
	return p, nil
}

// NormalizePlatforms validates and de-duplicates a selection, returning it sorted.
func NormalizePlatforms(in []Platform) ([]Platform, error) {
	if len(in) == 0 {
		return nil, domain.Validationf("no platforms selected")
	}
	seen := make(map[Platform]struct{}, len(in))
	out := make([]Platform, 0, len(in))
	for _, p := range in {
		if !p.Valid() {
			return nil, domain.Validationf("unknown platform %q", string(p))
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
