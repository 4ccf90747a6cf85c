package models

import (
	"fmt"
	"strings"
)

type Platform string

const (
	PlatformMastodon  Platform = "mastodon"
	PlatformTelegram  Platform = "telegram"
	PlatformFacebook  Platform = "facebook"
	PlatformTwitter   Platform = "twitter"
	PlatformInstagram Platform = "instagram"
)

// Platforms is the closed set of supported destinations.
var Platforms = []Platform{
	PlatformMastodon,
	PlatformTelegram,
	PlatformFacebook,
	PlatformTwitter,
	PlatformInstagram,
}

// CharacterLimits holds the hard caption limit for each platform.
var CharacterLimits = map[Platform]int{
	PlatformTwitter:   280,
	PlatformMastodon:  500,
	PlatformTelegram:  4096,
	PlatformInstagram: 2200,
	PlatformFacebook:  63206,
}

func ParsePlatform(name string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mastodon":
		return PlatformMastodon, nil
	case "telegram":
		return PlatformTelegram, nil
	case "facebook":
		return PlatformFacebook, nil
	case "twitter", "x":
		return PlatformTwitter, nil
	case "instagram":
		return PlatformInstagram, nil
	}
	return "", fmt.Errorf("unsupported platform %q", name)
}

// ParsePlatforms normalizes names, skipping unknown ones and duplicates.
func ParsePlatforms(names []string) []Platform {
	seen := make(map[Platform]struct{}, len(names))
	platforms := make([]Platform, 0, len(names))
	for _, name := range names {
		p, err := ParsePlatform(name)
		if err != nil {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		platforms = append(platforms, p)
	}
	return platforms
}

func PlatformNames(platforms []Platform) []string {
	names := make([]string, 0, len(platforms))
	for _, p := range platforms {
		names = append(names, p.String())
	}
	return names
}

func (p Platform) String() string {
	return string(p)
}

// ResultKeys lists the platform_results keys a result is written under.
func (p Platform) ResultKeys() []string {
	if p == PlatformTwitter {
		return []string{"twitter", "x"}
	}
	return []string{string(p)}
}

// ComposeMessage appends hashtags to the caption, adding a leading '#' where missing.
func ComposeMessage(caption string, hashtags []string) string {
	tags := make([]string, 0, len(hashtags))
	for _, tag := range hashtags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		tags = append(tags, tag)
	}

	caption = strings.TrimSpace(caption)
	if len(tags) == 0 {
		return caption
	}
	if caption == "" {
		return strings.Join(tags, " ")
	}
	return caption + "\n\n" + strings.Join(tags, " ")
}
