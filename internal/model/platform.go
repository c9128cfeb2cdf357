package model

import (
	"fmt"
	"strings"
)

// Platform social platform identifier
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformTwitter   Platform = "twitter"
	PlatformPinterest Platform = "pinterest"
	PlatformTikTok    Platform = "tiktok"
	PlatformWhatsApp  Platform = "whatsapp"
)

// AllPlatforms every platform an adapter exists for
var AllPlatforms = []Platform{
	PlatformFacebook,
	PlatformInstagram,
	PlatformTwitter,
	PlatformPinterest,
	PlatformTikTok,
	PlatformWhatsApp,
}

// String implements fmt.Stringer
func (p Platform) String() string {
	return string(p)
}

// Known reports whether p is one of AllPlatforms
func (p Platform) Known() bool {
	for _, known := range AllPlatforms {
		if p == known {
			return true
		}
	}
	return false
}

// ParsePlatform normalizes case and whitespace and rejects unknown names
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if !p.Known() {
		return "", fmt.Errorf("unknown platform %q", s)
	}
	return p, nil
}

// Title returns the display name used in user-facing messages
func (p Platform) Title() string {
	switch p {
	case PlatformTikTok:
		return "TikTok"
	case PlatformWhatsApp:
		return "WhatsApp"
	case "":
		return ""
	default:
		s := string(p)
		return strings.ToUpper(s[:1]) + s[1:]
	}
}
