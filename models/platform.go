package models

import (
	"database/sql/driver"
	"fmt"
)

// Platform identifies a supported third-party publishing platform.
// The set is fixed; adapters are not pluggable.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTwitter   Platform = "twitter"
	PlatformFacebook  Platform = "facebook"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
)

// String returns the string representation of the platform
func (p Platform) String() string {
	return string(p)
}

// Valid checks if the platform is part of the supported set
func (p Platform) Valid() bool {
	switch p {
	case PlatformInstagram, PlatformTwitter, PlatformFacebook,
		PlatformLinkedIn, PlatformYouTube, PlatformTikTok:
		return true
	default:
		return false
	}
}

// AllPlatforms returns the fixed supported set in a stable order
func AllPlatforms() []Platform {
	return []Platform{
		PlatformInstagram,
		PlatformTwitter,
		PlatformFacebook,
		PlatformLinkedIn,
		PlatformYouTube,
		PlatformTikTok,
	}
}

// Scan implements the sql.Scanner interface for Platform
func (p *Platform) Scan(value any) error {
	if value == nil {
		*p = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*p = Platform(v)
	case []byte:
		*p = Platform(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Platform", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for Platform
func (p Platform) Value() (driver.Value, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid Platform: %s", p)
	}
	return string(p), nil
}
