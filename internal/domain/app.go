package domain

import "time"

// Platform enumerates supported client platforms.
type Platform string

const (
	PlatformIOS         Platform = "ios"
	PlatformAndroid     Platform = "android"
	PlatformReactNative Platform = "react-native"
)

// ValidPlatform reports whether p is a known platform.
func ValidPlatform(p Platform) bool {
	switch p {
	case PlatformIOS, PlatformAndroid, PlatformReactNative:
		return true
	}
	return false
}

// App is a registered application owning release channels.
type App struct {
	ID          string
	AppName     string
	Platform    Platform
	Description string
	Owner       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
