package contracts

import (
	"fmt"
	"runtime"
)

type Platform string

const (
	Windows Platform = "windows"
	MacOS   Platform = "macosx"
	Linux   Platform = "linux"
)

func CurrentPlatform() (Platform, error) {
	return ParsePlatform(runtime.GOOS)
}

// ParsePlatform accepts both Go's GOOS names and the names used in natives
// archive filenames.
func ParsePlatform(value string) (Platform, error) {
	switch value {
	case "windows":
		return Windows, nil
	case "darwin", "macosx", "osx":
		return MacOS, nil
	case "linux":
		return Linux, nil
	default:
		return "", fmt.Errorf("unsupported platform: %q", value)
	}
}

func (this Platform) NativesArchiveName() string {
	return string(this) + "_natives.jar"
}
