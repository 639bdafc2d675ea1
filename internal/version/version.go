package version

// Version is the build version of tradermind.
// This value is set at build time using ldflags:
// -ldflags "-X github.com/rxtech-lab/tradermind/internal/version.Version=1.2.3"
// The default value "main" indicates a development build.
var Version = "main"

// CacheFormatVersion is the on-disk layout version of dataset cache entries.
// Bump the minor or major version whenever the stored columns change.
const CacheFormatVersion = "1.0.0"

// GetVersion returns the current build version.
func GetVersion() string {
	return Version
}
