package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rxtech-lab/tradermind/pkg/errors"
)

// CheckVersionCompatibility checks whether data written at version stored can be read
// by code expecting version current.
//
// Compatibility Rules:
//   - If either version is "main" (development build), compatibility check is skipped
//   - Major versions must match exactly
//   - Minor versions must match exactly
//   - Patch versions can differ (e.g., 1.2.0 is compatible with 1.2.5)
func CheckVersionCompatibility(current, stored string) error {
	current = strings.TrimPrefix(current, "v")
	stored = strings.TrimPrefix(stored, "v")

	if current == "main" || stored == "main" {
		return nil
	}

	currentSemver, err := semver.NewVersion(current)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid current version '%s'", current)
	}

	storedSemver, err := semver.NewVersion(stored)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid stored version '%s'", stored)
	}

	if currentSemver.Major() != storedSemver.Major() {
		return errors.Newf(errors.ErrCodeInvalidVersion, "major version mismatch: current is %d.x.x but data was written by %d.x.x",
			currentSemver.Major(), storedSemver.Major())
	}

	if currentSemver.Minor() != storedSemver.Minor() {
		return errors.Newf(errors.ErrCodeInvalidVersion, "minor version mismatch: current is %d.%d.x but data was written by %d.%d.x",
			currentSemver.Major(), currentSemver.Minor(),
			storedSemver.Major(), storedSemver.Minor())
	}

	return nil
}
