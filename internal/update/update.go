package update

import (
	"fmt"

	"github.com/blang/semver"
	"github.com/rhysd/go-github-selfupdate/selfupdate"
)

// Slug is the GitHub repository releases are published to.
const Slug = "ibrahim-sec/thcsub"

// Check reports the latest released version and whether it is newer than
// current.
func Check(current string) (latest string, newer bool, err error) {
	v, err := semver.ParseTolerant(current)
	if err != nil {
		return "", false, fmt.Errorf("invalid version %q: %w", current, err)
	}

	rel, found, err := selfupdate.DetectLatest(Slug)
	if err != nil {
		return "", false, fmt.Errorf("failed to query releases: %w", err)
	}
	if !found {
		return "", false, nil
	}

	return rel.Version.String(), rel.Version.GT(v), nil
}

// Apply replaces the running binary with the latest release and returns
// the installed version.
func Apply(current string) (string, error) {
	v, err := semver.ParseTolerant(current)
	if err != nil {
		return "", fmt.Errorf("invalid version %q: %w", current, err)
	}

	rel, err := selfupdate.UpdateSelf(v, Slug)
	if err != nil {
		return "", fmt.Errorf("update failed: %w", err)
	}
	return rel.Version.String(), nil
}
