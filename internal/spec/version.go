package spec

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// SpecVersionConstraint is the range of document specVersion values this
// build understands. Documents outside the range are rejected at load time.
const SpecVersionConstraint = ">=1.0.0,<2.0.0"

// ParseVersionConstraint parses a semver constraint expression such as
// ">=1.0.0,<2.0.0".
func ParseVersionConstraint(expr string) (*semver.Constraints, error) {
	c, err := semver.NewConstraint(expr)
	if err != nil {
		return nil, fmt.Errorf("parsing version constraint %q: %w", expr, err)
	}
	return c, nil
}

// SatisfiesConstraint reports whether version satisfies the constraint.
func SatisfiesConstraint(version string, c *semver.Constraints) (bool, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("parsing version %q: %w", version, err)
	}
	return c.Check(v), nil
}

// CompareVersions compares two semantic versions. It returns -1 if v1 is
// older than v2, 0 if equal, and 1 if newer.
func CompareVersions(v1, v2 string) (int, error) {
	a, err := semver.NewVersion(v1)
	if err != nil {
		return 0, fmt.Errorf("parsing version %q: %w", v1, err)
	}
	b, err := semver.NewVersion(v2)
	if err != nil {
		return 0, fmt.Errorf("parsing version %q: %w", v2, err)
	}
	return a.Compare(b), nil
}

// IsValidVersion reports whether s parses as a semantic version.
func IsValidVersion(s string) bool {
	_, err := semver.NewVersion(s)
	return err == nil
}

// CheckVersion gates a document's specVersion against SpecVersionConstraint.
func CheckVersion(specVersion string) error {
	constraint, err := ParseVersionConstraint(SpecVersionConstraint)
	if err != nil {
		return fmt.Errorf("parsing supported version range: %w", err)
	}
	ok, err := SatisfiesConstraint(specVersion, constraint)
	if err != nil {
		return fmt.Errorf("%w: %q is not a semantic version", ErrUnsupportedVersion, specVersion)
	}
	if !ok {
		return fmt.Errorf("%w: document declares %s, this build supports %s",
			ErrUnsupportedVersion, specVersion, SpecVersionConstraint)
	}
	return nil
}
