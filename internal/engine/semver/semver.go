// Package semver applies a change level to a MAJOR.MINOR.PATCH version.
package semver

import (
	"fmt"
	"regexp"
	"strconv"

	xsemver "golang.org/x/mod/semver"

	"apisurface/internal/core/errors"
	"apisurface/internal/core/model"
)

var versionRe = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)(-[0-9A-Za-z.-]+)?$`)

// Version is a parsed MAJOR.MINOR.PATCH[-pre] string.
type Version struct {
	Major, Minor, Patch int
	Pre                 string
}

func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Pre != "" {
		s += "-" + v.Pre
	}
	return s
}

// Parse validates s against the MAJOR.MINOR.PATCH[-identifier] grammar.
func Parse(s string) (Version, error) {
	m := versionRe.FindStringSubmatch(s)
	if m == nil || !xsemver.IsValid("v"+s) {
		return Version{}, errors.AddContext(
			errors.New(errors.CodeValidationError, "version must match MAJOR.MINOR.PATCH[-identifier]"),
			errors.CtxVersion, s)
	}
	var v Version
	for i, dst := range []*int{&v.Major, &v.Minor, &v.Patch} {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return Version{}, errors.Wrap(err, errors.CodeValidationError, "version component out of range")
		}
		*dst = n
	}
	if len(m[4]) > 0 {
		v.Pre = m[4][1:]
	}
	return v, nil
}

// Bump increments the component named by level, zeroes the lower ones and
// drops any pre-release. While the major component is 0 a Major level bumps
// the minor component instead.
func Bump(level model.Level, version string) (string, error) {
	if !level.Valid() {
		return "", errors.Newf(errors.CodeValidationError, "unknown change level %d", int(level))
	}
	v, err := Parse(version)
	if err != nil {
		return "", err
	}
	if level == model.Major && v.Major == 0 {
		level = model.Minor
	}
	switch level {
	case model.Major:
		v = Version{Major: v.Major + 1}
	case model.Minor:
		v = Version{Major: v.Major, Minor: v.Minor + 1}
	case model.Patch:
		v = Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
	}
	return v.String(), nil
}
