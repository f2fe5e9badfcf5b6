package servhub

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a numeric major.minor[.build[.revision]] version. Build and
// Revision are -1 when absent; an absent component is distinct from zero,
// so "1.0" and "1.0.0" are different versions and "1.0" orders first.
type Version struct {
	Major    int
	Minor    int
	Build    int
	Revision int
}

// NewVersion builds a two-component version.
func NewVersion(major, minor int) Version {
	return Version{Major: major, Minor: minor, Build: -1, Revision: -1}
}

// ParseVersion parses the canonical dotted form: two to four non-negative
// decimal components without signs or leading zeros. Anything else fails
// with ErrVersionInvalid so a malformed suffix is never silently accepted.
func ParseVersion(text string) (Version, error) {
	parts := strings.Split(text, ".")
	if len(parts) < 2 || len(parts) > 4 {
		return Version{}, fmt.Errorf("%w: %q", ErrVersionInvalid, text)
	}

	numbers := [4]int{0, 0, -1, -1}
	for i, part := range parts {
		n, err := parseComponent(part)
		if err != nil {
			return Version{}, fmt.Errorf("%w: %q", ErrVersionInvalid, text)
		}
		numbers[i] = n
	}

	return Version{
		Major:    numbers[0],
		Minor:    numbers[1],
		Build:    numbers[2],
		Revision: numbers[3],
	}, nil
}

func parseComponent(part string) (int, error) {
	if part == "" || (len(part) > 1 && part[0] == '0') {
		return 0, ErrVersionInvalid
	}
	for _, c := range part {
		if c < '0' || c > '9' {
			return 0, ErrVersionInvalid
		}
	}
	return strconv.Atoi(part)
}

func (v Version) String() string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(v.Major))
	sb.WriteByte('.')
	sb.WriteString(strconv.Itoa(v.Minor))
	if v.Build >= 0 {
		sb.WriteByte('.')
		sb.WriteString(strconv.Itoa(v.Build))
		if v.Revision >= 0 {
			sb.WriteByte('.')
			sb.WriteString(strconv.Itoa(v.Revision))
		}
	}
	return sb.String()
}

// Compare orders versions componentwise; absent components (-1) order
// before zero.
func (v Version) Compare(o Version) int {
	pairs := [4][2]int{
		{v.Major, o.Major},
		{v.Minor, o.Minor},
		{v.Build, o.Build},
		{v.Revision, o.Revision},
	}
	for _, p := range pairs {
		if p[0] != p[1] {
			if p[0] < p[1] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (v Version) Equal(o Version) bool {
	return v.Compare(o) == 0
}
