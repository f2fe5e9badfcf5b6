package servhub

import (
	"fmt"
	"regexp"
	"strings"
)

const MaxServiceNameLength = 128

var invalidServiceName = regexp.MustCompile(`[^A-Za-z0-9\-\._]+`)

// ValidateServiceName reports whether a name may identify a service. The
// restricted alphabet keeps names safe to embed in channel paths and in the
// textual "name/version" form, which reserves '/'.
func ValidateServiceName(name string) bool {
	return name != "" &&
		len(name) <= MaxServiceNameLength &&
		!invalidServiceName.MatchString(name)
}

// Moniker identifies a requested or offered service. A nil Version means
// version-agnostic, which is a distinct value rather than a wildcard for any
// particular version. Monikers are values; treat them as immutable.
type Moniker struct {
	Name    string
	Version *Version
}

// NewMoniker builds a version-agnostic moniker.
func NewMoniker(name string) Moniker {
	return Moniker{Name: name}
}

// NewVersionedMoniker builds a moniker carrying an exact version.
func NewVersionedMoniker(name string, v Version) Moniker {
	return Moniker{Name: name, Version: &v}
}

// ParseMoniker parses "name" or "name/version". The suffix after the first
// '/' must be a valid version; a malformed suffix fails rather than being
// folded into the name. String is the exact inverse for all valid inputs.
func ParseMoniker(text string) (Moniker, error) {
	name, versionText, hasVersion := strings.Cut(text, "/")
	if !ValidateServiceName(name) {
		return Moniker{}, fmt.Errorf("%w: %q", ErrMonikerInvalid, text)
	}
	if !hasVersion {
		return Moniker{Name: name}, nil
	}

	version, err := ParseVersion(versionText)
	if err != nil {
		return Moniker{}, err
	}
	return Moniker{Name: name, Version: &version}, nil
}

func (m Moniker) String() string {
	if m.Version == nil {
		return m.Name
	}
	return m.Name + "/" + m.Version.String()
}

// Equal compares names case-sensitively and versions numerically; two nil
// versions are equal, a nil version never equals a concrete one.
func (m Moniker) Equal(o Moniker) bool {
	if m.Name != o.Name {
		return false
	}
	if m.Version == nil || o.Version == nil {
		return m.Version == o.Version
	}
	return m.Version.Equal(*o.Version)
}

// Key returns a canonical map key. Two monikers share a key iff they are
// Equal, so Key-indexed caches behave like moniker-indexed ones.
func (m Moniker) Key() string {
	return m.String()
}
