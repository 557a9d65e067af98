package types

import (
	"cmp"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spacemeshos/go-scale"
	"golang.org/x/mod/semver"

	"github.com/bisq-network/bisq-sub006/hash"
)

// ErrInvalidVersion is returned for strings that are not dotted numeric versions.
var ErrInvalidVersion = errors.New("invalid version")

// Version is a release identifier of the form major.minor.patch.
// Versions are ordered component-wise by numeric value, so 1.10.0 > 1.9.0.
type Version struct {
	Major, Minor, Patch uint32
}

// NewVersion builds a version from its components.
func NewVersion(major, minor, patch uint32) Version {
	return Version{Major: major, Minor: minor, Patch: patch}
}

// ParseVersion parses "1", "1.2" or "1.2.3". Missing components are zero.
// Pre-release and build suffixes are rejected: snapshots are only tagged with
// final releases.
func ParseVersion(s string) (Version, error) {
	sv := "v" + strings.TrimPrefix(strings.TrimSpace(s), "v")
	if !semver.IsValid(sv) {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	if semver.Prerelease(sv) != "" || semver.Build(sv) != "" {
		return Version{}, fmt.Errorf("%w: %q has a pre-release or build suffix", ErrInvalidVersion, s)
	}
	parts := strings.Split(strings.TrimPrefix(semver.Canonical(sv), "v"), ".")
	var rst [3]uint32
	for i, part := range parts {
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return Version{}, fmt.Errorf("%w: %q: %w", ErrInvalidVersion, s, err)
		}
		rst[i] = uint32(n)
	}
	return Version{Major: rst[0], Minor: rst[1], Patch: rst[2]}, nil
}

// MustParseVersion is ParseVersion that panics on error. Use for constants and tests.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the dotted form, e.g. "1.2.3".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or +1 depending on whether v is older, equal or newer than other.
func (v Version) Compare(other Version) int {
	if c := cmp.Compare(v.Major, other.Major); c != 0 {
		return c
	}
	if c := cmp.Compare(v.Minor, other.Minor); c != 0 {
		return c
	}
	return cmp.Compare(v.Patch, other.Patch)
}

// Less reports whether v is older than other.
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

// Marker returns the version marker standing for every record up to and including v.
func (v Version) Marker() VersionMarker {
	return VersionMarker{Version: v}
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := ParseVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// EncodeScale implements scale codec interface.
func (v *Version) EncodeScale(enc *scale.Encoder) (total int, err error) {
	for _, c := range [...]uint32{v.Major, v.Minor, v.Patch} {
		n, err := scale.EncodeCompact32(enc, c)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (v *Version) DecodeScale(dec *scale.Decoder) (total int, err error) {
	for _, c := range [...]*uint32{&v.Major, &v.Minor, &v.Patch} {
		field, n, err := scale.DecodeCompact32(dec)
		if err != nil {
			return total, err
		}
		total += n
		*c = field
	}
	return total, nil
}

// VersionMarker is a synthetic exclusion entry meaning "everything through Version".
// It is used only inside the sync protocol and never persisted.
type VersionMarker struct {
	Version Version
}

// Hash returns the marker's fixed-width identity. It is derived in a separate
// hashing domain from record hashes, so it never coincides with a content hash.
func (m VersionMarker) Hash() Hash32 {
	return hash.MarkerSum([]byte(m.Version.String()))
}

// String implements fmt.Stringer.
func (m VersionMarker) String() string {
	return "marker(" + m.Version.String() + ")"
}
