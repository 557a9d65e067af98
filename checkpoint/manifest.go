// Package checkpoint describes the snapshots bundled with a release and
// imports them into the data directory.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"github.com/bisq-network/bisq-sub006/common/types"
)

const (
	SchemaVersion = "https://bisq.network/histsync/manifest.schema.json.1.0"

	// ManifestFile is the name of the manifest inside bundled resources.
	ManifestFile = "manifest.json"

	versionSeparator = "_"
)

var ErrDuplicateVersion = errors.New("duplicate snapshot version")

// Manifest lists the snapshot files shipped with a release.
// It is the only contract between release tooling and the node.
type Manifest struct {
	Version   string     `json:"version"`
	Snapshots []Snapshot `json:"snapshots"`
}

// Snapshot is one bundled snapshot. Path is relative to the resource root.
type Snapshot struct {
	Version types.Version `json:"version"`
	Path    string        `json:"path"`
}

func NewManifest() *Manifest {
	return &Manifest{Version: SchemaVersion, Snapshots: []Snapshot{}}
}

// ParseManifest validates data against the manifest schema and decodes it.
func ParseManifest(data []byte) (*Manifest, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if m.Version != SchemaVersion {
		return nil, fmt.Errorf("expected version %v, got %v", SchemaVersion, m.Version)
	}
	slices.SortFunc(m.Snapshots, func(a, b Snapshot) int { return a.Version.Compare(b.Version) })
	for i := 1; i < len(m.Snapshots); i++ {
		if m.Snapshots[i-1].Version == m.Snapshots[i].Version {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateVersion, m.Snapshots[i].Version)
		}
	}
	return &m, nil
}

// ReadManifest reads and parses the manifest from bundled resources.
// A missing manifest yields an empty one: a release may ship no snapshots.
func ReadManifest(fsys fs.FS) (*Manifest, error) {
	data, err := fs.ReadFile(fsys, ManifestFile)
	if errors.Is(err, fs.ErrNotExist) {
		return NewManifest(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

// Add records a snapshot. Versions must be unique.
func (m *Manifest) Add(version types.Version, path string) error {
	for _, s := range m.Snapshots {
		if s.Version == version {
			return fmt.Errorf("%w: %s", ErrDuplicateVersion, version)
		}
	}
	m.Snapshots = append(m.Snapshots, Snapshot{Version: version, Path: path})
	slices.SortFunc(m.Snapshots, func(a, b Snapshot) int { return a.Version.Compare(b.Version) })
	return nil
}

// Versions returns the snapshot versions in ascending order.
func (m *Manifest) Versions() []types.Version {
	rst := make([]types.Version, 0, len(m.Snapshots))
	for _, s := range m.Snapshots {
		rst = append(rst, s.Version)
	}
	return rst
}

func (m *Manifest) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// SnapshotName is the file name of the snapshot of base at version.
func SnapshotName(base string, version types.Version) string {
	return base + versionSeparator + version.String()
}

// ParseSnapshotName returns the version encoded in a snapshot file name of base.
func ParseSnapshotName(base, name string) (types.Version, bool) {
	suffix, found := strings.CutPrefix(name, base+versionSeparator)
	if !found {
		return types.Version{}, false
	}
	v, err := types.ParseVersion(suffix)
	if err != nil || SnapshotName(base, v) != name {
		return types.Version{}, false
	}
	return v, true
}
