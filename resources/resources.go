// Package resources embeds the snapshots shipped with a release.
//
// Release tooling (histnode snapshot export) writes snapshot files and
// manifest.json into the snapshots directory before the binary is built.
package resources

import (
	"embed"
	"io/fs"

	"github.com/bisq-network/bisq-sub006/checkpoint"
)

//go:embed snapshots
var snapshots embed.FS

// FS returns the bundled snapshots. Paths in the manifest are relative to it.
func FS() fs.FS {
	sub, err := fs.Sub(snapshots, "snapshots")
	if err != nil {
		panic(err)
	}
	return sub
}

// Manifest returns the manifest of the bundled snapshots.
func Manifest() (*checkpoint.Manifest, error) {
	return checkpoint.ReadManifest(FS())
}
