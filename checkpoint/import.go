package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Import copies every bundled snapshot missing from dir into it as
// SnapshotName(base, version). Snapshots already present are left untouched,
// so running Import again after a crash only completes the missing copies.
//
// A snapshot that can't be copied is logged and reported in the joined error;
// the remaining snapshots are still imported. Returns the imported paths.
func Import(
	ctx context.Context,
	logger *zap.Logger,
	afs afero.Fs,
	resources fs.FS,
	manifest *Manifest,
	dir, base string,
) ([]string, error) {
	var (
		imported []string
		errs     []error
	)
	for _, snapshot := range manifest.Snapshots {
		if err := ctx.Err(); err != nil {
			return imported, err
		}
		dst := filepath.Join(dir, SnapshotName(base, snapshot.Version))
		exists, err := afero.Exists(afs, dst)
		if err != nil {
			errs = append(errs, fmt.Errorf("stat %v: %w", dst, err))
			continue
		}
		if exists {
			logger.Debug("bundled snapshot already present",
				zap.Stringer("version", snapshot.Version),
				zap.String("file", dst),
			)
			continue
		}
		if err := importFile(afs, resources, snapshot.Path, dst); err != nil {
			logger.Error("failed to import bundled snapshot",
				zap.Stringer("version", snapshot.Version),
				zap.String("src", snapshot.Path),
				zap.Error(err),
			)
			importErrors.Inc()
			errs = append(errs, err)
			continue
		}
		logger.Info("bundled snapshot imported",
			zap.Stringer("version", snapshot.Version),
			zap.String("file", dst),
		)
		importedSnapshots.Inc()
		imported = append(imported, dst)
	}
	return imported, errors.Join(errs...)
}

func importFile(afs afero.Fs, resources fs.FS, src, dst string) error {
	srcf, err := resources.Open(src)
	if err != nil {
		return fmt.Errorf("open bundled snapshot %v: %w", src, err)
	}
	defer srcf.Close()
	sf, err := newSnapshotFile(afs, dst)
	if err != nil {
		return err
	}
	if err := sf.copy(afs, srcf); err != nil {
		return fmt.Errorf("import %v: %w", src, err)
	}
	return nil
}
