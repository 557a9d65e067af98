package checkpoint_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bisq-network/bisq-sub006/checkpoint"
	"github.com/bisq-network/bisq-sub006/common/types"
)

func bundled(t *testing.T, files map[string]string) (fstest.MapFS, *checkpoint.Manifest) {
	t.Helper()
	resources := fstest.MapFS{}
	m := checkpoint.NewManifest()
	for version, data := range files {
		v := types.MustParseVersion(version)
		path := "db/" + checkpoint.SnapshotName("records", v)
		resources[path] = &fstest.MapFile{Data: []byte(data)}
		require.NoError(t, m.Add(v, path))
	}
	return resources, m
}

func TestImport(t *testing.T) {
	resources, m := bundled(t, map[string]string{
		"1.0.0": "first",
		"1.1.0": "second",
	})
	fs := afero.NewMemMapFs()
	dir := "/data/db"

	imported, err := checkpoint.Import(context.Background(), zaptest.NewLogger(t), fs, resources, m, dir, "records")
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "records_1.0.0"),
		filepath.Join(dir, "records_1.1.0"),
	}, imported)
	data, err := afero.ReadFile(fs, filepath.Join(dir, "records_1.1.0"))
	require.NoError(t, err)
	require.Equal(t, "second", string(data))

	// nothing to do on the second run
	imported, err = checkpoint.Import(context.Background(), zaptest.NewLogger(t), fs, resources, m, dir, "records")
	require.NoError(t, err)
	require.Empty(t, imported)
}

func TestImportKeepsExisting(t *testing.T) {
	resources, m := bundled(t, map[string]string{"1.0.0": "bundled"})
	fs := afero.NewMemMapFs()
	dst := "/db/records_1.0.0"
	require.NoError(t, afero.WriteFile(fs, dst, []byte("present"), 0o600))

	imported, err := checkpoint.Import(context.Background(), zaptest.NewLogger(t), fs, resources, m, "/db", "records")
	require.NoError(t, err)
	require.Empty(t, imported)
	data, err := afero.ReadFile(fs, dst)
	require.NoError(t, err)
	require.Equal(t, "present", string(data))
}

func TestImportMissingResource(t *testing.T) {
	resources, m := bundled(t, map[string]string{"1.0.0": "first", "2.0.0": "second"})
	delete(resources, "db/records_1.0.0")
	fs := afero.NewMemMapFs()

	imported, err := checkpoint.Import(context.Background(), zaptest.NewLogger(t), fs, resources, m, "/db", "records")
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Equal(t, []string{"/db/records_2.0.0"}, imported)

	entries, err := afero.ReadDir(fs, "/db")
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestImportEmptyResource(t *testing.T) {
	resources, m := bundled(t, map[string]string{"1.0.0": ""})
	fs := afero.NewMemMapFs()

	_, err := checkpoint.Import(context.Background(), zaptest.NewLogger(t), fs, resources, m, "/db", "records")
	require.ErrorContains(t, err, "no snapshot data")
	entries, err := afero.ReadDir(fs, "/db")
	require.NoError(t, err)
	require.Empty(t, entries, "temporary file is removed")
}

func TestImportCanceled(t *testing.T) {
	resources, m := bundled(t, map[string]string{"1.0.0": "first"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := checkpoint.Import(ctx, zaptest.NewLogger(t), afero.NewMemMapFs(), resources, m, "/db", "records")
	require.ErrorIs(t, err, context.Canceled)
}

func TestCopyFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := t.TempDir()
	src := filepath.Join(dir, "test_src")
	dst := filepath.Join(dir, "test_dest")
	err := checkpoint.CopyFile(fs, src, dst)
	require.ErrorIs(t, err, os.ErrNotExist)

	// create src file
	require.NoError(t, afero.WriteFile(fs, src, []byte("blah"), 0o600))
	err = checkpoint.CopyFile(fs, src, dst)
	require.NoError(t, err)

	// dst file cannot be copied over
	err = checkpoint.CopyFile(fs, src, dst)
	require.ErrorIs(t, err, os.ErrExist)
}
