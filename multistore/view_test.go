package multistore_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"testing/fstest"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bisq-network/bisq-sub006/checkpoint"
	"github.com/bisq-network/bisq-sub006/common/types"
	"github.com/bisq-network/bisq-sub006/filesystem"
	"github.com/bisq-network/bisq-sub006/multistore"
	"github.com/bisq-network/bisq-sub006/store"
)

const dir = "/data/db"

func genRecords(prefix string, n int) []types.Record {
	rst := make([]types.Record, 0, n)
	for i := range n {
		rst = append(rst, types.NewRecord([]byte(fmt.Sprintf("%s-%d", prefix, i))))
	}
	return rst
}

func encode(t testing.TB, records []types.Record) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, store.WriteRecords(&buf, records))
	return buf.Bytes()
}

// release is the set of snapshots shipped with one version of the software.
type release map[string][]types.Record

func (r release) bundle(t testing.TB) (fstest.MapFS, *checkpoint.Manifest) {
	t.Helper()
	resources := fstest.MapFS{}
	m := checkpoint.NewManifest()
	for version, records := range r {
		v := types.MustParseVersion(version)
		path := "db/" + checkpoint.SnapshotName("records", v)
		resources[path] = &fstest.MapFile{Data: encode(t, records)}
		require.NoError(t, m.Add(v, path))
	}
	return resources, m
}

func newView(t testing.TB, fs afero.Fs, r release) *multistore.View {
	t.Helper()
	opts := []multistore.Opt{
		multistore.WithLogger(zaptest.NewLogger(t)),
		multistore.WithFilesystem(fs),
	}
	if r != nil {
		resources, m := r.bundle(t)
		opts = append(opts, multistore.WithBundled(resources, m))
	}
	return multistore.New(multistore.Config{Dir: dir, BaseName: "records"}, opts...)
}

func initView(t testing.TB, fs afero.Fs, r release) *multistore.View {
	t.Helper()
	v := newView(t, fs, r)
	require.NoError(t, v.Initialize(context.Background()))
	t.Cleanup(func() { require.NoError(t, v.Close()) })
	return v
}

func put(t testing.TB, v *multistore.View, records []types.Record) {
	t.Helper()
	for _, rec := range records {
		added, err := v.Put(rec)
		require.NoError(t, err)
		require.True(t, added)
	}
}

func storeContents(t testing.TB, v *multistore.View) map[string][]types.Record {
	t.Helper()
	stores, err := v.Stores()
	require.NoError(t, err)
	rst := map[string][]types.Record{}
	for _, s := range stores {
		rst[s.Name()] = s.ReadAll()
	}
	return rst
}

func requireDisjoint(t testing.TB, v *multistore.View) {
	t.Helper()
	stores, err := v.Stores()
	require.NoError(t, err)
	owner := map[types.Hash32]string{}
	total := 0
	for _, s := range stores {
		for _, h := range s.Hashes() {
			other, exists := owner[h]
			require.False(t, exists, "%s is in %s and %s", h.ShortString(), other, s.Name())
			owner[h] = s.Name()
		}
		total += s.Len()
	}
	all, err := v.GetAll()
	require.NoError(t, err)
	require.Len(t, all, total)
}

func TestNotReady(t *testing.T) {
	v := newView(t, afero.NewMemMapFs(), nil)
	require.False(t, v.Ready())

	_, err := v.GetAll()
	require.ErrorIs(t, err, multistore.ErrNotReady)
	_, err = v.GetSince(types.NewVersion(1, 0, 0))
	require.ErrorIs(t, err, multistore.ErrNotReady)
	_, err = v.Put(types.NewRecord([]byte("a")))
	require.ErrorIs(t, err, multistore.ErrNotReady)
	_, err = v.Live()
	require.ErrorIs(t, err, multistore.ErrNotReady)
	_, err = v.Snapshots()
	require.ErrorIs(t, err, multistore.ErrNotReady)
	_, err = v.Versions()
	require.ErrorIs(t, err, multistore.ErrNotReady)
	_, err = v.Has(types.Hash32{})
	require.ErrorIs(t, err, multistore.ErrNotReady)
	require.NoError(t, v.Close())
}

func TestFreshInstall(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := release{
		"1.0.0": genRecords("a", 5),
		"1.1.0": genRecords("b", 3),
	}
	v := initView(t, fs, r)
	require.True(t, v.Ready())
	require.ErrorIs(t, v.Initialize(context.Background()), multistore.ErrAlreadyInitialized)

	versions, err := v.Versions()
	require.NoError(t, err)
	require.Equal(t, []types.Version{types.NewVersion(1, 0, 0), types.NewVersion(1, 1, 0)}, versions)

	live, err := v.Live()
	require.NoError(t, err)
	require.Zero(t, live.Len())

	all, err := v.GetAll()
	require.NoError(t, err)
	require.ElementsMatch(t, append(genRecords("a", 5), genRecords("b", 3)...), all)
	requireDisjoint(t, v)
}

func TestReconcileIdempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := release{
		"1.0.0": genRecords("a", 4),
		"1.2.0": genRecords("c", 4),
	}
	first := newView(t, fs, r)
	require.NoError(t, first.Initialize(context.Background()))
	put(t, first, genRecords("live", 3))
	before := storeContents(t, first)
	require.NoError(t, first.Close())

	for range 2 {
		again := newView(t, fs, r)
		require.NoError(t, again.Initialize(context.Background()))
		after := storeContents(t, again)
		require.Equal(t, len(before), len(after))
		for name, records := range before {
			require.ElementsMatch(t, records, after[name], name)
		}
		require.NoError(t, again.Close())
	}
}

func TestMigration(t *testing.T) {
	fs := afero.NewMemMapFs()
	old := release{"1.0.0": genRecords("a", 3)}
	v1 := newView(t, fs, old)
	require.NoError(t, v1.Initialize(context.Background()))
	runtime := genRecords("runtime", 6)
	put(t, v1, runtime)
	require.NoError(t, v1.Close())

	// the next release ships part of what the node collected at runtime
	next := release{
		"1.0.0": genRecords("a", 3),
		"1.1.0": runtime[:4],
	}
	v2 := initView(t, fs, next)
	live, err := v2.Live()
	require.NoError(t, err)
	require.ElementsMatch(t, runtime[4:], live.ReadAll())
	requireDisjoint(t, v2)

	all, err := v2.GetAll()
	require.NoError(t, err)
	require.ElementsMatch(t, append(genRecords("a", 3), runtime...), all)
}

func TestUpdateKeepsOldSnapshots(t *testing.T) {
	fs := afero.NewMemMapFs()
	v1 := newView(t, fs, release{"1.0.0": genRecords("a", 3)})
	require.NoError(t, v1.Initialize(context.Background()))
	require.NoError(t, v1.Close())

	// a release that no longer bundles 1.0.0 still serves it from disk
	v2 := initView(t, fs, release{"1.1.0": genRecords("b", 2)})
	versions, err := v2.Versions()
	require.NoError(t, err)
	require.Equal(t, []types.Version{types.NewVersion(1, 0, 0), types.NewVersion(1, 1, 0)}, versions)
	all, err := v2.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 5)
}

func TestExistingSnapshotNotReplaced(t *testing.T) {
	fs := afero.NewMemMapFs()
	present := genRecords("present", 2)
	require.NoError(t, afero.WriteFile(fs, dir+"/records_1.0.0", encode(t, present), 0o600))

	v := initView(t, fs, release{"1.0.0": genRecords("bundled", 5)})
	all, err := v.GetAll()
	require.NoError(t, err)
	require.ElementsMatch(t, present, all)
}

func TestInterruptedWrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	bundled := genRecords("bundled", 3)
	// complete copies that were never renamed into place
	leftovers := map[string][]types.Record{
		"records_1.2.3": bundled,
		"records":       genRecords("rewrite", 2),
	}
	for name, records := range leftovers {
		tmp, err := afero.TempFile(fs, dir, filesystem.TempPattern(name))
		require.NoError(t, err)
		_, err = tmp.Write(encode(t, records))
		require.NoError(t, err)
		require.NoError(t, tmp.Close())
	}

	v := initView(t, fs, release{"1.2.3": bundled})
	versions, err := v.Versions()
	require.NoError(t, err)
	require.Equal(t, []types.Version{types.NewVersion(1, 2, 3)}, versions)
	all, err := v.GetAll()
	require.NoError(t, err)
	require.ElementsMatch(t, bundled, all)

	entries, err := afero.ReadDir(fs, dir)
	require.NoError(t, err)
	for _, entry := range entries {
		require.False(t, filesystem.IsTempFile(entry.Name()), entry.Name())
	}
}

func TestSkipUnreadableSnapshot(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, dir+"/records_0.9.0", []byte("garbage"), 0o600))

	v := initView(t, fs, release{"1.0.0": genRecords("a", 2)})
	versions, err := v.Versions()
	require.NoError(t, err)
	require.Equal(t, []types.Version{types.NewVersion(1, 0, 0)}, versions)
}

func TestLiveUnavailable(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, dir+"/records", []byte("garbage"), 0o600))

	v := newView(t, fs, nil)
	require.ErrorIs(t, v.Initialize(context.Background()), multistore.ErrLiveUnavailable)
	require.False(t, v.Ready())
}

func TestSnapshotOverlap(t *testing.T) {
	fs := afero.NewMemMapFs()
	shared := genRecords("shared", 1)
	v := newView(t, fs, release{
		"1.0.0": append(genRecords("a", 2), shared...),
		"1.1.0": append(genRecords("b", 2), shared...),
	})
	require.ErrorIs(t, v.Initialize(context.Background()), multistore.ErrSnapshotOverlap)
	require.False(t, v.Ready())
}

func TestGetSince(t *testing.T) {
	fs := afero.NewMemMapFs()
	v := initView(t, fs, release{
		"1.0.0":  genRecords("a", 2),
		"1.9.0":  genRecords("b", 2),
		"1.10.0": genRecords("c", 2),
	})
	live := genRecords("live", 2)
	put(t, v, live)

	for _, tc := range []struct {
		since string
		want  []types.Record
	}{
		{"0.1.0", append(append(append(genRecords("a", 2), genRecords("b", 2)...), genRecords("c", 2)...), live...)},
		{"1.0.0", append(append(genRecords("b", 2), genRecords("c", 2)...), live...)},
		{"1.9.0", append(genRecords("c", 2), live...)},
		{"1.10.0", live},
		{"2.0.0", live},
	} {
		got, err := v.GetSince(types.MustParseVersion(tc.since))
		require.NoError(t, err)
		require.ElementsMatch(t, tc.want, got, tc.since)
	}

	// monotonic: a newer bound never returns more
	versions := []string{"0.1.0", "1.0.0", "1.5.0", "1.9.0", "1.10.0", "3.0.0"}
	for i := 1; i < len(versions); i++ {
		older, err := v.GetSince(types.MustParseVersion(versions[i-1]))
		require.NoError(t, err)
		newer, err := v.GetSince(types.MustParseVersion(versions[i]))
		require.NoError(t, err)
		require.Subset(t, older, newer)
	}
}

func TestPut(t *testing.T) {
	fs := afero.NewMemMapFs()
	bundled := genRecords("a", 2)
	v := initView(t, fs, release{"1.0.0": bundled})

	rec := types.NewRecord([]byte("new"))
	added, err := v.Put(rec)
	require.NoError(t, err)
	require.True(t, added)

	live, err := v.Live()
	require.NoError(t, err)
	require.True(t, live.Has(rec.Hash))
	snapshots, err := v.Snapshots()
	require.NoError(t, err)
	for _, s := range snapshots {
		require.False(t, s.Has(rec.Hash))
	}
	has, err := v.Has(rec.Hash)
	require.NoError(t, err)
	require.True(t, has)

	added, err = v.Put(rec)
	require.NoError(t, err)
	require.False(t, added)

	// records held by a snapshot stay there
	added, err = v.Put(bundled[0])
	require.NoError(t, err)
	require.False(t, added)
	require.False(t, live.Has(bundled[0].Hash))
	requireDisjoint(t, v)

	bad := types.NewRecord([]byte("bad"))
	bad.Payload = []byte("tampered")
	_, err = v.Put(bad)
	require.ErrorIs(t, err, types.ErrHashMismatch)
}

func TestNoBundledResources(t *testing.T) {
	v := initView(t, afero.NewMemMapFs(), nil)
	snapshots, err := v.Snapshots()
	require.NoError(t, err)
	require.Empty(t, snapshots)
	put(t, v, genRecords("live", 2))
	all, err := v.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func writeLive(t *testing.T, fs afero.Fs, records []types.Record) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, dir+"/records", encode(t, records), 0o600))
}

func TestMigrationScenario(t *testing.T) {
	objects := genRecords("object", 2)
	fs := afero.NewMemMapFs()
	writeLive(t, fs, objects)

	v := initView(t, fs, release{"1.0.0": objects[:1]})
	live, err := v.Live()
	require.NoError(t, err)
	require.ElementsMatch(t, objects[1:], live.ReadAll())
	snapshots, err := v.Snapshots()
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	require.ElementsMatch(t, objects[:1], snapshots[0].ReadAll())

	all, err := v.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	since, err := v.GetSince(types.NewVersion(1, 0, 0))
	require.NoError(t, err)
	require.Len(t, since, 1)
}

func TestUpdateScenario(t *testing.T) {
	objects := genRecords("object", 3)
	fs := afero.NewMemMapFs()
	writeLive(t, fs, objects[1:])
	require.NoError(t, afero.WriteFile(fs, dir+"/records_1.0.0", encode(t, objects[:1]), 0o600))

	v := initView(t, fs, release{
		"1.0.0": objects[:1],
		"1.1.0": objects[1:2],
	})
	stores, err := v.Stores()
	require.NoError(t, err)
	require.Len(t, stores, 3)

	all, err := v.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 3)

	since, err := v.GetSince(types.NewVersion(1, 0, 0))
	require.NoError(t, err)
	require.ElementsMatch(t, objects[1:], since)
	since, err = v.GetSince(types.NewVersion(1, 1, 0))
	require.NoError(t, err)
	require.ElementsMatch(t, objects[2:], since)

	live, err := v.Live()
	require.NoError(t, err)
	require.ElementsMatch(t, objects[2:], live.ReadAll())
}
