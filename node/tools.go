package node

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bisq-network/bisq-sub006/checkpoint"
	"github.com/bisq-network/bisq-sub006/common/types"
	"github.com/bisq-network/bisq-sub006/config"
	"github.com/bisq-network/bisq-sub006/multistore"
	"github.com/bisq-network/bisq-sub006/store"
)

var (
	ErrNothingToExport = errors.New("live store is empty")
	ErrStaleVersion    = errors.New("snapshot version is not newer than existing snapshots")
)

// withView runs fn against a reconciled view while holding the data dir lock.
func withView(c *cobra.Command, conf *config.Config, configPath string, fn func(*App, *multistore.View) error) error {
	if err := configure(c, configPath, conf); err != nil {
		return err
	}
	app := newApp(conf)
	if err := app.Lock(); err != nil {
		return fmt.Errorf("getting exclusive file lock: %w", err)
	}
	defer app.Unlock()
	if err := app.Initialize(); err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}
	c.SilenceUsage = true

	view, err := app.openView(c.Context())
	if err != nil {
		return err
	}
	defer view.Close()
	return fn(app, view)
}

func statsCommand(conf *config.Config, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print record counts of the live store and every snapshot",
		RunE: func(c *cobra.Command, args []string) error {
			return withView(c, conf, *configPath, func(_ *App, view *multistore.View) error {
				return Stats(view, c.OutOrStdout())
			})
		},
	}
}

func snapshotCommand(conf *config.Config, configPath *string) *cobra.Command {
	snapshot := &cobra.Command{
		Use:   "snapshot",
		Short: "Release tooling for bundled snapshots",
	}
	var (
		version string
		out     string
	)
	export := &cobra.Command{
		Use:   "export",
		Short: "Write the live store as a snapshot for the given release and add it to the manifest",
		RunE: func(c *cobra.Command, args []string) error {
			v, err := types.ParseVersion(version)
			if err != nil {
				return err
			}
			return withView(c, conf, *configPath, func(app *App, view *multistore.View) error {
				path, n, err := ExportSnapshot(view, out, conf.View.BaseName, v)
				if err != nil {
					return err
				}
				app.log.Info("snapshot exported",
					zap.String("file", path),
					zap.Stringer("version", v),
					zap.Int("records", n),
				)
				return nil
			})
		},
	}
	export.Flags().StringVar(&version, "release", "", "release version the snapshot is tagged with")
	export.Flags().StringVarP(&out, "out", "o", filepath.Join("resources", "snapshots"),
		"directory holding the bundled snapshots and manifest.json")
	export.MarkFlagRequired("release")
	snapshot.AddCommand(export)
	return snapshot
}

// Stats writes one line per store with its version and record count.
func Stats(view *multistore.View, w io.Writer) error {
	stores, err := view.Stores()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STORE\tVERSION\tRECORDS")
	total := 0
	for _, s := range stores {
		version := "live"
		if v, ok := s.Version(); ok {
			version = v.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\n", s.Name(), version, s.Len())
		total += s.Len()
	}
	fmt.Fprintf(tw, "total\t\t%d\n", total)
	return tw.Flush()
}

// ExportSnapshot writes the live store records to dir as the snapshot of
// version and adds it to dir/manifest.json. Both files are replaced
// atomically. The version must be newer than every snapshot the view holds
// and every snapshot in the manifest.
func ExportSnapshot(view *multistore.View, dir, base string, version types.Version) (string, int, error) {
	live, err := view.Live()
	if err != nil {
		return "", 0, err
	}
	versions, err := view.Versions()
	if err != nil {
		return "", 0, err
	}
	manifest, err := checkpoint.ReadManifest(os.DirFS(dir))
	if err != nil {
		return "", 0, err
	}
	for _, v := range append(versions, manifest.Versions()...) {
		if !v.Less(version) {
			return "", 0, fmt.Errorf("%w: %s <= %s", ErrStaleVersion, version, v)
		}
	}
	records := live.ReadAll()
	if len(records) == 0 {
		return "", 0, ErrNothingToExport
	}

	name := checkpoint.SnapshotName(base, version)
	if err := manifest.Add(version, name); err != nil {
		return "", 0, err
	}
	data, err := manifest.Marshal()
	if err != nil {
		return "", 0, err
	}

	var buf bytes.Buffer
	if err := store.WriteRecords(&buf, records); err != nil {
		return "", 0, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := atomic.WriteFile(path, &buf); err != nil {
		return "", 0, fmt.Errorf("write snapshot %s: %w", path, err)
	}
	if err := atomic.WriteFile(filepath.Join(dir, checkpoint.ManifestFile), bytes.NewReader(data)); err != nil {
		return "", 0, fmt.Errorf("write manifest: %w", err)
	}
	return path, len(records), nil
}
