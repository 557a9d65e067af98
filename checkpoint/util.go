package checkpoint

import (
	"bufio"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/afero"

	"github.com/bisq-network/bisq-sub006/filesystem"
)

const (
	schemaFile = "schema.json"
	dirPerm    = 0o700
	filePerm   = 0o600
)

//go:embed schema.json
var Schema string

// snapshotFile is written to a temporary file next to its destination and
// renamed into place on save, so readers never observe a partial copy.
type snapshotFile struct {
	file    afero.File
	fwriter *bufio.Writer
	path    string
}

func newSnapshotFile(fs afero.Fs, path string) (*snapshotFile, error) {
	if err := fs.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return nil, fmt.Errorf("create dst dir %v: %w", filepath.Dir(path), err)
	}
	tmpf, err := afero.TempFile(fs, filepath.Dir(path), filesystem.TempPattern(path))
	if err != nil {
		return nil, fmt.Errorf("%w: create tmp file", err)
	}
	return &snapshotFile{
		file:    tmpf,
		fwriter: bufio.NewWriter(tmpf),
		path:    path,
	}, nil
}

func (sf *snapshotFile) copy(fs afero.Fs, src io.Reader) error {
	n, err := io.Copy(sf.fwriter, src)
	if err != nil {
		sf.discard(fs)
		return fmt.Errorf("copy to tmp file: %w", err)
	}
	if n == 0 {
		sf.discard(fs)
		return errors.New("no snapshot data")
	}
	return sf.save(fs)
}

func (sf *snapshotFile) discard(fs afero.Fs) {
	sf.file.Close()
	fs.Remove(sf.file.Name())
}

func (sf *snapshotFile) save(fs afero.Fs) error {
	defer sf.file.Close()
	if err := sf.fwriter.Flush(); err != nil {
		return fmt.Errorf("flush tmp file: %w", err)
	}
	if err := sf.file.Sync(); err != nil {
		return fmt.Errorf("%w: sync tmp file", err)
	}
	if err := sf.file.Close(); err != nil {
		return fmt.Errorf("%w: close tmp file", err)
	}
	if err := fs.Rename(sf.file.Name(), sf.path); err != nil {
		return fmt.Errorf("%w: rename tmp file %v to %v", err, sf.file.Name(), sf.path)
	}
	return nil
}

// CopyFile copies src to dst on the same filesystem. dst must not exist.
func CopyFile(fs afero.Fs, src, dst string) error {
	if _, err := fs.Stat(dst); err == nil {
		return fmt.Errorf("copy %v: %w", dst, os.ErrExist)
	}
	srcf, err := fs.Open(src)
	if err != nil {
		return fmt.Errorf("open src file %v: %w", src, err)
	}
	defer srcf.Close()
	sf, err := newSnapshotFile(fs, dst)
	if err != nil {
		return err
	}
	return sf.copy(fs, srcf)
}

func ValidateSchema(data []byte) error {
	sch, err := jsonschema.CompileString(schemaFile, Schema)
	if err != nil {
		return fmt.Errorf("compile manifest json schema: %w", err)
	}
	var v any
	if err = json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal manifest data: %w", err)
	}
	if err = sch.Validate(v); err != nil {
		return fmt.Errorf("validate manifest data: %w", err)
	}
	return nil
}
