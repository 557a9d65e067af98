// Package filesystem resolves user supplied paths and prepares directories.
package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// OwnerReadWriteExec is the permission of directories created for the node.
const OwnerReadWriteExec = 0o700

// GetUserHomeDirectory returns the user home directory if one is set.
func GetUserHomeDirectory() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// GetCanonicalPath returns an os-specific full path:
// a leading ~ is replaced with the home dir, ${vars} are expanded and the
// result is cleaned.
func GetCanonicalPath(p string) string {
	if strings.HasPrefix(p, "~/") || strings.HasPrefix(p, "~\\") {
		if home := GetUserHomeDirectory(); home != "" {
			p = home + p[1:]
		}
	}
	return filepath.Clean(os.ExpandEnv(p))
}

// GetFullDirectoryPath returns the canonical path of name and creates the
// directory if it doesn't exist.
func GetFullDirectoryPath(afs afero.Fs, name string) (string, error) {
	path := GetCanonicalPath(name)
	if err := afs.MkdirAll(path, OwnerReadWriteExec); err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	return path, nil
}

// PathExists reports whether path exists.
func PathExists(afs afero.Fs, path string) bool {
	_, err := afs.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

const tempSuffix = ".tmp"

// TempPattern is the afero.TempFile pattern for a file that will be renamed
// to name. The result is hidden and never collides with a store file name.
func TempPattern(name string) string {
	return "." + filepath.Base(name) + ".*" + tempSuffix
}

// IsTempFile reports whether name was created with TempPattern.
func IsTempFile(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, tempSuffix)
}

// RemoveTempFiles deletes files in dir left behind by an interrupted write.
// A missing dir is not an error. Returns the removed paths.
func RemoveTempFiles(afs afero.Fs, dir string) ([]string, error) {
	entries, err := afero.ReadDir(afs, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var (
		removed []string
		errs    []error
	)
	for _, entry := range entries {
		if entry.IsDir() || !IsTempFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := afs.Remove(path); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
			continue
		}
		removed = append(removed, path)
	}
	return removed, errors.Join(errs...)
}
