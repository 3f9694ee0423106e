package fchost

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

type classDirInterface interface {
	exists(path string) (bool, error)
	readFile(file string) (string, error)
	listDir(dir string) ([]fs.DirEntry, error)
	readLink(path string) (string, error)
}

var _ classDirInterface = &classDir{}

type classDir struct {
	rootDir string
	fs.FS
}

// e.g., default "/sys/class/fc_host"
func newClassDirInterface(rootDir string) (classDirInterface, error) {
	info, err := os.Stat(rootDir)
	if err != nil {
		return nil, fmt.Errorf("could not read %q: %w", rootDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("class dir %q is not a directory", rootDir)
	}
	return &classDir{
		rootDir: rootDir,
		FS:      os.DirFS(rootDir),
	}, nil
}

func (fs *classDir) exists(path string) (bool, error) {
	_, err := os.Stat(filepath.Join(fs.rootDir, path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (fs *classDir) readFile(file string) (string, error) {
	b, err := fs.Open(file)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = b.Close()
	}()

	value, err := io.ReadAll(b)
	if err != nil {
		return "", err
	}
	return string(bytes.TrimSpace(value)), nil
}

func (fs *classDir) listDir(dir string) ([]fs.DirEntry, error) {
	return os.ReadDir(filepath.Join(fs.rootDir, dir))
}

// readLink returns the symlink target, which for class entries is the
// device path and so carries the PCI bus address.
// It returns an empty string if the entry is not a symlink.
func (fs *classDir) readLink(path string) (string, error) {
	p := filepath.Join(fs.rootDir, path)
	info, err := os.Lstat(p)
	if err != nil {
		return "", err
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return "", nil
	}
	return os.Readlink(p)
}
