// Package local writes rendered digests to the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidName is returned for digest names that are not a plain *.html file name.
var ErrInvalidName = errors.New("digest name must be a plain .html file name")

// Config captures the parameters for the local digest archive.
type Config struct {
	// BaseDir is the directory digests are written into.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// Store keeps one HTML file per digest in a flat directory. A digest written
// twice for the same name (two runs on one day) replaces the earlier copy.
type Store struct {
	dir string
}

// New creates the digest directory if needed.
func New(cfg Config) (*Store, error) {
	dir := strings.TrimSpace(cfg.BaseDir)
	if dir == "" {
		return nil, errors.New("digest directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create digest directory: %w", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat digest directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("digest directory %s is not a directory", dir)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve digest directory: %w", err)
	}
	return &Store{dir: abs}, nil
}

// Put writes the digest to a temp file and renames it into place, so readers
// never see a half-written digest. It returns a file:// URI.
func (s *Store) Put(ctx context.Context, name string, data io.Reader) (string, error) {
	if err := validName(name); err != nil {
		return "", fmt.Errorf("put %q: %w", name, err)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("put %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp digest: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName) //nolint:errcheck // best-effort cleanup
		}
	}()

	if _, err := io.Copy(tmp, data); err != nil {
		_ = tmp.Close() //nolint:errcheck // copy error takes precedence
		return "", fmt.Errorf("write digest %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close digest %s: %w", name, err)
	}

	final := filepath.Join(s.dir, name)
	if err := os.Rename(tmpName, final); err != nil {
		return "", fmt.Errorf("publish digest %s: %w", name, err)
	}
	committed = true
	return "file://" + final, nil
}

func validName(name string) error {
	if strings.TrimSpace(name) == "" ||
		name != filepath.Base(name) ||
		strings.ContainsAny(name, `/\`) ||
		strings.HasPrefix(name, ".") ||
		filepath.Ext(name) != ".html" {
		return ErrInvalidName
	}
	return nil
}
