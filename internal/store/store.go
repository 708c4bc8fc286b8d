// Package store lays out downloaded images on disk: one folder per URL,
// holding the original bytes under "full" plus one file per materialized
// normalized size. File existence here is the ground truth the catalog
// indexes over.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/KalilDev/cached-sized-image/internal/sizing"
)

// ErrNotCached is returned when the requested file is absent or empty. A
// zero-length payload where content was expected is never a cache hit.
var ErrNotCached = errors.New("store: not cached")

// Mirror receives a copy of every file the store materializes. Uploads
// are advisory; a mirror failure never fails the local write.
type Mirror interface {
	Put(object string, data []byte)
}

// Store is the local image store rooted at one cache directory.
type Store struct {
	root   string
	mirror Mirror
	logger *slog.Logger
}

// New creates a store rooted at dir. mirror may be nil.
func New(dir string, mirror Mirror, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}
	return &Store{root: dir, mirror: mirror, logger: logger}, nil
}

// FolderFor derives the folder name for a URL from its last path segment.
// The derivation is deterministic so the same URL always maps to the same
// folder, and the catalog can record it once.
func FolderFor(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if segment := path.Base(u.Path); segment != "" && segment != "/" && segment != "." {
			return sanitize(segment)
		}
	}
	return sanitize(rawURL)
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}

// EnsureFolder creates the folder for url if needed and returns its path.
func (s *Store) EnsureFolder(rawURL string) (string, error) {
	dir := filepath.Join(s.root, FolderFor(rawURL))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create image folder: %w", err)
	}
	return dir, nil
}

// FullPath returns the path of the original download for url. The file
// may not exist.
func (s *Store) FullPath(rawURL string) string {
	return filepath.Join(s.root, FolderFor(rawURL), sizing.FullName)
}

// SizePath returns the path of the materialized variant file for url.
func (s *Store) SizePath(rawURL string, size sizing.Size) string {
	return filepath.Join(s.root, FolderFor(rawURL), size.Name())
}

// HasFull reports whether a non-empty original exists for url, without
// reading it.
func (s *Store) HasFull(rawURL string) bool {
	info, err := os.Stat(s.FullPath(rawURL))
	return err == nil && info.Size() > 0
}

// ReadFull returns the original bytes for url, or ErrNotCached.
func (s *Store) ReadFull(rawURL string) ([]byte, error) {
	return s.read(s.FullPath(rawURL))
}

// WriteFull stores the original bytes for url. A non-empty full file
// already on disk is left untouched so re-downloads never redo the write.
func (s *Store) WriteFull(rawURL string, data []byte) error {
	if _, err := s.ReadFull(rawURL); err == nil {
		return nil
	}
	return s.write(rawURL, sizing.FullName, data)
}

// ReadSize returns the variant bytes for url at size, or ErrNotCached.
func (s *Store) ReadSize(rawURL string, size sizing.Size) ([]byte, error) {
	return s.read(s.SizePath(rawURL, size))
}

// WriteSize stores a materialized variant. Rewriting the same bytes to
// the same path is safe.
func (s *Store) WriteSize(rawURL string, size sizing.Size, data []byte) error {
	return s.write(rawURL, size.Name(), data)
}

func (s *Store) read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotCached
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		s.logger.Warn("zero-length cache file treated as missing", "path", path)
		return nil, ErrNotCached
	}
	return data, nil
}

// write lands the file via a temp file and rename so an interrupted write
// never leaves a partial payload behind.
func (s *Store) write(rawURL, name string, data []byte) error {
	dir, err := s.EnsureFolder(rawURL)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", name, err)
	}
	target := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("finalize %s: %w", name, err)
	}
	if s.mirror != nil {
		object := FolderFor(rawURL) + "/" + name
		go s.mirror.Put(object, data)
	}
	return nil
}
