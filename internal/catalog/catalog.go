// Package catalog persists the index of which URLs have which normalized
// sizes already materialized on disk. The document is the single source of
// truth for cache knowledge; the image store holds the bytes themselves.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/KalilDev/cached-sized-image/internal/sizing"
)

// Entry records the materialized variants of one URL. Folder is derived
// once from the URL and never changes; Sizes only grows.
type Entry struct {
	Folder string
	URL    string
	Sizes  []sizing.Size
}

// HasSize reports whether the entry already lists the given bucket.
func (e Entry) HasSize(s sizing.Size) bool {
	for _, have := range e.Sizes {
		if have == s {
			return true
		}
	}
	return false
}

// Catalog maps source URL to its entry. At most one entry per URL.
type Catalog map[string]Entry

// record is the wire form of an entry. Widths and Heights are two
// equal-length lists; index i of both together form one size, and a null
// in either position marks the full sentinel.
type record struct {
	Folder  string     `json:"folder"`
	URL     string     `json:"url"`
	Widths  []*float64 `json:"widths"`
	Heights []*float64 `json:"heights"`
}

// Merge unions the recorded sizes of two entries for the same URL,
// preferring the new entry's folder and URL. Merging an entry with itself
// changes nothing; merge order does not matter.
func Merge(existing *Entry, update Entry) Entry {
	if existing == nil {
		return update
	}
	merged := Entry{
		Folder: update.Folder,
		URL:    update.URL,
		Sizes:  append([]sizing.Size(nil), existing.Sizes...),
	}
	for _, s := range update.Sizes {
		if !merged.HasSize(s) {
			merged.Sizes = append(merged.Sizes, s)
		}
	}
	return merged
}

// File owns the persisted catalog document. Every read-modify-write cycle
// runs under one mutex: concurrent loads for different sizes of the same
// URL must not lose each other's updates (last-writer-wins on the whole
// document would).
type File struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

func NewFile(path string, logger *slog.Logger) *File {
	return &File{path: path, logger: logger}
}

// Load reads the document from disk. A missing file is an empty catalog.
// Malformed content degrades to an empty catalog as well: corrupt metadata
// forces a re-fetch or re-resize, but must never block image delivery.
func (f *File) Load() Catalog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadLocked()
}

func (f *File) loadLocked() Catalog {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			f.logger.Warn("catalog unreadable, starting empty", "path", f.path, "error", err)
		}
		return Catalog{}
	}
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		f.logger.Warn("catalog malformed, starting empty", "path", f.path, "error", err)
		return Catalog{}
	}
	cat := make(Catalog, len(records))
	for _, r := range records {
		if r.URL == "" || len(r.Widths) != len(r.Heights) {
			f.logger.Warn("catalog record skipped", "url", r.URL, "folder", r.Folder)
			continue
		}
		entry := Entry{Folder: r.Folder, URL: r.URL}
		for i := range r.Widths {
			var s sizing.Size
			if r.Widths[i] == nil || r.Heights[i] == nil {
				s = sizing.Full()
			} else {
				s = sizing.NewSize(*r.Widths[i], *r.Heights[i])
			}
			if !entry.HasSize(s) {
				entry.Sizes = append(entry.Sizes, s)
			}
		}
		cat[r.URL] = entry
	}
	return cat
}

// Lookup returns the entry for url, if any.
func (f *File) Lookup(url string) (Entry, bool) {
	entry, ok := f.Load()[url]
	return entry, ok
}

// Commit merges the entry into the persisted document and rewrites it in
// full. The load-merge-save cycle holds the mutex so concurrent commits
// serialize instead of clobbering each other.
func (f *File) Commit(entry Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cat := f.loadLocked()
	if existing, ok := cat[entry.URL]; ok {
		entry = Merge(&existing, entry)
	}
	cat[entry.URL] = entry
	return f.saveLocked(cat)
}

func (f *File) saveLocked(cat Catalog) error {
	records := make([]record, 0, len(cat))
	for _, entry := range cat {
		r := record{
			Folder:  entry.Folder,
			URL:     entry.URL,
			Widths:  make([]*float64, 0, len(entry.Sizes)),
			Heights: make([]*float64, 0, len(entry.Sizes)),
		}
		for _, s := range entry.Sizes {
			if s.IsFull() {
				r.Widths = append(r.Widths, nil)
				r.Heights = append(r.Heights, nil)
				continue
			}
			w, h := s.Width, s.Height
			r.Widths = append(r.Widths, &w)
			r.Heights = append(r.Heights, &h)
		}
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].URL < records[j].URL })

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	return nil
}
