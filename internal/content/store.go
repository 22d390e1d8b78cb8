package content

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pders01/devportal/internal/debuglog"
)

// ErrNotFound is returned when no page matches a lookup.
var ErrNotFound = errors.New("page not found")

// Store holds every page below a content directory.
type Store struct {
	dir string

	mu    sync.RWMutex
	pages map[string]*Page
	ids   []string
}

// Load reads every markdown page below dir.
func Load(dir string) (*Store, error) {
	s := &Store{dir: dir}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the content root.
func (s *Store) Dir() string {
	return s.dir
}

// Reload re-reads the content directory. On error the previous pages stay.
func (s *Store) Reload() error {
	pages := make(map[string]*Page)
	err := filepath.WalkDir(s.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != s.dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !isMarkdown(p) {
			return nil
		}
		rel, err := filepath.Rel(s.dir, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("reading %s: %w", rel, err)
		}
		page, err := ParsePage(filepath.ToSlash(rel), data)
		if err != nil {
			return err
		}
		if prev, dup := pages[page.ID]; dup {
			debuglog.Warnf("content: page id %q in %s shadows %s", page.ID, page.Path, prev.Path)
		}
		pages[page.ID] = page
		return nil
	})
	if err != nil {
		return fmt.Errorf("loading content from %s: %w", s.dir, err)
	}

	ids := make([]string, 0, len(pages))
	for id := range pages {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	s.mu.Lock()
	s.pages = pages
	s.ids = ids
	s.mu.Unlock()

	debuglog.WithFields(map[string]any{"dir": s.dir, "pages": len(ids)}).Infof("content loaded")
	return nil
}

// Pages returns every page ordered by id.
func (s *Store) Pages() []*Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Page, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.pages[id])
	}
	return out
}

// Len returns the number of pages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// PageInfo returns the page with id.
func (s *Store) PageInfo(id string) (*Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.pages[strings.Trim(id, "/")]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// TaggedPages returns pages matching t, ordered by display name. Pages of
// type solution describe the solution itself and are left out.
func (s *Store) TaggedPages(t Tags) []*Page {
	var out []*Page
	for _, p := range s.Pages() {
		if p.Type != TypeSolution && t.Matches(p) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Title()) < strings.ToLower(out[j].Title())
	})
	return out
}

// PageLevelInfo returns the solution page matching t.
func (s *Store) PageLevelInfo(t Tags) (*Page, error) {
	for _, p := range s.Pages() {
		if p.Type == TypeSolution && t.Matches(p) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: solution %q", ErrNotFound, t.Solution)
}

// Partials resolves named page ids to their markdown bodies.
func (s *Store) Partials(ids map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	for name, id := range ids {
		p, err := s.PageInfo(id)
		if err != nil {
			return nil, fmt.Errorf("partial %s: %w", name, err)
		}
		out[name] = p.Body
	}
	return out, nil
}

// Solutions returns the solution pages ordered by id.
func (s *Store) Solutions() []*Page {
	var out []*Page
	for _, p := range s.Pages() {
		if p.Type == TypeSolution {
			out = append(out, p)
		}
	}
	return out
}

func isMarkdown(p string) bool {
	ext := strings.ToLower(filepath.Ext(p))
	return ext == ".md" || ext == ".markdown"
}
