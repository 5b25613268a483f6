// SPDX-License-Identifier: MIT

package content

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/docport/docport/internal/log"
	"github.com/docport/docport/internal/render"
	"golang.org/x/sync/errgroup"
)

// maxScanDepth bounds how deep below the guide root the scanner descends.
// The published guide is flat with at most one grouping level.
const maxScanDepth = 2

// Source is one discovered Markdown file, before rendering.
type Source struct {
	Slug    string
	Path    string // relative to the guide root
	Raw     []byte
	ModTime time.Time
	Size    int64
}

// Corpus is an immutable snapshot of the rendered guide. Refreshes build a
// new Corpus and swap it in; a Corpus is never mutated after construction.
type Corpus struct {
	pages   map[string]*Page
	ordered []string
	builtAt time.Time
}

// Get returns the page with the given slug.
func (c *Corpus) Get(slug string) (*Page, bool) {
	p, ok := c.pages[slug]
	return p, ok
}

// Pages returns all pages ordered by slug.
func (c *Corpus) Pages() []*Page {
	out := make([]*Page, 0, len(c.ordered))
	for _, slug := range c.ordered {
		out = append(out, c.pages[slug])
	}
	return out
}

// Len returns the number of pages.
func (c *Corpus) Len() int { return len(c.ordered) }

// BuiltAt returns when the snapshot was constructed.
func (c *Corpus) BuiltAt() time.Time { return c.builtAt }

// Scan discovers Markdown sources under the guide root. Hidden entries and
// non-Markdown files are skipped. Duplicate slugs across sub-directories are
// a scan error: the published site is flat, so basenames must be unique.
func Scan(ctx context.Context, root string) ([]Source, error) {
	logger := log.WithComponentFromContext(ctx, "content")

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat guide root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("guide root %s is not a directory", root)
	}

	var sources []Source
	seen := make(map[string]string) // slug -> rel path

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}

		name := d.Name()
		if strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if strings.Count(rel, string(filepath.Separator)) >= maxScanDepth-1 {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(name), ".md") {
			return nil
		}

		slug := strings.TrimSuffix(name, filepath.Ext(name))
		if prev, dup := seen[slug]; dup {
			return fmt.Errorf("duplicate page slug %q (%s and %s)", slug, prev, rel)
		}
		seen[slug] = rel

		// #nosec G304 -- p is confined to the operator-configured guide root
		raw, readErr := os.ReadFile(p)
		if readErr != nil {
			return fmt.Errorf("read page %s: %w", rel, readErr)
		}
		fi, statErr := d.Info()
		if statErr != nil {
			return fmt.Errorf("stat page %s: %w", rel, statErr)
		}

		sources = append(sources, Source{
			Slug:    slug,
			Path:    filepath.ToSlash(rel),
			Raw:     raw,
			ModTime: fi.ModTime(),
			Size:    fi.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan guide root: %w", err)
	}

	logger.Debug().
		Int("pages", len(sources)).
		Str(log.FieldPath, root).
		Msg("scanned guide root")

	return sources, nil
}

// Build renders all sources into an immutable Corpus using a bounded worker
// pool. Worker count 0 means GOMAXPROCS.
func Build(ctx context.Context, r *render.Renderer, sources []Source, workers int) (*Corpus, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	pages := make([]*Page, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := r.Guide(src.Raw)
			if err != nil {
				return fmt.Errorf("render page %s: %w", src.Path, err)
			}
			sum := sha256.Sum256(src.Raw)
			title := res.Title
			if title == "" {
				title = src.Slug
			}
			pages[i] = &Page{
				Slug:     src.Slug,
				Path:     src.Path,
				Title:    title,
				Headings: res.Headings,
				Links:    res.Links,
				ModTime:  src.ModTime,
				Size:     src.Size,
				Hash:     hex.EncodeToString(sum[:]),
				Source:   src.Raw,
				HTML:     res.HTML,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byslug := make(map[string]*Page, len(pages))
	ordered := make([]string, 0, len(pages))
	for _, p := range pages {
		byslug[p.Slug] = p
		ordered = append(ordered, p.Slug)
	}
	sort.Strings(ordered)

	return &Corpus{
		pages:   byslug,
		ordered: ordered,
		builtAt: time.Now(),
	}, nil
}
