// SPDX-License-Identifier: MIT

// Package content models the guide corpus: the set of Markdown pages under
// the guide root, their rendered form, and the link topology between them.
package content

import (
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/docport/docport/internal/render"
)

// Page is one guide page, fully rendered.
type Page struct {
	Slug     string           `json:"slug"`
	Path     string           `json:"path"` // source path relative to the guide root
	Title    string           `json:"title"`
	Headings []render.Heading `json:"headings"`
	Links    []render.Link    `json:"links"`
	ModTime  time.Time        `json:"modTime"`
	Size     int64            `json:"size"`
	Hash     string           `json:"hash"` // sha256 of the Markdown source

	Source []byte `json:"-"`
	HTML   []byte `json:"-"` // rendered body, without the page shell
}

// Anchors returns the set of heading anchor IDs on the page.
func (p *Page) Anchors() map[string]struct{} {
	out := make(map[string]struct{}, len(p.Headings))
	for _, h := range p.Headings {
		if h.ID != "" {
			out[h.ID] = struct{}{}
		}
	}
	return out
}

// LinkKind classifies a link target the way the published site resolves it.
type LinkKind int

const (
	// LinkInternal points at another guide page (foo.html, foo.md).
	LinkInternal LinkKind = iota
	// LinkSelfFragment points at an anchor on the same page (#section).
	LinkSelfFragment
	// LinkExternal leaves the documentation site (http, https, mailto).
	LinkExternal
	// LinkAppPath points into the chat application itself (/#settings).
	LinkAppPath
	// LinkOther is anything else (absolute paths, unknown schemes).
	LinkOther
)

func (k LinkKind) String() string {
	switch k {
	case LinkInternal:
		return "internal"
	case LinkSelfFragment:
		return "self-fragment"
	case LinkExternal:
		return "external"
	case LinkAppPath:
		return "app-path"
	default:
		return "other"
	}
}

// Target is a classified link destination.
type Target struct {
	Kind     LinkKind
	Slug     string // set for LinkInternal
	Fragment string
}

// ClassifyHref resolves a raw href the way relative links resolve between
// published guide pages. `foo.html` is the canonical internal form;
// `foo.md` is accepted as the authoring-time alias.
func ClassifyHref(href string) Target {
	href = strings.TrimSpace(href)
	if href == "" {
		return Target{Kind: LinkOther}
	}

	if strings.HasPrefix(href, "#") {
		return Target{Kind: LinkSelfFragment, Fragment: strings.TrimPrefix(href, "#")}
	}

	u, err := url.Parse(href)
	if err != nil {
		return Target{Kind: LinkOther}
	}

	if u.Scheme != "" {
		switch u.Scheme {
		case "http", "https", "mailto":
			return Target{Kind: LinkExternal, Fragment: u.Fragment}
		default:
			return Target{Kind: LinkOther}
		}
	}

	if strings.HasPrefix(u.Path, "/") || (u.Path == "" && u.Fragment != "") {
		// Rooted paths belong to the application the guide documents
		// (e.g. /#organization, /#settings), not to the guide corpus.
		return Target{Kind: LinkAppPath, Fragment: u.Fragment}
	}

	ext := strings.ToLower(path.Ext(u.Path))
	if ext != ".html" && ext != ".md" {
		return Target{Kind: LinkOther, Fragment: u.Fragment}
	}

	base := path.Base(u.Path)
	slug := strings.TrimSuffix(base, path.Ext(base))
	if slug == "" {
		return Target{Kind: LinkOther, Fragment: u.Fragment}
	}
	return Target{Kind: LinkInternal, Slug: slug, Fragment: u.Fragment}
}
