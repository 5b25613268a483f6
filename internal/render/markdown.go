// SPDX-License-Identifier: MIT

// Package render converts guide Markdown into the HTML that docport serves.
// Rendering is delegated to goldmark; this package only owns the AST walk
// that extracts headings and outbound links, so the audit always sees the
// same anchors the rendered pages carry.
package render

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// Heading is one section heading of a rendered page.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
	ID    string `json:"id"`   // anchor ID as emitted in the HTML
	Line  int    `json:"line"` // 1-based source line, 0 if unknown
}

// Link is one outbound link found in a page.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text,omitempty"`
	Line int    `json:"line"` // 1-based source line, 0 if unknown
}

// Result holds the output of rendering one Markdown document.
type Result struct {
	HTML     []byte
	Title    string // first H1, empty if the document has none
	Headings []Heading
	Links    []Link
}

// Renderer renders Markdown documents. Guide pages suppress raw HTML;
// policy pages pass embedded HTML through.
type Renderer struct {
	guide  goldmark.Markdown
	policy goldmark.Markdown
}

// New creates a Renderer with GFM extensions and automatic heading IDs.
func New() *Renderer {
	exts := goldmark.WithExtensions(
		extension.Table,
		extension.Strikethrough,
		extension.Linkify,
	)
	parserOpts := goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	)
	return &Renderer{
		guide: goldmark.New(
			exts,
			parserOpts,
		),
		policy: goldmark.New(
			exts,
			parserOpts,
			// Legal-notice documents may carry embedded HTML.
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
	}
}

// Guide renders a guide page. Raw HTML blocks are suppressed.
func (r *Renderer) Guide(src []byte) (*Result, error) {
	return r.render(r.guide, src)
}

// Policy renders a legal-notice page with embedded HTML passed through.
func (r *Renderer) Policy(src []byte) (*Result, error) {
	return r.render(r.policy, src)
}

func (r *Renderer) render(md goldmark.Markdown, src []byte) (*Result, error) {
	reader := text.NewReader(src)
	doc := md.Parser().Parse(reader)

	res := &Result{}
	if err := collect(doc, src, res); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := md.Renderer().Render(&buf, src, doc); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	res.HTML = buf.Bytes()
	return res, nil
}

// collect walks the parsed document once, gathering headings and links.
func collect(doc ast.Node, src []byte, res *Result) error {
	return ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			h := Heading{
				Level: node.Level,
				Text:  string(textOf(node, src)),
				Line:  lineOf(node, src),
			}
			if id, ok := node.AttributeString("id"); ok {
				if b, ok := id.([]byte); ok {
					h.ID = string(b)
				} else if s, ok := id.(string); ok {
					h.ID = s
				}
			}
			res.Headings = append(res.Headings, h)
			if node.Level == 1 && res.Title == "" {
				res.Title = h.Text
			}
		case *ast.Link:
			res.Links = append(res.Links, Link{
				Href: string(node.Destination),
				Text: string(textOf(node, src)),
				Line: lineOf(node, src),
			})
		case *ast.AutoLink:
			res.Links = append(res.Links, Link{
				Href: string(node.URL(src)),
				Line: lineOf(node, src),
			})
		}
		return ast.WalkContinue, nil
	})
}

// textOf concatenates the literal text below n.
func textOf(n ast.Node, src []byte) []byte {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
		case *ast.String:
			buf.Write(t.Value)
		default:
			buf.Write(textOf(c, src))
		}
	}
	return buf.Bytes()
}

// lineOf derives the 1-based source line of a node from the segment of its
// first text child. Inline nodes have no line info of their own.
func lineOf(n ast.Node, src []byte) int {
	offset := -1
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := c.(*ast.Text); ok {
			offset = t.Segment.Start
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	if offset < 0 || offset > len(src) {
		return 0
	}
	return 1 + bytes.Count(src[:offset], []byte{'\n'})
}
