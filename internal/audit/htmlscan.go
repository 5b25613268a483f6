// SPDX-License-Identifier: MIT

package audit

import (
	"bytes"

	"golang.org/x/net/html"
)

// anchorIDs parses rendered HTML and returns the set of element IDs plus any
// IDs that occur more than once. Named anchors (<a name=...>) count too, so
// fragments into embedded HTML resolve like heading anchors do.
func anchorIDs(src []byte) (map[string]struct{}, []string, error) {
	doc, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return nil, nil, err
	}

	ids := make(map[string]struct{})
	var dups []string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, attr := range n.Attr {
				if attr.Key != "id" && !(attr.Key == "name" && n.Data == "a") {
					continue
				}
				if attr.Val == "" {
					continue
				}
				if _, seen := ids[attr.Val]; seen {
					dups = append(dups, attr.Val)
				} else {
					ids[attr.Val] = struct{}{}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return ids, dups, nil
}
