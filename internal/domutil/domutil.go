// Package domutil holds the DOM helpers shared by the components that read
// page snapshots: attribute access, text normalization and positional XPath
// generation.
package domutil

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Attr returns the value of the named attribute, or "".
func Attr(n *html.Node, name string) string {
	return htmlquery.SelectAttr(n, name)
}

// HasAttr reports whether the attribute is present at all, regardless of
// value (boolean HTML attributes like required and disabled).
func HasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}

// CleanText collapses runs of whitespace into single spaces.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Ancestor returns the nearest ancestor element with the given tag.
func Ancestor(n *html.Node, tag string) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == tag {
			return p
		}
	}
	return nil
}

// Root returns the document root of the node's tree.
func Root(n *html.Node) *html.Node {
	cur := n
	for cur.Parent != nil {
		cur = cur.Parent
	}
	return cur
}

// XPathLiteral quotes a string for embedding in an XPath expression,
// handling embedded quotes via concat().
func XPathLiteral(s string) string {
	if !strings.Contains(s, `'`) {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, `'`)
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}

// BuildXPath produces an absolute, positional XPath for a node, preferring
// an id-based address when one exists. This is the stable selector all
// downstream interaction uses.
func BuildXPath(n *html.Node) string {
	if n == nil {
		return ""
	}
	if id := Attr(n, "id"); id != "" {
		return fmt.Sprintf(`//*[@id=%s]`, XPathLiteral(id))
	}

	var segments []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		pos := 1
		for sib := cur.PrevSibling; sib != nil; sib = sib.PrevSibling {
			if sib.Type == html.ElementNode && sib.Data == cur.Data {
				pos++
			}
		}
		segments = append([]string{fmt.Sprintf("%s[%d]", cur.Data, pos)}, segments...)
	}
	return "/" + strings.Join(segments, "/")
}

// FieldID derives the stable identifier of a form control: name, then id,
// then its positional XPath.
func FieldID(n *html.Node) string {
	if name := Attr(n, "name"); name != "" {
		return name
	}
	if id := Attr(n, "id"); id != "" {
		return id
	}
	return BuildXPath(n)
}
