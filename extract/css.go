// Package extract turns Montreal assessment result pages, served as rendered
// HTML or as JSON payloads, into the canonical output record.
//
// The CSS engine here is intentionally a strict subset: comma-separated
// groups, descendant and direct-child combinators, and compound selectors
// made of a tag name, `.class` filters, an `#id` filter, and `:nth-child(n)`.
// Matching is a structural tree walk; result pages are small enough that no
// index is needed.
package extract

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Doc is a parsed HTML document queryable with the CSS subset.
type Doc struct {
	root *html.Node
}

// ParseHTML parses src into a queryable document. Malformed markup is
// tolerated: the parser recovers and the queries simply match less.
func ParseHTML(src string) *Doc {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		root = &html.Node{Type: html.DocumentNode}
	}
	return &Doc{root: root}
}

// CSS returns all elements matching the selector, in document order.
func (d *Doc) CSS(sel string) []*Node {
	return queryAll(d.root, sel, false)
}

// CSSFirst returns the first element matching the selector, or nil.
func (d *Doc) CSSFirst(sel string) *Node {
	matches := queryAll(d.root, sel, true)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

// Node is one element of a parsed document.
type Node struct {
	n *html.Node
}

// CSS returns matching elements among the node's descendants (the node
// itself is excluded).
func (nd *Node) CSS(sel string) []*Node {
	return queryAll(nd.n, sel, false)
}

// CSSFirst returns the first matching descendant, or nil.
func (nd *Node) CSSFirst(sel string) *Node {
	matches := queryAll(nd.n, sel, true)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

// Parent returns the parent element, or nil at the tree root.
func (nd *Node) Parent() *Node {
	p := nd.n.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil
	}
	return &Node{n: p}
}

// Tag returns the lowercase tag name.
func (nd *Node) Tag() string { return nd.n.Data }

// Attr returns the value of an attribute, or "".
func (nd *Node) Attr(key string) string { return attrVal(nd.n, key) }

// NextElementNamed walks following siblings and returns the first element
// with the given tag, or nil. Used for dt→dd pairing in definition lists.
func (nd *Node) NextElementNamed(tag string) *Node {
	for s := nd.n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode && s.Data == tag {
			return &Node{n: s}
		}
	}
	return nil
}

// Text concatenates all descendant text fragments in document order,
// collapses whitespace runs to single spaces, and trims.
func (nd *Node) Text() string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(nd.n)
	return CleanText(b.String())
}

// compound is one simple selector: tag, classes, id, nth-child position.
type compound struct {
	tag     string
	id      string
	classes []string
	nth     int // 1-based position among element siblings; 0 = unset
}

// step is a compound plus the combinator linking it to the previous one.
type step struct {
	child bool // true = `>`, false = descendant
	c     compound
}

func parseSelectorGroups(sel string) [][]step {
	var groups [][]step
	for _, part := range strings.Split(sel, ",") {
		steps := parseSteps(part)
		if len(steps) > 0 {
			groups = append(groups, steps)
		}
	}
	return groups
}

func parseSteps(part string) []step {
	part = strings.ReplaceAll(part, ">", " > ")
	var steps []step
	child := false
	for _, tok := range strings.Fields(part) {
		if tok == ">" {
			child = true
			continue
		}
		steps = append(steps, step{child: child, c: parseCompound(tok)})
		child = false
	}
	return steps
}

func parseCompound(tok string) compound {
	var c compound
	if i := strings.Index(tok, ":nth-child("); i >= 0 {
		rest := tok[i+len(":nth-child("):]
		if j := strings.IndexByte(rest, ')'); j >= 0 {
			c.nth, _ = strconv.Atoi(strings.TrimSpace(rest[:j]))
		}
		tok = tok[:i]
	}
	i := 0
	for i < len(tok) {
		switch tok[i] {
		case '.':
			j := nextMarker(tok, i+1)
			c.classes = append(c.classes, tok[i+1:j])
			i = j
		case '#':
			j := nextMarker(tok, i+1)
			c.id = tok[i+1:j]
			i = j
		default:
			j := nextMarker(tok, i)
			c.tag = strings.ToLower(tok[i:j])
			i = j
		}
	}
	return c
}

func nextMarker(s string, from int) int {
	for k := from; k < len(s); k++ {
		if s[k] == '.' || s[k] == '#' {
			return k
		}
	}
	return len(s)
}

func (c compound) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if c.tag != "" && c.tag != "*" && n.Data != c.tag {
		return false
	}
	if c.id != "" && attrVal(n, "id") != c.id {
		return false
	}
	for _, class := range c.classes {
		if !hasClass(n, class) {
			return false
		}
	}
	if c.nth > 0 && elementIndex(n) != c.nth {
		return false
	}
	return true
}

// elementIndex returns the 1-based position of n among its element siblings.
func elementIndex(n *html.Node) int {
	if n.Parent == nil {
		return 1
	}
	idx := 0
	for s := n.Parent.FirstChild; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			idx++
		}
		if s == n {
			return idx
		}
	}
	return 0
}

// matchFrom reports whether n matches steps[k] with all earlier steps
// satisfied by ancestors strictly below scope. Descendant combinators
// backtrack through every candidate ancestor.
func matchFrom(n *html.Node, steps []step, k int, scope *html.Node) bool {
	if !steps[k].c.matches(n) {
		return false
	}
	if k == 0 {
		return true
	}
	if steps[k].child {
		p := n.Parent
		if p == nil || p == scope || p.Type != html.ElementNode {
			return false
		}
		return matchFrom(p, steps, k-1, scope)
	}
	for p := n.Parent; p != nil && p != scope; p = p.Parent {
		if p.Type == html.ElementNode && matchFrom(p, steps, k-1, scope) {
			return true
		}
	}
	return false
}

func queryAll(scope *html.Node, sel string, firstOnly bool) []*Node {
	groups := parseSelectorGroups(sel)
	if len(groups) == 0 {
		return nil
	}
	var out []*Node
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n != scope && n.Type == html.ElementNode {
			for _, steps := range groups {
				if matchFrom(n, steps, len(steps)-1, scope) {
					out = append(out, &Node{n: n})
					if firstOnly {
						return true
					}
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(scope)
	return out
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attrVal(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
