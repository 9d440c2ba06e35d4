package site

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Selector locates a template anchor by id ("#hero-title") or by class
// (".projects-track").
type Selector struct {
	ID    string
	Class string
}

// ParseSelector parses "#id" or ".class".
func ParseSelector(s string) (Selector, error) {
	switch {
	case len(s) > 1 && s[0] == '#':
		return Selector{ID: s[1:]}, nil
	case len(s) > 1 && s[0] == '.':
		return Selector{Class: s[1:]}, nil
	}

	return Selector{}, fmt.Errorf("unsupported selector %q", s)
}

func mustSelector(s string) Selector {
	sel, err := ParseSelector(s)
	if err != nil {
		panic(err)
	}

	return sel
}

func (s Selector) String() string {
	if s.ID != "" {
		return "#" + s.ID
	}

	return "." + s.Class
}

func (s Selector) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}

	if s.ID != "" {
		v, ok := attr(n, "id")

		return ok && v == s.ID
	}

	return hasClass(n, s.Class)
}

// find returns the first element under n matching sel in document order.
func find(n *html.Node, sel Selector) *html.Node {
	if sel.matches(n) {
		return n
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if m := find(c, sel); m != nil {
			return m
		}
	}

	return nil
}

// walk calls fn for every element under n in document order.
func walk(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}

	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val

			return
		}
	}

	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	n.Attr = slices.DeleteFunc(n.Attr, func(a html.Attribute) bool {
		return a.Namespace == "" && a.Key == key
	})
}

func hasClass(n *html.Node, class string) bool {
	v, ok := attr(n, "class")
	if !ok {
		return false
	}

	return slices.Contains(strings.Fields(v), class)
}

func addClass(n *html.Node, class string) {
	if hasClass(n, class) {
		return
	}

	v, _ := attr(n, "class")
	setAttr(n, "class", strings.TrimSpace(v+" "+class))
}

func clearChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

// setText replaces the children of n with a single text node. The renderer
// escapes text nodes, so value is stored raw.
func setText(n *html.Node, value string) {
	clearChildren(n)
	n.AppendChild(&html.Node{Type: html.TextNode, Data: value})
}

// setInner replaces the children of n with the parsed markup.
func setInner(n *html.Node, markup string) error {
	nodes, err := html.ParseFragment(strings.NewReader(markup), n)
	if err != nil {
		return err
	}

	clearChildren(n)

	for _, c := range nodes {
		n.AppendChild(c)
	}

	return nil
}

// removeScripts drops every <script src> whose file name is in names.
func removeScripts(doc *html.Node, names ...string) int {
	var doomed []*html.Node

	walk(doc, func(n *html.Node) {
		if n.DataAtom != atom.Script {
			return
		}

		src, ok := attr(n, "src")
		if !ok {
			return
		}

		src = src[strings.LastIndex(src, "/")+1:]
		if i := strings.IndexAny(src, "?#"); i >= 0 {
			src = src[:i]
		}

		if slices.Contains(names, src) {
			doomed = append(doomed, n)
		}
	})

	for _, n := range doomed {
		if next := n.NextSibling; next != nil && next.Type == html.TextNode && strings.TrimSpace(next.Data) == "" {
			n.Parent.RemoveChild(next)
		}

		n.Parent.RemoveChild(n)
	}

	return len(doomed)
}

// appendDataScript adds an inert JSON block as the last child of <head>.
func appendDataScript(doc *html.Node, id string, payload []byte) error {
	head := findAtom(doc, atom.Head)
	if head == nil {
		return fmt.Errorf("document has no head")
	}

	script := &html.Node{
		Type:     html.ElementNode,
		Data:     "script",
		DataAtom: atom.Script,
		Attr: []html.Attribute{
			{Key: "type", Val: "application/json"},
			{Key: "id", Val: id},
		},
	}
	script.AppendChild(&html.Node{Type: html.TextNode, Data: string(payload)})
	head.AppendChild(script)

	return nil
}

func findAtom(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if m := findAtom(c, a); m != nil {
			return m
		}
	}

	return nil
}
