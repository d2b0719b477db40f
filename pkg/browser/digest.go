package browser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// DefaultDigestLength caps the condensed markup of one frame, in bytes.
const DefaultDigestLength = 60000

// Digest is condensed page markup with the page metadata pulled out.
type Digest struct {
	HTML        string
	Title       string
	Description string
	Truncated   bool
}

// digestHTML reduces raw page markup to the elements and attributes an
// interpreter needs to target things: structure, text, form controls and
// frame markers. Scripts, styles and other noise are dropped.
func digestHTML(rawHTML string, maxLength int) (*Digest, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	w := &digestWriter{max: maxLength}
	w.walk(doc, 0)

	return &Digest{
		HTML:        w.b.String(),
		Title:       findTitle(doc),
		Description: findMetaDescription(doc),
		Truncated:   w.truncated,
	}, nil
}

type digestWriter struct {
	b         strings.Builder
	n         int
	max       int
	truncated bool
}

func (w *digestWriter) full() bool {
	if w.n >= w.max {
		w.truncated = true
	}
	return w.truncated
}

func (w *digestWriter) walk(n *html.Node, depth int) {
	if w.full() {
		return
	}

	switch n.Type {
	case html.CommentNode, html.DoctypeNode:
		return
	case html.TextNode:
		w.text(n.Data)
		return
	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		if droppedTags[tag] {
			return
		}
		if tag == "iframe" || tag == "frame" {
			w.frameMarker(n, depth)
			return
		}
		w.element(n, tag, depth)
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c, depth)
	}
}

func (w *digestWriter) text(data string) {
	text := strings.Join(strings.Fields(data), " ")
	if text == "" {
		return
	}
	if w.n+len(text) > w.max {
		cut := w.max - w.n
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "..."
		w.truncated = true
	}
	w.b.WriteString(text)
	w.n += len(text)
}

func (w *digestWriter) indent(depth int) {
	pad := "\n" + strings.Repeat("  ", depth)
	w.b.WriteString(pad)
	w.n += len(pad)
}

func (w *digestWriter) openTag(n *html.Node, tag string) {
	start := w.b.Len()
	w.b.WriteString("<")
	w.b.WriteString(tag)
	for _, attr := range n.Attr {
		if keepAttribute(tag, attr.Key) {
			fmt.Fprintf(&w.b, ` %s="%s"`, strings.ToLower(attr.Key), html.EscapeString(attr.Val))
		}
	}
	w.b.WriteString(">")
	w.n += w.b.Len() - start
}

func (w *digestWriter) element(n *html.Node, tag string, depth int) {
	block := blockTags[tag]
	if depth > 0 && block {
		w.indent(depth)
	}
	w.openTag(n, tag)
	start := w.b.Len()

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c, depth+1)
		if w.truncated {
			break
		}
	}

	if voidTags[tag] {
		return
	}
	// Elements holding only inline content close on the same line.
	if block && strings.Contains(w.b.String()[start:], "\n") {
		w.indent(depth)
	}
	w.b.WriteString("</" + tag + ">")
	w.n += len(tag) + 3
}

// frameMarker records where a child frame sits so a step can name it.
// Frame contents are digested separately.
func (w *digestWriter) frameMarker(n *html.Node, depth int) {
	w.indent(depth)
	w.openTag(n, "iframe")
	w.b.WriteString("</iframe>")
	w.n += len("</iframe>")
}

var droppedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"embed":    true,
	"object":   true,
	"svg":      true,
	"canvas":   true,
	"head":     true,
}

var blockTags = map[string]bool{
	"div": true, "p": true, "section": true, "article": true,
	"header": true, "footer": true, "nav": true, "main": true, "aside": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "li": true,
	"table": true, "tr": true, "td": true, "th": true,
	"form": true, "fieldset": true, "label": true, "dialog": true,
	"blockquote": true, "pre": true,
}

var voidTags = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

var globalAttributes = map[string]bool{
	"id":              true,
	"class":           true,
	"name":            true,
	"role":            true,
	"title":           true,
	"tabindex":        true,
	"contenteditable": true,
}

var tagAttributes = map[string][]string{
	"a":        {"href", "target"},
	"img":      {"src", "alt"},
	"input":    {"type", "placeholder", "value", "checked", "disabled", "for"},
	"textarea": {"placeholder", "disabled"},
	"select":   {"multiple", "disabled"},
	"option":   {"value", "selected"},
	"button":   {"type", "disabled", "value"},
	"label":    {"for"},
	"form":     {"action", "method"},
	"iframe":   {"src"},
	"frame":    {"src"},
}

// keepAttribute reports whether an attribute helps target the element.
func keepAttribute(tag, attr string) bool {
	attr = strings.ToLower(attr)
	if globalAttributes[attr] || strings.HasPrefix(attr, "aria-") || strings.HasPrefix(attr, "data-") {
		return true
	}
	for _, allowed := range tagAttributes[tag] {
		if attr == allowed {
			return true
		}
	}
	return false
}

// findTitle returns the text of the first <title> element.
func findTitle(doc *html.Node) string {
	if n := findElement(doc, func(n *html.Node) bool { return n.Data == "title" }); n != nil {
		if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			return strings.TrimSpace(n.FirstChild.Data)
		}
	}
	return ""
}

// findMetaDescription returns the content of <meta name="description">.
func findMetaDescription(doc *html.Node) string {
	n := findElement(doc, func(n *html.Node) bool {
		return n.Data == "meta" && attrValue(n, "name") == "description" && attrValue(n, "content") != ""
	})
	if n == nil {
		return ""
	}
	return strings.TrimSpace(attrValue(n, "content"))
}

func findElement(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, match); found != nil {
			return found
		}
	}
	return nil
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
