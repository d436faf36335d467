// Package document implements the block tree that owns questcard nodes:
// key assignment, the persisted editor-state JSON, and HTML import/export.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/starford/questcard/internal/node"
)

// importPolicy cleans pasted markup before recognition. Scripts, styles and
// event handlers are removed; data attributes and text alignment survive.
var importPolicy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowDataAttributes()
	p.AllowStyles("text-align").
		MatchingEnum("left", "start", "center", "right", "end", "justify").
		Globally()
	return p
}()

// Document is an ordered list of block nodes. It is the sole owner of its
// nodes and the only place keys are assigned.
type Document struct {
	nodes   []node.Node
	nextKey int
}

// New returns an empty document.
func New() *Document {
	return &Document{nextKey: 1}
}

// Append attaches n at the end of the document and assigns it a fresh key.
func (d *Document) Append(n node.Node) node.Key {
	k := strconv.Itoa(d.nextKey)
	d.nextKey++
	n.SetKey(k)
	d.nodes = append(d.nodes, n)
	return k
}

// Remove detaches the node with key k. It reports whether a node was removed.
func (d *Document) Remove(k node.Key) bool {
	for i, n := range d.nodes {
		if n.Key() == k {
			d.nodes = append(d.nodes[:i], d.nodes[i+1:]...)
			n.SetKey("")
			return true
		}
	}
	return false
}

// Get returns the node with key k.
func (d *Document) Get(k node.Key) (node.Node, bool) {
	for _, n := range d.nodes {
		if n.Key() == k {
			return n, true
		}
	}
	return nil, false
}

// Nodes returns the document's nodes in order. The slice must not be modified.
func (d *Document) Nodes() []node.Node { return d.nodes }

// Len returns the number of nodes.
func (d *Document) Len() int { return len(d.nodes) }

// Quests returns the quest nodes in document order.
func (d *Document) Quests() []*node.QuestNode {
	var out []*node.QuestNode
	for _, n := range d.nodes {
		if q, ok := n.(*node.QuestNode); ok {
			out = append(out, q)
		}
	}
	return out
}

// QuestIDs returns the distinct quest identifiers in order of first appearance.
func (d *Document) QuestIDs() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, q := range d.Quests() {
		if _, ok := seen[q.ID()]; ok {
			continue
		}
		seen[q.ID()] = struct{}{}
		out = append(out, q.ID())
	}
	return out
}

// TextContent joins the text of all blocks with a blank line.
func (d *Document) TextContent() string {
	parts := make([]string, 0, len(d.nodes))
	for _, n := range d.nodes {
		if t := n.TextContent(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Title returns the first paragraph's text, or the first quest URL when the
// document has no paragraphs.
func (d *Document) Title() string {
	for _, n := range d.nodes {
		if p, ok := n.(*node.ParagraphNode); ok && p.TextContent() != "" {
			return firstLine(p.TextContent())
		}
	}
	if qs := d.Quests(); len(qs) > 0 {
		return qs[0].TextContent()
	}
	return ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}

type rootJSON struct {
	Children  []json.RawMessage `json:"children"`
	Direction *string           `json:"direction"`
	Format    string            `json:"format"`
	Indent    int               `json:"indent"`
	Type      string            `json:"type"`
	Version   int               `json:"version"`
}

type stateJSON struct {
	Root rootJSON `json:"root"`
}

// Marshal encodes the document as editor-state JSON.
func (d *Document) Marshal() ([]byte, error) {
	children := make([]json.RawMessage, 0, len(d.nodes))
	for _, n := range d.nodes {
		raw, err := n.ExportJSON()
		if err != nil {
			return nil, fmt.Errorf("document: export %s: %w", n.Type(), err)
		}
		children = append(children, raw)
	}
	return json.Marshal(stateJSON{Root: rootJSON{
		Children: children,
		Type:     "root",
		Version:  1,
	}})
}

// Unmarshal decodes editor-state JSON through reg. Nodes of unregistered
// types are preserved as opaque nodes; a node that fails to decode fails
// the whole document.
func Unmarshal(data []byte, reg *node.Registry) (*Document, error) {
	var st stateJSON
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("document: decode: %w", err)
	}
	d := New()
	for i, raw := range st.Root.Children {
		n, err := reg.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("document: child %d: %w", i, err)
		}
		d.Append(n)
	}
	return d, nil
}

// ImportHTML builds a document from markup. The markup is sanitized first,
// then elements are visited in document order; a recognized element becomes
// a node and its subtree is skipped, otherwise its children are visited.
func ImportHTML(r io.Reader, reg *node.Registry) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(importPolicy.SanitizeReader(r))
	if err != nil {
		return nil, fmt.Errorf("document: parse html: %w", err)
	}
	d := New()
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Children().Each(func(_ int, child *goquery.Selection) {
			if n, ok := reg.ImportMarkup(child); ok {
				d.Append(n)
				return
			}
			walk(child)
		})
	}
	walk(doc.Find("body"))
	return d, nil
}

// ExportHTML renders every node's interchange element, one per line.
func (d *Document) ExportHTML() (string, error) {
	var buf bytes.Buffer
	for _, n := range d.nodes {
		el := n.ExportMarkup()
		if el == nil {
			continue
		}
		if err := html.Render(&buf, el); err != nil {
			return "", fmt.Errorf("document: render %s: %w", n.Type(), err)
		}
		buf.WriteByte('\n')
	}
	return buf.String(), nil
}
