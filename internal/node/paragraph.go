package node

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParagraphType is the persisted type tag of a paragraph.
const ParagraphType = "paragraph"

// ParagraphNode is a plain text block.
//
// It persists as {"text": ...}. Paragraphs written by a Lexical editor carry
// their text in child text nodes instead; those are read for the text and
// kept verbatim on export.
type ParagraphNode struct {
	base
	text string
	raw  json.RawMessage
}

var _ Node = (*ParagraphNode)(nil)

// NewParagraphNode creates a paragraph holding text.
func NewParagraphNode(text string, opts ...Option) *ParagraphNode {
	n := &ParagraphNode{text: text}
	for _, opt := range opts {
		opt(&n.base)
	}
	return n
}

// Type implements Node.
func (n *ParagraphNode) Type() string { return ParagraphType }

// TextContent implements Node.
func (n *ParagraphNode) TextContent() string { return n.text }

type paragraphJSON struct {
	blockJSON
	Text     *string           `json:"text,omitempty"`
	Children []json.RawMessage `json:"children,omitempty"`
}

// inlineJSON is the part of a Lexical inline node that carries text.
type inlineJSON struct {
	Type     string            `json:"type"`
	Text     string            `json:"text"`
	Children []json.RawMessage `json:"children"`
}

// ExportJSON implements Node.
func (n *ParagraphNode) ExportJSON() (json.RawMessage, error) {
	if n.raw != nil {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(n.raw, &fields); err != nil {
			return nil, fmt.Errorf("node: encode %s: %w", ParagraphType, err)
		}
		format, err := json.Marshal(n.format)
		if err != nil {
			return nil, err
		}
		fields["format"] = format
		return json.Marshal(fields)
	}
	text := n.text
	return json.Marshal(paragraphJSON{
		blockJSON: blockJSON{Format: n.format, Type: ParagraphType, Version: 1},
		Text:      &text,
	})
}

// ImportParagraphJSON rebuilds a paragraph from its persisted form: either
// the compact {"text": ...} form or a Lexical paragraph with children.
func ImportParagraphJSON(raw json.RawMessage) (*ParagraphNode, error) {
	var v paragraphJSON
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("node: decode %s: %w", ParagraphType, err)
	}
	if v.Text != nil || v.Children == nil {
		var text string
		if v.Text != nil {
			text = *v.Text
		}
		return NewParagraphNode(text, WithFormat(v.Format)), nil
	}
	var sb strings.Builder
	if err := appendInlineText(&sb, v.Children); err != nil {
		return nil, fmt.Errorf("node: decode %s: %w", ParagraphType, err)
	}
	n := NewParagraphNode(sb.String(), WithFormat(v.Format))
	n.raw = append(json.RawMessage(nil), raw...)
	return n, nil
}

func appendInlineText(sb *strings.Builder, children []json.RawMessage) error {
	for _, raw := range children {
		var c inlineJSON
		if err := json.Unmarshal(raw, &c); err != nil {
			return err
		}
		switch c.Type {
		case "linebreak":
			sb.WriteByte('\n')
		case "tab":
			sb.WriteByte('\t')
		default:
			sb.WriteString(c.Text)
			if err := appendInlineText(sb, c.Children); err != nil {
				return err
			}
		}
	}
	return nil
}

// ExportMarkup implements Node.
func (n *ParagraphNode) ExportMarkup() *html.Node {
	el := &html.Node{Type: html.ElementNode, DataAtom: atom.P, Data: "p"}
	if n.format != FormatNone {
		el.Attr = append(el.Attr, html.Attribute{Key: "style", Val: "text-align: " + string(n.format)})
	}
	el.AppendChild(&html.Node{Type: html.TextNode, Data: n.text})
	return el
}

// ImportParagraphMarkup converts a <p> element. Paragraphs with only
// whitespace are not applicable.
func ImportParagraphMarkup(s *goquery.Selection) (Node, bool) {
	text := strings.TrimSpace(s.Text())
	if text == "" {
		return nil, false
	}
	return NewParagraphNode(text, WithFormat(alignmentOf(s))), true
}

// blockSelector matches elements that hold blocks of their own.
const blockSelector = "p, div, h1, h2, h3, h4, h5, h6, ul, ol, li, blockquote, pre, table, section, article"

// ImportTextBlockMarkup converts a heading, list item or other text block
// into a paragraph when it has no nested blocks. It is the low-priority
// fallback so pasted text is not lost.
func ImportTextBlockMarkup(s *goquery.Selection) (Node, bool) {
	if s.Children().Filter(blockSelector).Length() > 0 {
		return nil, false
	}
	return ImportParagraphMarkup(s)
}

func alignmentOf(s *goquery.Selection) Format {
	style, ok := s.Attr("style")
	if !ok {
		return FormatNone
	}
	for _, decl := range strings.Split(style, ";") {
		prop, val, found := strings.Cut(decl, ":")
		if found && strings.TrimSpace(prop) == "text-align" {
			return ParseFormat(strings.TrimSpace(val))
		}
	}
	return FormatNone
}
