package node

import (
	"encoding/json"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// QuestType is the persisted type tag of a quest reference.
	QuestType = "vantient-quest"
	// QuestVersion is the persisted schema version.
	QuestVersion = 1
	// QuestIDAttr marks an interchange element as a quest reference.
	QuestIDAttr = "data-lexical-vantient-quest-id"
	// QuestURLPrefix is the canonical public location of a quest.
	QuestURLPrefix = "https://cmty.space/quest"
)

// QuestNode is an embedded reference to a Vantient quest. It carries only the
// quest identifier and an alignment hint; the quest itself is resolved at
// render time by the quest view.
type QuestNode struct {
	base
	id string
}

var _ Node = (*QuestNode)(nil)

// NewQuestNode creates a quest reference. It fails with ErrMissingID when id is empty.
func NewQuestNode(id string, opts ...Option) (*QuestNode, error) {
	if err := validation.Validate(id, validation.Required); err != nil {
		return nil, ErrMissingID
	}
	n := &QuestNode{id: id}
	for _, opt := range opts {
		opt(&n.base)
	}
	return n, nil
}

// ID returns the quest identifier.
func (n *QuestNode) ID() string { return n.id }

// Type implements Node.
func (n *QuestNode) Type() string { return QuestType }

// TextContent returns the canonical quest URL.
func (n *QuestNode) TextContent() string {
	return QuestURLPrefix + "/" + n.id
}

type questJSON struct {
	blockJSON
	QuestID string `json:"questID"`
}

// ExportJSON implements Node.
func (n *QuestNode) ExportJSON() (json.RawMessage, error) {
	return json.Marshal(questJSON{
		blockJSON: blockJSON{Format: n.format, Type: QuestType, Version: QuestVersion},
		QuestID:   n.id,
	})
}

// ImportQuestJSON rebuilds a quest node from its persisted form. Unknown
// fields are ignored and a missing format falls back to FormatNone.
func ImportQuestJSON(raw json.RawMessage) (*QuestNode, error) {
	var v questJSON
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("node: decode %s: %w", QuestType, err)
	}
	n, err := NewQuestNode(v.QuestID)
	if err != nil {
		return nil, err
	}
	n.SetFormat(v.Format)
	return n, nil
}

// ExportMarkup implements Node. The element carries the quest id attribute and
// the canonical URL as fallback text.
func (n *QuestNode) ExportMarkup() *html.Node {
	el := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Div,
		Data:     "div",
		Attr:     []html.Attribute{{Key: QuestIDAttr, Val: n.id}},
	}
	el.AppendChild(&html.Node{Type: html.TextNode, Data: n.TextContent()})
	return el
}

// ImportQuestMarkup recognizes an element carrying QuestIDAttr. It reports
// false when the attribute is absent or empty. The attribute value is used
// verbatim.
func ImportQuestMarkup(s *goquery.Selection) (Node, bool) {
	id, ok := s.Attr(QuestIDAttr)
	if !ok || id == "" {
		return nil, false
	}
	n, err := NewQuestNode(id)
	if err != nil {
		return nil, false
	}
	return n, true
}

// SameReference reports whether a and b point at the same quest. Keys are
// never compared.
func SameReference(a, b *QuestNode) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.id == b.id
}

// ClassNames are the theme classes applied to an embed block.
type ClassNames struct {
	Base  string `yaml:"base" json:"base"`
	Focus string `yaml:"focus" json:"focus"`
}

// Theme holds the editor theme entries used by block nodes.
type Theme struct {
	EmbedBlock ClassNames `yaml:"embed_block" json:"embedBlock"`
}

// RenderContext is the editor configuration passed to Render.
type RenderContext struct {
	Theme Theme
}

// ViewProps is what a quest node hands to the view that resolves it.
type ViewProps struct {
	QuestID   string
	Format    Format
	NodeKey   Key
	ClassName ClassNames
}

// Render hands the node's identity to the quest view. It performs no I/O.
func (n *QuestNode) Render(rc RenderContext) ViewProps {
	return ViewProps{
		QuestID:   n.id,
		Format:    n.format,
		NodeKey:   n.key,
		ClassName: rc.Theme.EmbedBlock,
	}
}
