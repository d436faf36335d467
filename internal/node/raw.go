package node

import (
	"encoding/json"

	"golang.org/x/net/html"
)

// RawNode keeps a persisted node of an unregistered type so that documents
// written by newer editors survive a round trip untouched.
type RawNode struct {
	base
	typ  string
	data json.RawMessage
}

var _ Node = (*RawNode)(nil)

// NewRawNode wraps the persisted bytes of a node with type tag typ.
func NewRawNode(typ string, data json.RawMessage) *RawNode {
	cp := make(json.RawMessage, len(data))
	copy(cp, data)
	return &RawNode{typ: typ, data: cp}
}

// Type implements Node.
func (n *RawNode) Type() string { return n.typ }

// TextContent implements Node. Opaque nodes contribute no text.
func (n *RawNode) TextContent() string { return "" }

// ExportJSON implements Node.
func (n *RawNode) ExportJSON() (json.RawMessage, error) { return n.data, nil }

// ExportMarkup implements Node. Opaque nodes have no interchange form.
func (n *RawNode) ExportMarkup() *html.Node { return nil }
