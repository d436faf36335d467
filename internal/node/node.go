// Package node defines the block nodes that live in a questcard document:
// quest reference cards, paragraphs, and opaque nodes of unknown type.
package node

import (
	"encoding/json"
	"errors"

	"golang.org/x/net/html"
)

// ErrMissingID is returned when a reference node is constructed without an identifier.
var ErrMissingID = errors.New("node: id is required")

// Key is the identity token assigned to a node by its owning document.
type Key = string

// Node is implemented by every block node a document can hold.
type Node interface {
	// Type returns the persisted type tag.
	Type() string
	// Key returns the tree-assigned key, or "" while the node is detached.
	Key() Key
	// SetKey is called by the owning tree. Nodes never assign their own key.
	SetKey(Key)
	// TextContent is the plain-text representation of the node.
	TextContent() string
	// ExportJSON produces the persisted form.
	ExportJSON() (json.RawMessage, error)
	// ExportMarkup produces the interchange element.
	ExportMarkup() *html.Node
}

// Format is an element alignment hint.
type Format string

// Supported formats. The zero value means "no explicit alignment".
const (
	FormatNone    Format = ""
	FormatLeft    Format = "left"
	FormatStart   Format = "start"
	FormatCenter  Format = "center"
	FormatRight   Format = "right"
	FormatEnd     Format = "end"
	FormatJustify Format = "justify"
)

// ParseFormat maps s to a Format. Unknown values fall back to FormatNone.
func ParseFormat(s string) Format {
	switch f := Format(s); f {
	case FormatLeft, FormatStart, FormatCenter, FormatRight, FormatEnd, FormatJustify:
		return f
	default:
		return FormatNone
	}
}

// UnmarshalJSON decodes a format softly: unknown values and non-strings become FormatNone.
func (f *Format) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*f = FormatNone
		return nil
	}
	*f = ParseFormat(s)
	return nil
}

// base carries the fields shared by block nodes.
type base struct {
	key    Key
	format Format
}

func (b *base) Key() Key { return b.key }

func (b *base) SetKey(k Key) { b.key = k }

// Format returns the alignment hint.
func (b *base) Format() Format { return b.format }

// SetFormat replaces the alignment hint. Unknown values reset it.
func (b *base) SetFormat(f Format) { b.format = ParseFormat(string(f)) }

// Option configures a node at construction.
type Option func(*base)

// WithFormat restores a persisted format.
func WithFormat(f Format) Option {
	return func(b *base) { b.format = ParseFormat(string(f)) }
}

// WithKey restores a tree-assigned key.
func WithKey(k Key) Option {
	return func(b *base) { b.key = k }
}

// blockJSON is the envelope shared by every persisted block node.
type blockJSON struct {
	Format  Format `json:"format"`
	Type    string `json:"type"`
	Version int    `json:"version"`
}
