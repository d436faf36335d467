// Package parser extracts the indexable fields of a stored document.
package parser

import (
	"fmt"

	"github.com/starford/questcard/internal/apperr"
	"github.com/starford/questcard/internal/document"
	"github.com/starford/questcard/internal/node"
)

// Result holds the output of parsing a document file.
type Result struct {
	Document *document.Document
	Title    string
	Body     string
	QuestIDs []string
}

// Parser decodes documents through a node registry.
type Parser struct {
	reg *node.Registry
}

// New returns a parser using reg, or the default registry when reg is nil.
func New(reg *node.Registry) *Parser {
	if reg == nil {
		reg = node.DefaultRegistry()
	}
	return &Parser{reg: reg}
}

// Parse decodes raw editor-state JSON and derives title, searchable body and
// embedded quest ids. Decode failures wrap apperr.ErrInvalidDocument.
func (p *Parser) Parse(data []byte) (*Result, error) {
	doc, err := document.Unmarshal(data, p.reg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidDocument, err)
	}
	return &Result{
		Document: doc,
		Title:    doc.Title(),
		Body:     doc.TextContent(),
		QuestIDs: doc.QuestIDs(),
	}, nil
}

// Parse parses data with the default registry.
func Parse(data []byte) (*Result, error) {
	return New(nil).Parse(data)
}
