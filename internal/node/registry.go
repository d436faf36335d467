package node

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Decoder rebuilds a node from its persisted form.
type Decoder func(raw json.RawMessage) (Node, error)

// Recognizer converts interchange elements of a given tag into nodes.
// Match is a cheap predicate; Convert may still report false.
type Recognizer struct {
	Tag      string
	Priority int
	Match    func(*goquery.Selection) bool
	Convert  func(*goquery.Selection) (Node, bool)
}

// Registry maps type tags to decoders and element tags to recognizers.
// It is not safe for concurrent registration; populate it before use.
type Registry struct {
	decoders    map[string]Decoder
	recognizers map[string][]Recognizer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		decoders:    make(map[string]Decoder),
		recognizers: make(map[string][]Recognizer),
	}
}

// textBlockTags are imported as paragraphs when nothing more specific applies.
var textBlockTags = []string{"div", "h1", "h2", "h3", "h4", "h5", "h6", "li", "blockquote"}

// DefaultRegistry returns a registry with quest and paragraph nodes. Text
// blocks other than <p> fall back to paragraphs.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterDecoder(QuestType, func(raw json.RawMessage) (Node, error) {
		return ImportQuestJSON(raw)
	})
	r.RegisterDecoder(ParagraphType, func(raw json.RawMessage) (Node, error) {
		return ImportParagraphJSON(raw)
	})
	r.RegisterRecognizer(Recognizer{
		Tag:      "div",
		Priority: 1,
		Match: func(s *goquery.Selection) bool {
			_, ok := s.Attr(QuestIDAttr)
			return ok
		},
		Convert: ImportQuestMarkup,
	})
	r.RegisterRecognizer(Recognizer{
		Tag:     "p",
		Convert: ImportParagraphMarkup,
	})
	for _, tag := range textBlockTags {
		r.RegisterRecognizer(Recognizer{
			Tag:      tag,
			Priority: -1,
			Convert:  ImportTextBlockMarkup,
		})
	}
	return r
}

// RegisterDecoder binds a decoder to a type tag, replacing any previous one.
func (r *Registry) RegisterDecoder(typ string, d Decoder) {
	r.decoders[typ] = d
}

// RegisterRecognizer adds a recognizer. Recognizers for the same tag are
// tried in descending priority; ties keep registration order.
func (r *Registry) RegisterRecognizer(rec Recognizer) {
	tag := strings.ToLower(rec.Tag)
	list := append(r.recognizers[tag], rec)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Priority > list[j].Priority })
	r.recognizers[tag] = list
}

// Decode rebuilds a node from raw. Unregistered types become a RawNode.
func (r *Registry) Decode(raw json.RawMessage) (Node, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("node: decode type: %w", err)
	}
	d, ok := r.decoders[head.Type]
	if !ok {
		return NewRawNode(head.Type, raw), nil
	}
	return d(raw)
}

// ImportMarkup runs the recognizers registered for the first element in s.
// It reports false when no recognizer applies.
func (r *Registry) ImportMarkup(s *goquery.Selection) (Node, bool) {
	if s.Length() == 0 {
		return nil, false
	}
	s = s.First()
	tag := strings.ToLower(goquery.NodeName(s))
	for _, rec := range r.recognizers[tag] {
		if rec.Match != nil && !rec.Match(s) {
			continue
		}
		if n, ok := rec.Convert(s); ok {
			return n, true
		}
	}
	return nil, false
}
