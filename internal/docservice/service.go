// Package docservice coordinates document storage, parsing and indexing.
package docservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/questcard/internal/apperr"
	"github.com/starford/questcard/internal/checksum"
	"github.com/starford/questcard/internal/document"
	"github.com/starford/questcard/internal/index"
	"github.com/starford/questcard/internal/models"
	"github.com/starford/questcard/internal/node"
	"github.com/starford/questcard/internal/parser"
	"github.com/starford/questcard/internal/storage"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// DocumentDetail is the full representation of a document.
type DocumentDetail struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Content   json.RawMessage `json:"content"`
	Checksum  string          `json:"checksum"`
	QuestIDs  []string        `json:"quest_ids"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// DocumentListItem is a lightweight item in a list response.
type DocumentListItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	QuestIDs  []string  `json:"quest_ids"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SearchHit is one search result addressed by document id.
type SearchHit struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Service coordinates storage and index operations.
type Service struct {
	store  storage.Provider
	db     index.DocumentIndex
	reg    *node.Registry
	parser *parser.Parser
}

// NewService creates a new document service. A nil registry means the default one.
func NewService(store storage.Provider, db index.DocumentIndex, reg *node.Registry) *Service {
	if reg == nil {
		reg = node.DefaultRegistry()
	}
	return &Service{store: store, db: db, reg: reg, parser: parser.New(reg)}
}

// Registry returns the node registry documents are decoded with.
func (s *Service) Registry() *node.Registry { return s.reg }

// ValidateID checks that id is usable as a document file name.
func ValidateID(id string) error {
	err := validation.Validate(id,
		validation.Required,
		validation.Length(1, 128),
		validation.Match(idPattern),
	)
	if err != nil {
		return fmt.Errorf("%w: id %q: %v", apperr.ErrInvalidDocument, id, err)
	}
	return nil
}

// PathOf maps a document id to its vault path.
func PathOf(id string) string { return id + models.DocumentExt }

// IDOf maps a vault path back to the document id.
func IDOf(p string) string {
	return strings.TrimSuffix(path.Clean(strings.ReplaceAll(p, `\`, "/")), models.DocumentExt)
}

// Get reads a document from storage and parses it.
func (s *Service) Get(_ context.Context, id string) (*DocumentDetail, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	data, err := s.read(id)
	if err != nil {
		return nil, err
	}
	return s.buildDetail(id, data)
}

// Load returns the decoded document tree.
func (s *Service) Load(_ context.Context, id string) (*document.Document, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	data, err := s.read(id)
	if err != nil {
		return nil, err
	}
	res, err := s.parser.Parse(data)
	if err != nil {
		return nil, err
	}
	return res.Document, nil
}

// Create stores a new document and indexes it. An empty id is replaced by a
// fresh UUID.
func (s *Service) Create(_ context.Context, id string, content []byte) (*DocumentDetail, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if _, err := s.parser.Parse(content); err != nil {
		return nil, err
	}
	exists, err := s.store.Exists(PathOf(id))
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("docservice: %s: %w", id, apperr.ErrAlreadyExists)
	}
	return s.write(id, content)
}

// Update replaces a document's content with optimistic concurrency: a
// non-empty ifMatch must equal the stored checksum.
func (s *Service) Update(_ context.Context, id string, content []byte, ifMatch string) (*DocumentDetail, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	existing, err := s.read(id)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, fmt.Errorf("docservice: %s: %w", id, apperr.ErrConflict)
	}
	if _, err := s.parser.Parse(content); err != nil {
		return nil, err
	}
	return s.write(id, content)
}

// Delete removes a document from storage and index.
func (s *Service) Delete(_ context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := s.store.Delete(PathOf(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("docservice: %s: %w", id, apperr.ErrNotFound)
		}
		return err
	}
	return s.db.DeleteDocument(PathOf(id))
}

// List returns paginated documents, optionally only those embedding questID.
func (s *Service) List(_ context.Context, limit, offset int, questID, sort string) ([]DocumentListItem, int, error) {
	rows, total, err := s.db.ListDocuments(limit, offset, questID, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]DocumentListItem, len(rows))
	for i, r := range rows {
		items[i] = DocumentListItem{
			ID:        IDOf(r.Path),
			Title:     r.Title,
			Checksum:  r.Checksum,
			QuestIDs:  nonNilSlice(r.QuestIDs),
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// ImportHTML converts markup into a new document. Quest embeds become quest
// nodes and text blocks become paragraphs; elements without text are dropped.
func (s *Service) ImportHTML(ctx context.Context, id string, r io.Reader) (*DocumentDetail, error) {
	doc, err := document.ImportHTML(r, s.reg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidDocument, err)
	}
	data, err := doc.Marshal()
	if err != nil {
		return nil, err
	}
	return s.Create(ctx, id, data)
}

// ExportHTML renders a stored document to interchange markup.
func (s *Service) ExportHTML(ctx context.Context, id string) (string, error) {
	doc, err := s.Load(ctx, id)
	if err != nil {
		return "", err
	}
	return doc.ExportHTML()
}

// Embedders returns the ids of documents embedding questID.
func (s *Service) Embedders(_ context.Context, questID string) ([]string, error) {
	paths, err := s.db.Embedders(questID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(paths))
	for i, p := range paths {
		ids[i] = IDOf(p)
	}
	return ids, nil
}

// QuestUsage is one embedded quest with the number of documents embedding it.
type QuestUsage struct {
	QuestID   string `json:"quest_id"`
	Documents int    `json:"documents"`
}

// Quests lists every embedded quest, most embedded first.
func (s *Service) Quests(_ context.Context) ([]QuestUsage, error) {
	counts, err := s.db.QuestCounts()
	if err != nil {
		return nil, err
	}
	out := make([]QuestUsage, 0, len(counts))
	for id, n := range counts {
		out = append(out, QuestUsage{QuestID: id, Documents: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Documents != out[j].Documents {
			return out[i].Documents > out[j].Documents
		}
		return out[i].QuestID < out[j].QuestID
	})
	return out, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]SearchHit, error) {
	results, err := s.db.Search(query, limit)
	if err != nil {
		return nil, err
	}
	hits := make([]SearchHit, len(results))
	for i, r := range results {
		hits[i] = SearchHit{ID: IDOf(r.Path), Title: r.Title, Snippet: r.Snippet}
	}
	return hits, nil
}

func (s *Service) read(id string) ([]byte, error) {
	data, err := s.store.Read(PathOf(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("docservice: %s: %w", id, apperr.ErrNotFound)
		}
		return nil, err
	}
	return data, nil
}

func (s *Service) write(id string, content []byte) (*DocumentDetail, error) {
	content = bytes.TrimSpace(content)
	if err := s.store.Write(PathOf(id), content); err != nil {
		return nil, err
	}
	if err := index.IndexFile(s.db, PathOf(id), content, time.Now()); err != nil {
		return nil, err
	}
	return s.buildDetail(id, content)
}

func (s *Service) buildDetail(id string, data []byte) (*DocumentDetail, error) {
	res, err := s.parser.Parse(data)
	if err != nil {
		return nil, err
	}
	updated := time.Now().UTC()
	if row, err := s.db.GetDocument(PathOf(id)); err == nil {
		updated = row.UpdatedAt
	}
	return &DocumentDetail{
		ID:        id,
		Title:     res.Title,
		Content:   json.RawMessage(data),
		Checksum:  checksum.Sum(data),
		QuestIDs:  nonNilSlice(res.QuestIDs),
		UpdatedAt: updated,
	}, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
