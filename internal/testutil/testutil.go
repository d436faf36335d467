// Package testutil provides shared test helpers: documents, a vault and index
// on temp storage, and a scripted quest fetcher.
package testutil

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/questcard/internal/index"
	"github.com/starford/questcard/internal/quest"
	"github.com/starford/questcard/internal/storage"
)

// ErrUpstream is returned by StubFetcher for ids listed in Fail.
var ErrUpstream = errors.New("testutil: upstream down")

// QuestDocument is a minimal stored document embedding the given quest after a paragraph.
func QuestDocument(title, questID string) []byte {
	return []byte(`{"root":{"children":[` +
		`{"format":"","type":"paragraph","version":1,"text":"` + title + `"},` +
		`{"format":"","type":"vantient-quest","version":1,"questID":"` + questID + `"}` +
		`],"direction":null,"format":"","indent":0,"type":"root","version":1}}`)
}

// TestDB opens an index in the test's temp dir; it is closed on cleanup.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "questcard-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// StubFetcher answers quest fetches from memory. Ids in Fail return
// ErrUpstream, ids in Slow wait for Delay (or ctx) first, and any other id
// yields a quest titled "Quest <id>" ending on EndsAt.
type StubFetcher struct {
	Fail   map[string]bool
	Slow   map[string]bool
	Delay  time.Duration
	EndsAt string

	mu    sync.Mutex
	calls []string
}

var _ quest.Fetcher = (*StubFetcher)(nil)

// Fetch implements quest.Fetcher.
func (s *StubFetcher) Fetch(ctx context.Context, id string) (*quest.Data, error) {
	s.mu.Lock()
	s.calls = append(s.calls, id)
	s.mu.Unlock()

	if s.Slow[id] {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Fail[id] {
		return nil, ErrUpstream
	}
	return &quest.Data{Quest: &quest.Quest{
		Title:         "Quest " + id,
		Description:   &quest.Description{Text: "Do <b>things</b>"},
		CoverImageURL: "https://img.example/" + id + ".png",
		EndsAt:        s.EndsAt,
	}}, nil
}

// Calls returns the ids fetched so far, in order.
func (s *StubFetcher) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}
