package index

import (
	"log/slog"
	"time"

	"github.com/starford/questcard/internal/checksum"
	"github.com/starford/questcard/internal/parser"
	"github.com/starford/questcard/internal/storage"
)

// SyncReport counts what a Sync pass changed.
type SyncReport struct {
	Indexed int
	Removed int
	Failed  int
}

// Sync brings the index in line with the vault. Documents whose checksum
// differs from the indexed one are re-parsed, index rows without a file are
// dropped, and documents that fail to read or parse are logged and counted.
func Sync(db DocumentIndex, store storage.Provider, logger *slog.Logger) (SyncReport, error) {
	var rep SyncReport

	metas, err := store.List()
	if err != nil {
		return rep, err
	}
	indexed, err := db.AllChecksums()
	if err != nil {
		return rep, err
	}

	for _, m := range metas {
		prev, ok := indexed[m.Path]
		delete(indexed, m.Path)
		if ok && prev == m.Checksum {
			continue
		}
		data, err := store.Read(m.Path)
		if err == nil {
			err = IndexFile(db, m.Path, data, m.UpdatedAt)
		}
		if err != nil {
			rep.Failed++
			logger.Warn("sync: skipped document", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		rep.Indexed++
	}

	// Whatever is left in indexed has no file behind it.
	for p := range indexed {
		if err := db.DeleteDocument(p); err != nil {
			rep.Failed++
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		rep.Removed++
	}

	logger.Info("sync: done",
		slog.Int("indexed", rep.Indexed),
		slog.Int("removed", rep.Removed),
		slog.Int("failed", rep.Failed))
	return rep, nil
}

// IndexFile parses a stored document and upserts its row, text and embeds.
// A zero updatedAt means now.
func IndexFile(db DocumentIndex, path string, data []byte, updatedAt time.Time) error {
	res, err := parser.Parse(data)
	if err != nil {
		return err
	}
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	row := DocumentRow{
		Path:      path,
		Title:     res.Title,
		Checksum:  checksum.Sum(data),
		QuestIDs:  res.QuestIDs,
		UpdatedAt: updatedAt.UTC(),
	}
	return db.UpsertDocument(row, res.Body, res.QuestIDs)
}
