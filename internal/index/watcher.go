package index

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/questcard/internal/checksum"
	"github.com/starford/questcard/internal/storage"
)

// settleDelay coalesces the event bursts of atomic writes and editors.
const settleDelay = 100 * time.Millisecond

// EventCallback is called after the watcher observes a document change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

// watcher tracks the checksum it last saw for each document, so a file that
// was already indexed by a direct write still produces exactly one event.
type watcher struct {
	db      DocumentIndex
	store   storage.Provider
	logger  *slog.Logger
	cb      EventCallback
	seen    map[string]string
	pending map[string]struct{}
}

// Watch keeps the index current with the vault root until ctx is cancelled.
// The vault is flat: only documents directly under vaultRoot are tracked.
// Events on a path are settled together once it has been quiet for
// settleDelay; cb (if non-nil) is called once per settled change.
func Watch(ctx context.Context, db DocumentIndex, store storage.Provider, vaultRoot string, logger *slog.Logger, cb EventCallback) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(vaultRoot); err != nil {
		return err
	}
	seen, err := db.AllChecksums()
	if err != nil {
		return err
	}

	w := &watcher{
		db:      db,
		store:   store,
		logger:  logger,
		cb:      cb,
		seen:    seen,
		pending: make(map[string]struct{}),
	}

	logger.Info("watcher: started", slog.String("root", vaultRoot))

	timer := time.NewTimer(settleDelay)
	timer.Stop()
	defer timer.Stop()
	var settle <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op == fsnotify.Chmod || !storage.IsDocument(ev.Name) {
				continue
			}
			w.pending[filepath.Base(ev.Name)] = struct{}{}
			timer.Reset(settleDelay)
			settle = timer.C

		case <-settle:
			settle = nil
			w.flush()

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (w *watcher) flush() {
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	clear(w.pending)
	sort.Strings(paths)
	for _, p := range paths {
		w.settle(p)
	}
}

// settle compares the file at p with what the watcher saw last and applies
// the difference to the index.
func (w *watcher) settle(p string) {
	data, err := w.store.Read(p)
	if errors.Is(err, os.ErrNotExist) {
		if _, known := w.seen[p]; !known {
			return
		}
		delete(w.seen, p)
		if err := w.db.DeleteDocument(p); err != nil {
			w.logger.Warn("watcher: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			return
		}
		w.emit("deleted", p)
		return
	}
	if err != nil {
		w.logger.Warn("watcher: read failed", slog.String("path", p), slog.String("error", err.Error()))
		return
	}

	sum := checksum.Sum(data)
	prev, known := w.seen[p]
	if known && prev == sum {
		return
	}
	if indexed, _ := w.db.GetChecksum(p); indexed != sum {
		if err := IndexFile(w.db, p, data, time.Now()); err != nil {
			w.logger.Warn("watcher: index failed", slog.String("path", p), slog.String("error", err.Error()))
			return
		}
	}
	w.seen[p] = sum

	kind := "created"
	if known {
		kind = "updated"
	}
	w.emit(kind, p)
}

func (w *watcher) emit(kind, p string) {
	w.logger.Debug("watcher: "+kind, slog.String("path", p))
	if w.cb != nil {
		w.cb(kind, p)
	}
}
