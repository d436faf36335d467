package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/starford/questcard/internal/storage"
)

const questDoc = `{"root":{"children":[{"format":"","type":"vantient-quest","version":1,"questID":"q-9"}]}}`

// watcherTestEnv sets up a vault dir, storage, and DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, storage.Provider, *DB) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store, testDB(t)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) record(kind, path string) {
	r.mu.Lock()
	r.events = append(r.events, kind+":"+path)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func startWatch(t *testing.T, db *DB, store storage.Provider, vaultDir string, cb EventCallback) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := Watch(ctx, db, store, vaultDir, quietLogger(), cb); err != nil {
			t.Errorf("Watch: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	vaultDir, store, db := watcherTestEnv(t)
	rec := &recorder{}
	startWatch(t, db, store, vaultDir, rec.record)

	_ = os.WriteFile(filepath.Join(vaultDir, "new.json"), []byte(questDoc), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		got, _ := db.Embedders("q-9")
		return len(got) == 1 && got[0] == "new.json"
	}, "new document not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return slices.Equal(rec.snapshot(), []string{"created:new.json"})
	}, "expected a single created:new.json callback")
}

func TestWatcher_StoreWriteEmitsOnce(t *testing.T) {
	vaultDir, store, db := watcherTestEnv(t)
	rec := &recorder{}
	startWatch(t, db, store, vaultDir, rec.record)

	// Index first, as the document service does, then let the watcher see the file.
	if err := store.Write("direct.json", []byte(questDoc)); err != nil {
		t.Fatal(err)
	}
	if err := IndexFile(db, "direct.json", []byte(questDoc), time.Now()); err != nil {
		t.Fatal(err)
	}

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return len(rec.snapshot()) > 0
	}, "no event for a store write")
	time.Sleep(3 * settleDelay)
	if got := rec.snapshot(); !slices.Equal(got, []string{"created:direct.json"}) {
		t.Errorf("events = %v", got)
	}
}

func TestWatcher_UpdateAndDelete(t *testing.T) {
	vaultDir, store, db := watcherTestEnv(t)
	path := filepath.Join(vaultDir, "doc.json")
	_ = os.WriteFile(path, []byte(questDoc), 0o644)
	if _, err := Sync(db, store, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	rec := &recorder{}
	startWatch(t, db, store, vaultDir, rec.record)

	changed := `{"root":{"children":[{"format":"","type":"vantient-quest","version":1,"questID":"q-10"}]}}`
	_ = os.WriteFile(path, []byte(changed), 0o644)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		got, _ := db.Embedders("q-10")
		return len(got) == 1
	}, "update not indexed")

	_ = os.Remove(path)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("doc.json")
		return cs == ""
	}, "deleted document still in index")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return slices.Equal(rec.snapshot(), []string{"updated:doc.json", "deleted:doc.json"})
	}, "expected updated then deleted callbacks")
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	vaultDir, store, db := watcherTestEnv(t)
	rec := &recorder{}
	startWatch(t, db, store, vaultDir, rec.record)

	_ = os.WriteFile(filepath.Join(vaultDir, "notes.txt"), []byte("plain"), 0o644)
	_ = os.WriteFile(filepath.Join(vaultDir, ".hidden.json"), []byte(questDoc), 0o644)
	_ = os.WriteFile(filepath.Join(vaultDir, "doc.json"), []byte(questDoc), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("doc.json")
		return cs != ""
	}, "document not indexed")

	for _, p := range []string{"notes.txt", ".hidden.json"} {
		if cs, _ := db.GetChecksum(p); cs != "" {
			t.Errorf("%s was indexed", p)
		}
	}
}

func TestWatcher_InvalidDocumentSkipped(t *testing.T) {
	vaultDir, store, db := watcherTestEnv(t)
	rec := &recorder{}
	startWatch(t, db, store, vaultDir, rec.record)

	_ = os.WriteFile(filepath.Join(vaultDir, "bad.json"), []byte(`{not json`), 0o644)
	_ = os.WriteFile(filepath.Join(vaultDir, "good.json"), []byte(questDoc), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("good.json")
		return cs != ""
	}, "valid document not indexed")
	if slices.Contains(rec.snapshot(), "created:bad.json") {
		t.Error("invalid document produced an event")
	}
}

func TestWatcher_Rename(t *testing.T) {
	vaultDir, store, db := watcherTestEnv(t)
	_ = os.WriteFile(filepath.Join(vaultDir, "old.json"), []byte(questDoc), 0o644)
	_, _ = Sync(db, store, quietLogger())

	startWatch(t, db, store, vaultDir, nil)

	_ = os.Rename(filepath.Join(vaultDir, "old.json"), filepath.Join(vaultDir, "renamed.json"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		oldCS, _ := db.GetChecksum("old.json")
		newCS, _ := db.GetChecksum("renamed.json")
		return oldCS == "" && newCS != ""
	}, "rename: old path should be removed and new path indexed")
}
