package index

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSync_SkipsInvalidDocuments(t *testing.T) {
	vaultDir, store, db := watcherTestEnv(t)
	_ = os.WriteFile(filepath.Join(vaultDir, "good.json"), []byte(questDoc), 0o644)
	_ = os.WriteFile(filepath.Join(vaultDir, "bad.json"), []byte(`{not json`), 0o644)

	rep, err := Sync(db, store, quietLogger())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if rep != (SyncReport{Indexed: 1, Failed: 1}) {
		t.Errorf("report = %+v", rep)
	}
	if cs, _ := db.GetChecksum("bad.json"); cs != "" {
		t.Error("invalid document indexed")
	}
}

func TestSync_RemovesStale(t *testing.T) {
	_, store, db := watcherTestEnv(t)
	_ = db.UpsertDocument(row("stale.json", "", "x"), "", []string{"q"})

	rep, err := Sync(db, store, quietLogger())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if rep.Removed != 1 {
		t.Errorf("report = %+v", rep)
	}
	if cs, _ := db.GetChecksum("stale.json"); cs != "" {
		t.Error("stale entry survived sync")
	}
}

func TestSync_UnchangedIsNoop(t *testing.T) {
	vaultDir, store, db := watcherTestEnv(t)
	_ = os.WriteFile(filepath.Join(vaultDir, "same.json"), []byte(questDoc), 0o644)

	if _, err := Sync(db, store, quietLogger()); err != nil {
		t.Fatal(err)
	}
	rep, err := Sync(db, store, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if rep != (SyncReport{}) {
		t.Errorf("second pass report = %+v", rep)
	}
}
