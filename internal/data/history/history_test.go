package history

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleRun(id string, started time.Time) Run {
	return Run{
		ID:                 id,
		Kind:               "steps",
		StartedAt:          started,
		Duration:           1500 * time.Millisecond,
		CatalogFingerprint: "abc123",
		Items:              2,
		Succeeded:          1,
		Unmatched:          1,
		Matches: []MatchRecord{
			{ItemKey: "step 1", StepNumber: 1, Rank: 1, FullSignature: "Factory.create_point(x, y, z)", OwningClass: "Factory", MethodName: "create_point", Confidence: 0.91, Reasoning: "HIGH confidence match"},
			{ItemKey: "step 1", StepNumber: 1, Rank: 2, FullSignature: "Factory.create_line(a, b)", OwningClass: "Factory", MethodName: "create_line", Confidence: 0.62, Reasoning: "MEDIUM confidence match"},
		},
	}
}

func TestStore_SaveAndLoadRuns(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	base := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	if err := store.SaveRun(sampleRun("run-a", base)); err != nil {
		t.Fatalf("save first run: %v", err)
	}
	if err := store.SaveRun(sampleRun("run-b", base.Add(time.Hour))); err != nil {
		t.Fatalf("save second run: %v", err)
	}

	runs, err := store.LoadRuns(0)
	if err != nil {
		t.Fatalf("load runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-b" {
		t.Fatalf("expected newest run first, got %s", runs[0].ID)
	}
	if runs[1].Duration != 1500*time.Millisecond || runs[1].CatalogFingerprint != "abc123" || runs[1].Unmatched != 1 {
		t.Fatalf("run fields did not roundtrip: %+v", runs[1])
	}
	if !runs[1].StartedAt.Equal(base) {
		t.Fatalf("expected start %v, got %v", base, runs[1].StartedAt)
	}

	limited, err := store.LoadRuns(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}

	matches, err := store.LoadMatches("run-a")
	if err != nil {
		t.Fatalf("load matches: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Rank != 1 || matches[0].RunID != "run-a" || matches[0].Confidence != 0.91 {
		t.Fatalf("unexpected first match: %+v", matches[0])
	}
}

func TestStore_SaveRunReplacesExisting(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	run := sampleRun("run-a", time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC))
	if err := store.SaveRun(run); err != nil {
		t.Fatal(err)
	}
	run.Matches = run.Matches[:1]
	run.Succeeded = 2
	if err := store.SaveRun(run); err != nil {
		t.Fatal(err)
	}

	runs, err := store.LoadRuns(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Succeeded != 2 {
		t.Fatalf("expected one updated run, got %+v", runs)
	}
	matches, err := store.LoadMatches("run-a")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected stale matches to be replaced, got %d", len(matches))
	}
}

func TestStore_SaveRunAssignsID(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.SaveRun(Run{Kind: "sources"}); err != nil {
		t.Fatal(err)
	}
	runs, err := store.LoadRuns(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || len(runs[0].ID) != 36 {
		t.Fatalf("expected a generated uuid, got %+v", runs)
	}
	if runs[0].StartedAt.IsZero() {
		t.Fatal("expected a start time to be filled in")
	}

	if err := store.SaveRun(Run{ID: "x"}); err == nil {
		t.Fatal("expected an error for a run without kind")
	}
}

func TestStore_OpenRejectsDirectoryPath(t *testing.T) {
	_, err := Open(t.TempDir())
	if err == nil {
		t.Fatal("expected open error for directory path")
	}
	if !strings.Contains(err.Error(), "is a directory") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStore_OpenCorruptDBPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	if err := os.WriteFile(path, []byte("this is not sqlite"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(path)
	if err == nil {
		t.Fatal("expected sqlite open error")
	}
	lower := strings.ToLower(err.Error())
	if !strings.Contains(lower, "not a database") && !strings.Contains(lower, "schema") {
		t.Fatalf("expected schema/open error, got: %v", err)
	}
}

func TestEnsureSchema_DetectsNewerVersionDrift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, err := store.db.Exec(`INSERT OR REPLACE INTO schema_migrations(version) VALUES (?)`, SchemaVersion+1); err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open(driverName, "file:"+path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	err = EnsureSchema(db)
	if err == nil {
		t.Fatal("expected drift error")
	}
	if !strings.Contains(err.Error(), "newer than supported") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIsCorruptError(t *testing.T) {
	if !IsCorruptError(errors.New("database disk image is malformed")) {
		t.Fatal("expected malformed sqlite message to be treated as corrupt")
	}
	if IsCorruptError(errors.New("database is locked")) {
		t.Fatal("lock errors are not corruption")
	}
}
