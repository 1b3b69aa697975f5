package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := OpenJournal(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Failed to open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestStartGame(t *testing.T) {
	j := openTestJournal(t)

	id, err := j.StartGame(startFEN, "white")
	if err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}
	if id == "" {
		t.Fatal("Expected a game id")
	}

	games, err := j.Games()
	if err != nil {
		t.Fatalf("Games failed: %v", err)
	}
	if len(games) != 1 || games[0].ID != id {
		t.Fatalf("Expected one game %s, got %+v", id, games)
	}
	if games[0].StartFEN != startFEN || games[0].Perspective != "white" {
		t.Errorf("Unexpected game info: %+v", games[0])
	}
}

func TestAppendAndRecords(t *testing.T) {
	j := openTestJournal(t)
	id, err := j.StartGame(startFEN, "white")
	if err != nil {
		t.Fatal(err)
	}

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	want := []Record{
		{Game: id, Ply: 1, UCI: "e2e4", From: 12, To: 28, Score: 1200, Timestamp: ts},
		{Game: id, Ply: 2, UCI: "c7c5", From: 50, To: 34, Score: 900, Timestamp: ts},
		{Game: id, Ply: 3, UCI: "g1f3", From: 6, To: 21, Score: 1100, Timestamp: ts},
	}
	// Out of order on purpose; keys sort by ply
	for _, i := range []int{2, 0, 1} {
		if err := j.Append(want[i]); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := j.Records(id)
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Records mismatch (-want +got):\n%s", diff)
	}

	count, err := j.Count(id)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("Expected count 3, got %d", count)
	}

	games, _ := j.Games()
	if games[0].Moves != 3 {
		t.Errorf("Expected game info to show 3 moves, got %d", games[0].Moves)
	}
}

func TestAppendValidation(t *testing.T) {
	j := openTestJournal(t)

	if err := j.Append(Record{Game: "nope", Ply: 1}); !errors.Is(err, ErrUnknownGame) {
		t.Errorf("Expected ErrUnknownGame, got %v", err)
	}

	id, _ := j.StartGame(startFEN, "black")
	if err := j.Append(Record{Game: id, Ply: 0}); err == nil {
		t.Error("Expected error for ply 0")
	}
}

func TestDelete(t *testing.T) {
	j := openTestJournal(t)
	id, _ := j.StartGame(startFEN, "white")
	if err := j.Append(Record{Game: id, Ply: 1, UCI: "e2e4"}); err != nil {
		t.Fatal(err)
	}

	if err := j.Delete(id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := j.Records(id); !errors.Is(err, ErrUnknownGame) {
		t.Errorf("Expected ErrUnknownGame after delete, got %v", err)
	}
	games, _ := j.Games()
	if len(games) != 0 {
		t.Errorf("Expected no games, got %d", len(games))
	}

	if err := j.Delete(id); !errors.Is(err, ErrUnknownGame) {
		t.Errorf("Expected ErrUnknownGame deleting twice, got %v", err)
	}
}

func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := OpenJournal(path)
	if err != nil {
		t.Fatal(err)
	}
	id, _ := j.StartGame(startFEN, "white")
	if err := j.Append(Record{Game: id, Ply: 1, UCI: "d2d4"}); err != nil {
		t.Fatal(err)
	}
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenJournal(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	records, err := reopened.Records(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].UCI != "d2d4" {
		t.Errorf("Unexpected records after reopen: %+v", records)
	}
}

func TestClosedJournal(t *testing.T) {
	j := openTestJournal(t)
	id, _ := j.StartGame(startFEN, "white")

	if err := j.Close(); err != nil {
		t.Fatal(err)
	}
	if err := j.Close(); err != nil {
		t.Errorf("Second close should be a no-op, got %v", err)
	}

	if _, err := j.StartGame(startFEN, "white"); !errors.Is(err, ErrJournalClosed) {
		t.Errorf("StartGame: expected ErrJournalClosed, got %v", err)
	}
	if err := j.Append(Record{Game: id, Ply: 1}); !errors.Is(err, ErrJournalClosed) {
		t.Errorf("Append: expected ErrJournalClosed, got %v", err)
	}
	if _, err := j.Records(id); !errors.Is(err, ErrJournalClosed) {
		t.Errorf("Records: expected ErrJournalClosed, got %v", err)
	}
	if _, err := j.Count(id); !errors.Is(err, ErrJournalClosed) {
		t.Errorf("Count: expected ErrJournalClosed, got %v", err)
	}
}

func TestExportJSON(t *testing.T) {
	j := openTestJournal(t)
	id, _ := j.StartGame(startFEN, "white")
	if err := j.Append(Record{Game: id, Ply: 1, UCI: "e2e4", From: 12, To: 28}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := j.ExportJSON(id, &buf); err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}

	var records []Record
	if err := json.Unmarshal(buf.Bytes(), &records); err != nil {
		t.Fatalf("Export is not valid JSON: %v", err)
	}
	if len(records) != 1 || records[0].UCI != "e2e4" {
		t.Errorf("Unexpected export: %s", buf.String())
	}
}

func TestExportJSONEmptyGame(t *testing.T) {
	j := openTestJournal(t)
	id, err := j.StartGame(startFEN, "black")
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := j.ExportJSON(id, &buf); err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}
	if got := buf.String(); got != "[]\n" {
		t.Errorf("Expected an empty JSON array, got %q", got)
	}

	records, err := j.Records(id)
	if err != nil {
		t.Fatal(err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("Expected empty non-nil records, got %#v", records)
	}
}
