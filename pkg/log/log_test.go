package log

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// initTestDB routes the package logger into a database under t.TempDir(),
// bypassing Init's app-dir path resolution.
func initTestDB(t *testing.T) {
	t.Helper()
	writer, db, err := newSQLiteWriter(filepath.Join(t.TempDir(), "logs.db"))
	if err != nil {
		t.Fatalf("newSQLiteWriter: %v", err)
	}
	mu.Lock()
	dbWriterInstance = writer
	dbHandle = db
	zerolog.TimeFieldFormat = zerologTimeFieldFormat
	pkgLogger = zerolog.New(writer).With().Timestamp().Logger()
	mu.Unlock()
	t.Cleanup(func() {
		if err := Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
}

func TestRetrievalBeforeInit(t *testing.T) {
	if _, err := GetLastNLogs(10); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
	if _, err := GetLogsSince(time.Now().Add(-time.Hour), 0); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
}

func TestWriteAndGetLastNLogs(t *testing.T) {
	initTestDB(t)

	Info().Str("step", "one").Msg("first event")
	Info().Str("step", "two").Msg("second event")
	Printf("third %s", "event")

	entries, err := GetLastNLogs(2)
	if err != nil {
		t.Fatalf("GetLastNLogs: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// Chronological order: the oldest of the two first.
	if !strings.Contains(entries[0].LogData, "second event") {
		t.Errorf("entry 0 = %q, want the second event", entries[0].LogData)
	}
	if !strings.Contains(entries[1].LogData, "third event") {
		t.Errorf("entry 1 = %q, want the third event", entries[1].LogData)
	}
	// Rows keep zerolog's trailing newline so readers concatenate verbatim.
	if !strings.HasSuffix(entries[0].LogData, "\n") {
		t.Error("log row lost its trailing newline")
	}
}

func TestGetLogsSinceStart(t *testing.T) {
	initTestDB(t)

	Info().Msg("boot event")
	Info().Msg("serving event")

	entries, err := GetLogsSinceStart()
	if err != nil {
		t.Fatalf("GetLogsSinceStart: %v", err)
	}
	// The temp database only holds this test's rows, so everything written
	// since the writer came up comes back.
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !strings.Contains(entries[0].LogData, "boot event") || !strings.Contains(entries[1].LogData, "serving event") {
		t.Errorf("entries out of order or missing: %q, %q", entries[0].LogData, entries[1].LogData)
	}
}

func TestGetLastNLogsNonPositive(t *testing.T) {
	initTestDB(t)

	Info().Msg("only event")

	entries, err := GetLastNLogs(0)
	if err != nil {
		t.Fatalf("GetLastNLogs(0): %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries for n=0, got %d", len(entries))
	}
}

func TestGetLogsBetween(t *testing.T) {
	initTestDB(t)

	Info().Msg("windowed event")

	entries, err := GetLogsBetween(time.Now().Add(-time.Minute), time.Now().Add(time.Minute), 0)
	if err != nil {
		t.Fatalf("GetLogsBetween: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry inside the window, got %d", len(entries))
	}
	if !strings.Contains(entries[0].LogData, "windowed event") {
		t.Errorf("entry = %q", entries[0].LogData)
	}

	stale, err := GetLogsBetween(time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour), 0)
	if err != nil {
		t.Fatalf("GetLogsBetween (past window): %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("expected no entries in a past window, got %d", len(stale))
	}
}

func TestInitRejectsEmptyName(t *testing.T) {
	if err := Init(""); err == nil {
		t.Error("Init with an empty file name should fail")
	}
}

func TestCloseNeverInitialized(t *testing.T) {
	if err := Close(); err != nil {
		t.Errorf("Close without Init should be a no-op, got %v", err)
	}
}
