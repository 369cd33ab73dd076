package machine

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestIDFromFileCreatesAndPersists(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "machine-id")

	first, err := idFromFile(fp)
	if err != nil {
		t.Fatalf("idFromFile: %v", err)
	}
	if len(first) != 16 {
		t.Fatalf("machine id is %d bytes, want 16", len(first))
	}

	second, err := idFromFile(fp)
	if err != nil {
		t.Fatalf("idFromFile on existing file: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("machine id not stable across reads: %x vs %x", first, second)
	}
}

func TestIDFromFileRejectsCorrupt(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "machine-id")
	if err := os.WriteFile(fp, []byte("not-hex"), 0600); err != nil {
		t.Fatalf("seeding corrupt file: %v", err)
	}

	if _, err := idFromFile(fp); err == nil {
		t.Fatal("corrupt machine-id file should not decode")
	}
}
