package keystore

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "keys.db"))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGet(t *testing.T) {
	s := openTestStore(t)
	salt := []byte{0x01, 0x02, 0x03}
	if err := s.Put("default", salt); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	got, err := s.Get("default")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !bytes.Equal(got, salt) {
		t.Errorf("expected %v, got %v", salt, got)
	}
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get("absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPutValidation(t *testing.T) {
	s := openTestStore(t)
	if err := s.Put("", []byte("x")); !errors.Is(err, ErrEmptyName) {
		t.Errorf("empty name: expected ErrEmptyName, got %v", err)
	}
	if err := s.Put("name", nil); !errors.Is(err, ErrEmptySalt) {
		t.Errorf("empty salt: expected ErrEmptySalt, got %v", err)
	}
	if err := s.Put("@ref", []byte("x")); !errors.Is(err, ErrInvalidName) {
		t.Errorf("@ prefix: expected ErrInvalidName, got %v", err)
	}
	if err := s.Put("two words", []byte("x")); !errors.Is(err, ErrInvalidName) {
		t.Errorf("whitespace: expected ErrInvalidName, got %v", err)
	}
}

func TestOverwritePreservesCreated(t *testing.T) {
	s := openTestStore(t)
	if err := s.Put("default", []byte("one")); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	first, err := s.List()
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := s.Put("default", []byte("two")); err != nil {
		t.Fatalf("second Put error: %v", err)
	}
	second, err := s.List()
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected one entry, got %d then %d", len(first), len(second))
	}
	if !second[0].Created.Equal(first[0].Created) {
		t.Error("overwrite changed the creation timestamp")
	}
	if !second[0].Updated.After(first[0].Updated) {
		t.Error("overwrite did not advance the update timestamp")
	}
	if second[0].Length != 3 {
		t.Errorf("expected length 3, got %d", second[0].Length)
	}
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	if err := s.Put("doomed", []byte("salt")); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := s.Delete("doomed"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := s.Get("doomed"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete("doomed"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for double delete, got %v", err)
	}
}

func TestList(t *testing.T) {
	s := openTestStore(t)
	for _, name := range []string{"bravo", "alpha", "charlie"} {
		if err := s.Put(name, []byte(name)); err != nil {
			t.Fatalf("Put(%s) error: %v", name, err)
		}
	}
	entries, err := s.List()
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	want := []string{"alpha", "bravo", "charlie"}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, name := range want {
		if entries[i].Name != name {
			t.Errorf("entry %d: expected %q, got %q", i, name, entries[i].Name)
		}
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if err := s.Put("durable", []byte("salt")); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer s2.Close()
	got, err := s2.Get("durable")
	if err != nil {
		t.Fatalf("Get after reopen error: %v", err)
	}
	if !bytes.Equal(got, []byte("salt")) {
		t.Errorf("expected %q, got %q", "salt", got)
	}
}
