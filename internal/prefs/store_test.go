package prefs

import (
	"path/filepath"
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	store, err := NewStoreAt(filepath.Join(t.TempDir(), "prefs.json"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if _, ok, err := store.CurrentBookID(); err != nil || ok {
		t.Fatalf("expected unset, ok=%v err=%v", ok, err)
	}

	if err := store.SetCurrentBookID("tome:book:a"); err != nil {
		t.Fatalf("set: %v", err)
	}
	id, ok, err := store.CurrentBookID()
	if err != nil || !ok {
		t.Fatalf("expected value, ok=%v err=%v", ok, err)
	}
	if id != "tome:book:a" {
		t.Fatalf("unexpected id: %s", id)
	}
}
