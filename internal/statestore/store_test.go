package statestore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	got := Load(filepath.Join(t.TempDir(), "does-not-exist"))
	if len(got) != 0 {
		t.Fatalf("expected empty map, got %+v", got)
	}
}

func TestLoadCorruptFileReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state")
	if err := os.WriteFile(path, []byte("not a valid line\n\xff\xfe garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	got := Load(path)
	if len(got) != 0 {
		t.Fatalf("expected empty map for corrupt file, got %+v", got)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "state")
	want := map[string]string{
		"abc123": "2020-05-01T12:34:56.123456789Z",
		"def456": "2020-05-02T00:00:00.000000000Z",
	}
	if err := Save(path, want); err != nil {
		t.Fatal(err)
	}
	got := Load(path)
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for id, ts := range want {
		if got[id] != ts {
			t.Errorf("id %s: got %q, want %q", id, got[id], ts)
		}
	}
}

func TestSaveIsIdempotentAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")
	if err := Save(path, map[string]string{"a": "ts1"}); err != nil {
		t.Fatal(err)
	}
	if err := Save(path, map[string]string{"a": "ts2"}); err != nil {
		t.Fatal(err)
	}
	got := Load(path)
	if got["a"] != "ts2" {
		t.Fatalf("expected final write to win, got %q", got["a"])
	}
}
