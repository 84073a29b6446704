package fileutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteIfChangedTracked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.jsonl")

	changed, err := WriteIfChangedTracked(path, []byte("a\n"))
	if err != nil || !changed {
		t.Fatalf("first write: changed=%v err=%v", changed, err)
	}
	changed, err = WriteIfChangedTracked(path, []byte("a\n"))
	if err != nil || changed {
		t.Fatalf("identical write: changed=%v err=%v", changed, err)
	}
	changed, err = WriteIfChangedTracked(path, []byte("b\n"))
	if err != nil || !changed {
		t.Fatalf("different write: changed=%v err=%v", changed, err)
	}
}

func TestWriteFileAtomicReplacesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")

	if err := WriteFileAtomic(path, []byte("one")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("two")); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "two" {
		t.Fatalf("expected replaced content, got %q", data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp files to be cleaned up, found %d entries", len(entries))
	}
}

func TestWriteIfMissingKeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	if err := WriteIfMissing(path, []byte("first"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := WriteIfMissing(path, []byte("second"), 0644); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "first" {
		t.Fatalf("expected existing file to be kept, got %q", data)
	}
}

func TestEncodeJSONLDoesNotEscapeHTML(t *testing.T) {
	data, err := EncodeJSONL([]map[string]string{{"text": "a<b"}, {"text": "c"}})
	if err != nil {
		t.Fatal(err)
	}
	want := "{\"text\":\"a<b\"}\n{\"text\":\"c\"}\n"
	if string(data) != want {
		t.Fatalf("unexpected JSONL: %q", data)
	}
}

func TestHelpers(t *testing.T) {
	got := DedupeStrings([]string{"b", "a", "b", "c", "a"})
	if len(got) != 3 || got[0] != "b" || got[1] != "a" || got[2] != "c" {
		t.Fatalf("unexpected dedupe result: %v", got)
	}
	if HashBytes([]byte("x")) != HashBytes([]byte("x")) || len(HashBytes(nil)) != 16 {
		t.Fatalf("hash must be deterministic and 16 chars")
	}
	if !bytes.Equal(EnsureTrailingNewlineBytes([]byte("a")), []byte("a\n")) {
		t.Fatalf("expected trailing newline")
	}

	var buf bytes.Buffer
	if err := WriteJSON(&buf, map[string]int{"n": 1}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "{\n  \"n\": 1\n}\n" {
		t.Fatalf("unexpected JSON: %q", buf.String())
	}
}
