package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSortedStringKeys(t *testing.T) {
	keys := SortedStringKeys(map[string]int{"b": 1, "a": 2, "c": 3})
	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Fatalf("unexpected order %v", keys)
	}
}

func TestWriteFileWithDirs(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b", "out.txt")
	if err := WriteFileWithDirs(target, []byte("ok"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "ok" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestContentHash(t *testing.T) {
	a := ContentHash([]byte("factory.add_new_point()"))
	b := ContentHash([]byte("factory.add_new_point()"))
	c := ContentHash([]byte("factory.add_new_line()"))
	if a != b {
		t.Fatal("hash must be stable")
	}
	if a == c {
		t.Fatal("different content must hash differently")
	}
	if len(a) != 16 {
		t.Fatalf("expected 16 hex chars, got %d", len(a))
	}
}

func TestClamp01(t *testing.T) {
	cases := map[float64]float64{-0.5: 0, 0: 0, 0.42: 0.42, 1: 1, 3.2: 1}
	for in, want := range cases {
		if got := Clamp01(in); got != want {
			t.Errorf("Clamp01(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("unexpected %q", got)
	}
	if got := Truncate("create_reference_plane", 10); got != "create_..." {
		t.Errorf("unexpected %q", got)
	}
}
