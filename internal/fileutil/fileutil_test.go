package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCopyFileVerifiedRefusesExistingDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	if err := os.WriteFile(src, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatalf("first copy: %v", err)
	}
	if err := CopyFileVerified(src, dst); err == nil {
		t.Fatal("expected second copy onto existing file to fail")
	}
}

func TestLinkOrCopyCreatesSymlink(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "face.png")
	if err := os.WriteFile(src, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	batch := filepath.Join(dir, "batch")
	if err := os.Mkdir(batch, 0o755); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(batch, "face.png")

	method, err := LinkOrCopy(src, dst)
	if err != nil {
		t.Fatalf("LinkOrCopy: %v", err)
	}
	if method != LinkSymlink {
		t.Fatalf("expected symlink on a local temp dir, got %s", method)
	}
	target, err := os.Readlink(dst)
	if err != nil {
		t.Fatalf("readlink: %v", err)
	}
	if target != src {
		t.Fatalf("link target = %q, want %q", target, src)
	}
	if _, err := LinkOrCopy(src, dst); err == nil {
		t.Fatal("expected error linking over an existing entry")
	}
}

func TestUniqueName(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.png"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	taken := map[string]struct{}{"a_1.png": {}}

	if got := UniqueName(dir, "b.png", taken); got != "b.png" {
		t.Fatalf("expected unchanged name, got %q", got)
	}
	if got := UniqueName(dir, "a.png", taken); got != "a_2.png" {
		t.Fatalf("expected a_2.png, got %q", got)
	}
}
