package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"openbq/internal/logging"
)

func makeDir(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatalf("create dir: %v", err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("set time: %v", err)
	}
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldBatchRoots(t *testing.T) {
	tmpDir := t.TempDir()
	oldDir := filepath.Join(tmpDir, BatchRootPrefix+"old")
	recentDir := filepath.Join(tmpDir, BatchRootPrefix+"recent")
	foreign := filepath.Join(tmpDir, "someone-else")
	makeDir(t, oldDir, 2*time.Hour)
	makeDir(t, recentDir, 0)
	makeDir(t, foreign, 2*time.Hour)

	result := CleanStale(context.Background(), tmpDir, time.Hour, logging.NewNop())

	if len(result.Removed) != 1 || result.Removed[0] != oldDir {
		t.Fatalf("expected only %s removed, got %v", oldDir, result.Removed)
	}
	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Error("old batch root should have been removed")
	}
	if _, err := os.Stat(recentDir); err != nil {
		t.Error("recent batch root should still exist")
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Error("unrelated directory should still exist")
	}
}

func TestCleanStaleIgnoresFiles(t *testing.T) {
	tmpDir := t.TempDir()
	oldFile := filepath.Join(tmpDir, BatchRootPrefix+"file.txt")
	if err := os.WriteFile(oldFile, []byte("test"), 0o644); err != nil {
		t.Fatalf("create file: %v", err)
	}
	stamp := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldFile, stamp, stamp); err != nil {
		t.Fatalf("set old time: %v", err)
	}

	result := CleanStale(context.Background(), tmpDir, time.Hour, logging.NewNop())
	if len(result.Removed) != 0 {
		t.Errorf("expected no removals for files, got %d", len(result.Removed))
	}
	if _, err := os.Stat(oldFile); err != nil {
		t.Error("file should still exist")
	}
}

func TestListDirectoriesReportsSize(t *testing.T) {
	tmpDir := t.TempDir()
	root := filepath.Join(tmpDir, BatchRootPrefix+"job")
	makeDir(t, root, 0)
	batch := filepath.Join(root, "batch_0000")
	if err := os.Mkdir(batch, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(batch, "a.wav"), []byte("12345"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("/does/not/matter", filepath.Join(batch, "b.wav")); err != nil {
		t.Fatal(err)
	}

	dirs, err := ListDirectories(tmpDir)
	if err != nil {
		t.Fatalf("ListDirectories: %v", err)
	}
	if len(dirs) != 1 {
		t.Fatalf("expected 1 batch root, got %d", len(dirs))
	}
	if dirs[0].Name != BatchRootPrefix+"job" || dirs[0].Size != 5 {
		t.Fatalf("unexpected dir info: %+v", dirs[0])
	}
}
