package walk

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func collect(t *testing.T, source DirSource) []string {
	t.Helper()
	var paths []string
	err := source.Walk(context.Background(), func(f File) error {
		rel, err := filepath.Rel(source.Root, f.Path)
		if err != nil {
			t.Fatalf("rel: %v", err)
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	sort.Strings(paths)
	return paths
}

func mkFile(t *testing.T, root string, parts ...string) {
	t.Helper()
	path := filepath.Join(append([]string{root}, parts...)...)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestWalkYieldsAllFiles(t *testing.T) {
	root := t.TempDir()
	mkFile(t, root, "main.py")
	mkFile(t, root, "pkg", "svc.go")

	got := collect(t, DirSource{Root: root})
	want := []string{"main.py", "pkg/svc.go"}
	if len(got) != len(want) {
		t.Fatalf("paths %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("paths %v, want %v", got, want)
		}
	}
}

func TestWalkPrunesVCSAndVendorDirs(t *testing.T) {
	root := t.TempDir()
	mkFile(t, root, "main.py")
	mkFile(t, root, ".git", "config")
	mkFile(t, root, "node_modules", "dep", "index.js")
	mkFile(t, root, "vendor", "lib.go")

	got := collect(t, DirSource{Root: root})
	if len(got) != 1 || got[0] != "main.py" {
		t.Fatalf("pruned walk yielded %v, want only main.py", got)
	}
}

func TestWalkAppliesIgnoreGlobs(t *testing.T) {
	root := t.TempDir()
	mkFile(t, root, "main.py")
	mkFile(t, root, "main_test.py")
	mkFile(t, root, "build", "gen.py")

	got := collect(t, DirSource{Root: root, Ignore: []string{"*_test.py", "build"}})
	if len(got) != 1 || got[0] != "main.py" {
		t.Fatalf("ignored walk yielded %v, want only main.py", got)
	}
}

func TestWalkInvalidRoot(t *testing.T) {
	source := DirSource{Root: filepath.Join(t.TempDir(), "missing")}
	err := source.Walk(context.Background(), func(File) error { return nil })
	if err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestWalkHonoursCancellation(t *testing.T) {
	root := t.TempDir()
	mkFile(t, root, "main.py")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := DirSource{Root: root}
	if err := source.Walk(ctx, func(File) error { return nil }); err == nil {
		t.Fatal("expected context error")
	}
}
