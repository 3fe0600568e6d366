package walker

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestListAllFilesRecursesAndSkipsSentinel(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.jpg"), "aaa")
	writeFile(t, filepath.Join(root, "sub", "b.png"), "bb")
	writeFile(t, filepath.Join(root, "sub", "deeper", "c.txt"), "c")
	writeFile(t, filepath.Join(root, "sub", ".gitkeep"), "")

	entries, skipped := ListAllFiles(root)

	var rels []string
	for _, e := range entries {
		rels = append(rels, e.RelPath())
	}
	sort.Strings(rels)
	want := []string{"a.jpg", filepath.Join("sub", "b.png"), filepath.Join("sub", "deeper", "c.txt")}
	if len(rels) != len(want) {
		t.Fatalf("got %v, want %v", rels, want)
	}
	for i := range want {
		if rels[i] != want[i] {
			t.Errorf("entry %d = %q, want %q", i, rels[i], want[i])
		}
	}

	if len(skipped) != 1 || skipped[0].Reason != ReasonSentinel {
		t.Fatalf("expected one sentinel skip, got %+v", skipped)
	}
}

func TestEntryFields(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "x", "Photo.JPG"), "12345")

	entries, _ := ListAllFiles(root)
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	e := entries[0]
	if e.RelDir != "x" || e.Name != "Photo.JPG" || e.Base != "Photo" || e.Ext != ".JPG" || e.Size != 5 {
		t.Errorf("unexpected entry %+v", e)
	}
	if !filepath.IsAbs(e.Path) {
		t.Errorf("path should be absolute, got %q", e.Path)
	}
}

func TestWalkMissingRootYieldsSkip(t *testing.T) {
	var results []Result
	for res := range Walk(filepath.Join(t.TempDir(), "missing")) {
		results = append(results, res)
	}
	if len(results) != 1 || !results[0].Skipped || results[0].Reason != ReasonReadDir {
		t.Fatalf("expected single read_dir skip, got %+v", results)
	}
	if results[0].Err == nil {
		t.Error("expected the underlying error to be kept")
	}
}

func TestWalkUnreadableDirContinuesWithSiblings(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "locked", "hidden.jpg"), "x")
	writeFile(t, filepath.Join(root, "open", "visible.jpg"), "y")
	locked := filepath.Join(root, "locked")
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	entries, skipped := ListAllFiles(root)
	if len(entries) != 1 || entries[0].Name != "visible.jpg" {
		t.Fatalf("expected sibling to be walked, got %+v", entries)
	}
	if len(skipped) != 1 || skipped[0].Reason != ReasonReadDir {
		t.Fatalf("expected read_dir skip, got %+v", skipped)
	}
}

func TestWalkStopsWhenConsumerBreaks(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a", "b", "c"} {
		writeFile(t, filepath.Join(root, name+".txt"), name)
	}
	count := 0
	for range Walk(root) {
		count++
		break
	}
	if count != 1 {
		t.Fatalf("expected iteration to stop after one result, got %d", count)
	}
}

func TestMirrorOutputPath(t *testing.T) {
	root := filepath.FromSlash("/in")
	out := filepath.FromSlash("/out")

	got, err := MirrorOutputPath(root, filepath.FromSlash("/in/a/b/c.jpg"), out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.FromSlash("/out/a/b/c.jpg"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	dir, err := MirrorDir(root, filepath.FromSlash("/in/top.jpg"), out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir != out {
		t.Errorf("MirrorDir = %q, want %q", dir, out)
	}

	if _, err := MirrorOutputPath(root, filepath.FromSlash("/elsewhere/x.jpg"), out); err == nil {
		t.Error("expected error for file outside root")
	}
}
