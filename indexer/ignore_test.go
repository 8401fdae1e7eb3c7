package indexer

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestMatcher(t *testing.T) *IgnoreMatcher {
	t.Helper()
	return NewIgnoreMatcher(t.TempDir(),
		[]string{".md", ".txt"},
		[]string{".vaultindex", ".obsidian", "templates"})
}

func TestIgnoreMatcher_ExtensionFilter(t *testing.T) {
	m := newTestMatcher(t)

	if !m.IsEligible("notes/a.md") {
		t.Error("expected .md eligible")
	}
	if !m.IsEligible("notes/b.txt") {
		t.Error("expected .txt eligible")
	}
	if m.IsEligible("image.png") {
		t.Error("expected .png not eligible")
	}
	if m.IsEligible("noext") {
		t.Error("expected extensionless file not eligible")
	}
}

func TestIgnoreMatcher_IgnoredDirectories(t *testing.T) {
	m := newTestMatcher(t)

	if m.IsEligible(".obsidian/workspace.md") {
		t.Error("expected .obsidian contents ignored")
	}
	if m.IsEligible("templates/daily.md") {
		t.Error("expected templates contents ignored")
	}
	if m.IsEligible(".vaultindex/queue.md") {
		t.Error("expected internal state dir ignored")
	}
}

func TestIgnoreMatcher_HiddenFiles(t *testing.T) {
	m := newTestMatcher(t)

	if m.IsEligible(".hidden.md") {
		t.Error("expected hidden file ignored")
	}
	if m.IsEligible("notes/.draft.md") {
		t.Error("expected hidden file in subdir ignored")
	}
}

func TestIgnoreMatcher_GitignoreLayered(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ".gitignore"), []byte("drafts/\n"), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewIgnoreMatcher(root, []string{".md"}, []string{".vaultindex"})

	if m.IsEligible("drafts/wip.md") {
		t.Error("expected gitignored path excluded")
	}
	if !m.IsEligible("notes/a.md") {
		t.Error("expected normal path eligible")
	}
}

func TestIgnoreMatcher_ShouldSkipDir(t *testing.T) {
	m := newTestMatcher(t)

	if !m.ShouldSkipDir("templates") {
		t.Error("expected templates subtree skipped")
	}
	if !m.ShouldSkipDir(".obsidian") {
		t.Error("expected hidden dir skipped")
	}
	if m.ShouldSkipDir("notes") {
		t.Error("expected normal dir not skipped")
	}
	if m.ShouldSkipDir(".") {
		t.Error("expected root not skipped")
	}
}
