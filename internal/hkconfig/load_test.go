package hkconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jdx/hk/internal/hkcache"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const sampleDoc = "hooks:\n  check:\n    steps:\n      lint:\n        check: echo ok\n"

func TestLoadDocumentCachedMissThenHit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hk.yaml")
	writeConfig(t, path, sampleDoc)

	cache, err := hkcache.NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	doc1, err := LoadDocumentCached(path, true, cache)
	if err != nil {
		t.Fatal(err)
	}
	hook := doc1.HookByName("check")
	if hook == nil || hook.Steps.StepByName("lint") == nil {
		t.Fatalf("unexpected document: %+v", doc1)
	}

	doc2, err := LoadDocumentCached(path, true, cache)
	if err != nil {
		t.Fatal(err)
	}
	if doc2.HookByName("check") == nil || doc2.HookByName("check").Steps.StepByName("lint").Check != "echo ok" {
		t.Fatalf("cached load lost data: %+v", doc2)
	}
}

func TestLoadDocumentCachedInvalidatesOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hk.yaml")
	writeConfig(t, path, sampleDoc)

	cache, err := hkcache.NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	if _, err := LoadDocumentCached(path, true, cache); err != nil {
		t.Fatal(err)
	}

	writeConfig(t, path, "hooks:\n  check:\n    steps:\n      lint:\n        check: echo changed\n")

	doc, err := LoadDocumentCached(path, true, cache)
	if err != nil {
		t.Fatal(err)
	}
	if doc.HookByName("check").Steps.StepByName("lint").Check != "echo changed" {
		t.Fatalf("expected cache invalidation on mtime/size change, got %+v", doc)
	}
}

func TestLoadDocumentCachedNilCacheFallsBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hk.yaml")
	writeConfig(t, path, sampleDoc)

	doc, err := LoadDocumentCached(path, true, nil)
	if err != nil {
		t.Fatal(err)
	}
	if doc.HookByName("check") == nil {
		t.Fatalf("unexpected document: %+v", doc)
	}
}
