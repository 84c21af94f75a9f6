package gitrepo

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadGitAttributesClassifiesBinary(t *testing.T) {
	dir := t.TempDir()
	content := "*.png binary\n*.md text\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitattributes"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	rules, err := loadGitAttributes(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var pngKind, mdKind, goKind AttrKind
	for _, r := range rules {
		if r.match("logo.png") {
			pngKind = r.kind
		}
		if r.match("README.md") {
			mdKind = r.kind
		}
		if r.match("main.go") {
			goKind = r.kind
		}
	}

	if pngKind != AttrBinary {
		t.Fatalf("logo.png classified %v, want binary", pngKind)
	}
	if mdKind != AttrText {
		t.Fatalf("README.md classified %v, want text", mdKind)
	}
	if goKind != "" {
		t.Fatalf("main.go unexpectedly classified %v", goKind)
	}
}

func TestSniffBinaryDetectsNUL(t *testing.T) {
	if sniffBinary([]byte("plain text content")) {
		t.Fatal("plain text misclassified as binary")
	}
	if !sniffBinary([]byte("abc\x00def")) {
		t.Fatal("NUL-containing content not classified as binary")
	}
}

func TestSniffBinaryEmpty(t *testing.T) {
	if sniffBinary(nil) {
		t.Fatal("empty content misclassified as binary")
	}
}
