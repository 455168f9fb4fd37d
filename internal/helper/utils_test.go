package helper

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReplaceDir_NoPrevious(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "tmp")
	dst := filepath.Join(root, "index")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "a.txt"), []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ReplaceDir(src, dst); err != nil {
		t.Fatalf("ReplaceDir: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	if err != nil || string(data) != "new" {
		t.Fatalf("expected new content, got %q (%v)", data, err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("expected src to be gone, got %v", err)
	}
}

func TestReplaceDir_ReplacesPrevious(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "tmp")
	dst := filepath.Join(root, "index")
	for dir, content := range map[string]string{src: "new", dst: "old"} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dst, "stale.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ReplaceDir(src, dst); err != nil {
		t.Fatalf("ReplaceDir: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(dst, "a.txt"))
	if string(data) != "new" {
		t.Errorf("expected new content, got %q", data)
	}
	if _, err := os.Stat(filepath.Join(dst, "stale.txt")); !os.IsNotExist(err) {
		t.Error("expected stale file from previous directory to be gone")
	}
	if _, err := os.Stat(dst + ".old"); !os.IsNotExist(err) {
		t.Error("expected backup directory to be removed")
	}
}

func TestReplaceDir_MissingSourceKeepsPrevious(t *testing.T) {
	root := t.TempDir()
	dst := filepath.Join(root, "index")
	if err := os.MkdirAll(dst, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dst, "a.txt"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ReplaceDir(filepath.Join(root, "missing"), dst); err == nil {
		t.Fatal("expected error for missing source")
	}
	data, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	if err != nil || string(data) != "old" {
		t.Fatalf("expected previous content to be restored, got %q (%v)", data, err)
	}
}

func TestGenerateUUID(t *testing.T) {
	a, err := GenerateUUID()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := GenerateUUID()
	if a == b || len(a) != 36 {
		t.Errorf("unexpected uuids %q %q", a, b)
	}
}

func TestPrettyPrint(t *testing.T) {
	var buf bytes.Buffer
	PrettyPrint(&buf, map[string]int{"chunks": 3})
	if !strings.Contains(buf.String(), `"chunks": 3`) {
		t.Errorf("unexpected output %q", buf.String())
	}
}
