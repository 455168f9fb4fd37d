package parser

import (
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"lawgpt/internal/config"
	"lawgpt/internal/models"
	"lawgpt/internal/testutil"
)

func TestChunkContent_Windows(t *testing.T) {
	tests := []struct {
		name          string
		n, size, over int
	}{
		{"empty", 0, 800, 200},
		{"shorter than size", 799, 800, 200},
		{"exactly size", 800, 800, 200},
		{"one step over", 801, 800, 200},
		{"several windows", 5000, 800, 200},
		{"quick profile", 2345, 500, 50},
		{"no overlap", 1000, 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := strings.Repeat("abcdefghij", tt.n/10+1)[:tt.n]
			chunks := chunkContent(text, tt.size, tt.over)

			if got, want := len(chunks), ChunkCount(tt.n, tt.size, tt.over); got != want {
				t.Fatalf("expected %d chunks, got %d", want, got)
			}
			for i, c := range chunks {
				if utf8.RuneCountInString(c) > tt.size {
					t.Errorf("chunk %d has %d runes, max %d", i, utf8.RuneCountInString(c), tt.size)
				}
				if i == 0 {
					continue
				}
				prev := chunks[i-1]
				if !strings.HasPrefix(c, prev[len(prev)-tt.over:]) {
					t.Errorf("chunk %d does not start with the last %d runes of chunk %d", i, tt.over, i-1)
				}
			}
			if len(chunks) > 0 && !strings.HasSuffix(text, chunks[len(chunks)-1]) {
				t.Error("last chunk does not end the text")
			}
		})
	}
}

func TestChunkContent_Runes(t *testing.T) {
	text := strings.Repeat("§ Gesetz über Straßen ", 40)
	chunks := chunkContent(text, 50, 10)
	for i, c := range chunks {
		if !utf8.ValidString(c) {
			t.Fatalf("chunk %d is not valid utf-8", i)
		}
		if n := utf8.RuneCountInString(c); n > 50 {
			t.Errorf("chunk %d has %d runes", i, n)
		}
	}
	if got, want := len(chunks), ChunkCount(utf8.RuneCountInString(text), 50, 10); got != want {
		t.Errorf("expected %d chunks, got %d", want, got)
	}
}

func TestSplitPages(t *testing.T) {
	pages := []models.Page{
		{Source: "a.pdf", Number: 1, Text: strings.Repeat("x", 1200)},
		{Source: "a.pdf", Number: 2, Text: ""},
		{Source: "a.pdf", Number: 3, Text: "short page"},
	}
	chunks := SplitPages(pages, config.ChunkProfile{ChunkSize: 800, ChunkOverlap: 200})

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	want := []struct{ page, id int }{{1, 1}, {1, 2}, {3, 1}}
	for i, w := range want {
		if chunks[i].PageNumber != w.page || chunks[i].ChunkID != w.id {
			t.Errorf("chunk %d: expected page %d id %d, got page %d id %d",
				i, w.page, w.id, chunks[i].PageNumber, chunks[i].ChunkID)
		}
		if chunks[i].Source != "a.pdf" {
			t.Errorf("chunk %d lost its source", i)
		}
	}
}

func TestFindPDFs(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"b.pdf", "a/inner.PDF", "a/notes.txt", "c/d/deep.pdf"} {
		testutil.WriteFile(t, filepath.Join(root, name), []byte("x"))
	}

	files, err := FindPDFs(root)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(root, "a/inner.PDF"),
		filepath.Join(root, "b.pdf"),
		filepath.Join(root, "c/d/deep.pdf"),
	}
	if len(files) != len(want) {
		t.Fatalf("expected %v, got %v", want, files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("file %d: expected %s, got %s", i, want[i], files[i])
		}
	}

	if _, err := FindPDFs(filepath.Join(root, "missing")); err == nil {
		t.Error("expected error for missing root")
	}
	if _, err := FindPDFs(filepath.Join(root, "b.pdf")); err == nil {
		t.Error("expected error for file root")
	}
}

func TestLoadPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "act.pdf")
	testutil.WritePDF(t, path, "Section 1. Short title (Act).", "Section 2. Definitions.")

	pages, err := LoadPDF(path, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	if pages[0].Number != 1 || pages[1].Number != 2 {
		t.Errorf("unexpected page numbers %d, %d", pages[0].Number, pages[1].Number)
	}
	if !strings.Contains(pages[0].Text, "Short title (Act)") {
		t.Errorf("unexpected page 1 text %q", pages[0].Text)
	}
	if pages[1].Source != path {
		t.Errorf("expected source %s, got %s", path, pages[1].Source)
	}

	capped, err := LoadPDF(path, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(capped) != 1 {
		t.Errorf("expected page cap to keep 1 page, got %d", len(capped))
	}
}

func TestLoadPDF_Corrupt(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.pdf")
	testutil.WriteFile(t, garbage, []byte("this is not a pdf file at all"))
	if _, err := LoadPDF(garbage, 0); err == nil {
		t.Error("expected error for garbage file")
	}

	truncated := filepath.Join(dir, "truncated.pdf")
	full := testutil.BuildPDF("some text")
	testutil.WriteFile(t, truncated, full[:len(full)/2])
	if _, err := LoadPDF(truncated, 0); err == nil {
		t.Error("expected error for truncated file")
	}

	if _, err := LoadPDF(filepath.Join(dir, "missing.pdf"), 0); err == nil {
		t.Error("expected error for missing file")
	}
}
