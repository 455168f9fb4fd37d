package parser

import (
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"lawgpt/internal/config"
	"lawgpt/internal/models"
)

const (
	defaultChunkSize    = 800
	defaultChunkOverlap = 200
)

// LoadPDF extracts the text of every page of a PDF file. When maxPages is
// positive only the first maxPages pages are read.
//
// The pdf package panics on some malformed inputs; those panics are returned
// as errors so a single bad file cannot abort an ingestion run.
func LoadPDF(filePath string, maxPages int) (pages []models.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("malformed pdf %s: %v", filePath, r)
		}
	}()

	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf %s: %w", filePath, err)
	}

	numPages := reader.NumPage()
	if maxPages > 0 && numPages > maxPages {
		numPages = maxPages
	}
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract text from page %d of %s: %w", i, filePath, err)
		}
		pages = append(pages, models.Page{
			Source: filePath,
			Number: i,
			Text:   strings.TrimSpace(pageText),
		})
	}
	return pages, nil
}

// SplitPages chunks every page independently using the given profile.
func SplitPages(pages []models.Page, profile config.ChunkProfile) []models.Chunk {
	if profile.ChunkSize <= 0 {
		profile.ChunkSize = defaultChunkSize
		profile.ChunkOverlap = defaultChunkOverlap
	}

	var chunks []models.Chunk
	for _, page := range pages {
		chunks = append(chunks, getChunks(page, profile)...)
	}
	return chunks
}

// chunkContent splits content into windows of at most maxChars runes. Each
// window starts maxChars-overlapChars runes after the previous one, so
// consecutive chunks share exactly overlapChars runes; the last chunk may be
// shorter.
func chunkContent(content string, maxChars, overlapChars int) []string {
	if maxChars <= 0 {
		return nil
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars / 2
	}

	runes := []rune(content)
	contentLen := len(runes)
	if contentLen == 0 {
		return nil
	}
	if contentLen <= maxChars {
		return []string{content}
	}

	step := maxChars - overlapChars
	var chunks []string
	for start := 0; ; start += step {
		end := min(start+maxChars, contentLen)
		chunks = append(chunks, string(runes[start:end]))
		if end == contentLen {
			break
		}
	}
	return chunks
}

// ChunkCount is the number of chunks chunkContent yields for text of n runes.
func ChunkCount(n, maxChars, overlapChars int) int {
	if n == 0 {
		return 0
	}
	if n <= maxChars {
		return 1
	}
	step := maxChars - overlapChars
	return 1 + (n-maxChars+step-1)/step
}

// get chunks from page content, numbered from 1 within the page
func getChunks(page models.Page, profile config.ChunkProfile) []models.Chunk {
	var chunks []models.Chunk
	for i, chunkString := range chunkContent(page.Text, profile.ChunkSize, profile.ChunkOverlap) {
		chunks = append(chunks, models.Chunk{
			Content:    chunkString,
			Source:     page.Source,
			PageNumber: page.Number,
			ChunkID:    i + 1,
		})
	}
	return chunks
}
