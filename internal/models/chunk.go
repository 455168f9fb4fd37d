package models

import (
	"fmt"
	"strconv"
)

// Page is the extracted text of a single PDF page.
type Page struct {
	Source string
	Number int
	Text   string
}

// Chunk represents a parsed chunk with metadata
type Chunk struct {
	Content    string
	Source     string
	PageNumber int
	ChunkID    int
}

// ID is unique within one index.
func (c Chunk) ID() string {
	return fmt.Sprintf("%s#p%d-c%d", c.Source, c.PageNumber, c.ChunkID)
}

// Metadata flattens the chunk's provenance for vector stores that keep string maps.
func (c Chunk) Metadata() map[string]string {
	return map[string]string{
		MetaSource:  c.Source,
		MetaPage:    strconv.Itoa(c.PageNumber),
		MetaChunkID: strconv.Itoa(c.ChunkID),
	}
}

// ChunkFromMetadata is the inverse of Chunk.Metadata. Unparseable numbers become zero.
func ChunkFromMetadata(content string, meta map[string]string) Chunk {
	page, _ := strconv.Atoi(meta[MetaPage])
	id, _ := strconv.Atoi(meta[MetaChunkID])
	return Chunk{
		Content:    content,
		Source:     meta[MetaSource],
		PageNumber: page,
		ChunkID:    id,
	}
}

// Record is a chunk together with its embedding, ready to be indexed.
type Record struct {
	Chunk
	Embedding []float32
}

// Hit is a chunk returned by a similarity search. Higher Score means more similar.
type Hit struct {
	Chunk
	Score float32
}
