package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/JagjeevanAK/mem-oracle/internal/chunk"
	"github.com/JagjeevanAK/mem-oracle/internal/extract"
	"github.com/JagjeevanAK/mem-oracle/internal/ids"
	"github.com/JagjeevanAK/mem-oracle/internal/store"
)

// chunkDocument adapts an Extractor document's headings to the Chunker's
// input shape and splits its content.
func (e *Engine) chunkDocument(doc *extract.Document) []chunk.Chunk {
	headings := make([]chunk.Heading, len(doc.Headings))
	for i, h := range doc.Headings {
		headings[i] = chunk.Heading{Level: h.Level, Text: h.Text}
	}
	return e.chunker.Chunk(doc.Content, headings)
}

// embedAndStoreChunks implements step 10 of 4.9.2: persist chunk rows
// (each created with its embeddingId already set to its own chunk ID),
// embed their bodies as a single batch, then upsert into the vector
// namespace. No embeddingId write follows the upsert, so a failed embed
// or upsert leaves chunk rows whose embeddingId names no stored vector.
func (e *Engine) embedAndStoreChunks(ctx context.Context, d *store.Docset, p *store.Page, chunks []chunk.Chunk) error {
	now := time.Now()
	storeChunks := make([]*store.Chunk, len(chunks))
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		id := ids.Chunk(p.ID, i, c.Body)
		storeChunks[i] = &store.Chunk{
			ID:          id,
			PageID:      p.ID,
			DocsetID:    d.ID,
			Body:        c.Body,
			Heading:     c.Heading,
			StartOffset: c.StartOffset,
			EndOffset:   c.EndOffset,
			Index:       c.Index,
			EmbeddingID: id,
			CreatedAt:   now,
		}
		texts[i] = c.Body
	}

	if err := e.metadata.CreateChunks(ctx, storeChunks); err != nil {
		return fmt.Errorf("create chunks: %w", err)
	}

	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(storeChunks) {
		return fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(storeChunks))
	}

	records := make([]*store.VectorRecord, len(storeChunks))
	for i, sc := range storeChunks {
		records[i] = &store.VectorRecord{
			ID:       sc.ID,
			DocsetID: d.ID,
			PageID:   p.ID,
			URL:      p.URL,
			Title:    p.Title,
			Heading:  sc.Heading,
			Content:  sc.Body,
			Vector:   vectors[i],
		}
	}
	if err := e.vectors.Upsert(ctx, d.ID, records); err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}

	return nil
}
