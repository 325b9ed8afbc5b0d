package services

import (
	"context"
	"fmt"

	"github.com/vectra-io/vectra/internal/core"
	"github.com/vectra-io/vectra/internal/models"
)

const defaultSearchLimit = 4

// DocumentInput is one pre-split document chunk to ingest: raw text plus
// an open metadata bag (file_id, chunk index, source, ...).
type DocumentInput struct {
	Content  string
	Metadata map[string]any
}

// DocumentService orchestrates embedding and chunk storage for the
// document-level operations of a collection.
type DocumentService struct {
	db       core.DbClient
	embedder core.EmbeddingProvider
	embedDim int
}

func NewDocumentService(db core.DbClient, embedder core.EmbeddingProvider, embedDim int) *DocumentService {
	return &DocumentService{db: db, embedder: embedder, embedDim: embedDim}
}

// Insert embeds each input and persists one chunk row per document.
// Returned ids are backend-generated and correspond to input order.
func (s *DocumentService) Insert(ctx context.Context, collectionName string, docs []DocumentInput) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	texts := make([]string, len(docs))
	for i := range docs {
		texts[i] = docs[i].Content
	}

	vecs, err := s.embedder.EmbedTexts(ctx, texts, s.embedDim)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vecs) != len(docs) {
		return nil, fmt.Errorf("embed size mismatch: got %d want %d", len(vecs), len(docs))
	}

	rows := make([]models.ChunkInsert, len(docs))
	for i := range docs {
		meta := docs[i].Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		rows[i] = models.ChunkInsert{
			Content:   docs[i].Content,
			Embedding: vecs[i],
			Metadata:  meta,
		}
	}
	return s.db.InsertChunks(ctx, collectionName, rows)
}

func (s *DocumentService) List(ctx context.Context, collectionName string, limit, offset int) ([]models.DocumentView, error) {
	return s.db.ListDocuments(ctx, collectionName, limit, offset)
}

func (s *DocumentService) GetChunk(ctx context.Context, chunkID string) (*models.Chunk, error) {
	return s.db.GetChunk(ctx, chunkID)
}

func (s *DocumentService) DeleteByFile(ctx context.Context, collectionName string, fileIDs []string) (bool, error) {
	return s.db.DeleteChunksByFile(ctx, collectionName, fileIDs)
}

// Search embeds the query and returns up to k hits, best match first.
// Hit ids are recovered from the result metadata ("uuid" or "id"), since
// the ranking backend does not expose storage identity any other way.
func (s *DocumentService) Search(ctx context.Context, collectionName, query string, k int) ([]models.SearchHit, error) {
	if k <= 0 {
		k = defaultSearchLimit
	}

	vecs, err := s.embedder.EmbedTexts(ctx, []string{query}, s.embedDim)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}

	results, err := s.db.SearchChunks(ctx, collectionName, vecs[0], k)
	if err != nil {
		return nil, err
	}

	hits := make([]models.SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, models.SearchHit{
			ID:       hitID(r.Metadata),
			Content:  r.Content,
			Metadata: r.Metadata,
			Score:    r.Score,
		})
	}
	return hits, nil
}

func hitID(meta map[string]any) string {
	for _, key := range []string{"uuid", "id"} {
		if v, ok := meta[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
