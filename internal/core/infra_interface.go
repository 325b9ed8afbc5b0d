package core

import (
	"context"

	"github.com/vectra-io/vectra/internal/models"
)

// DbClient defines all persistence operations the services need.
// It abstracts Postgres/pgvector so higher layers never depend on a
// specific DB. Collection operations take the caller's user id and apply
// the ownership filter on every read, update and delete; a row owned by
// someone else is indistinguishable from a missing row.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	ListCollections(ctx context.Context, userID string) ([]models.Collection, error)
	GetCollection(ctx context.Context, userID, idOrName string) (*models.Collection, error)
	CreateCollection(ctx context.Context, userID, name string, metadata map[string]any) (*models.Collection, error)
	UpdateCollection(ctx context.Context, userID, id string, newName *string, metadata map[string]any) (*models.Collection, error)
	DeleteCollection(ctx context.Context, userID, id string) (int64, error)

	InsertChunks(ctx context.Context, collectionName string, chunks []models.ChunkInsert) ([]string, error)
	ListDocuments(ctx context.Context, collectionName string, limit, offset int) ([]models.DocumentView, error)
	GetChunk(ctx context.Context, chunkID string) (*models.Chunk, error)
	DeleteChunksByFile(ctx context.Context, collectionName string, fileIDs []string) (bool, error)
	SearchChunks(ctx context.Context, collectionName string, queryVec []float32, k int) ([]models.SearchResult, error)

	InitializeSchema(ctx context.Context) error
	Close() error
}

// EmbeddingProvider turns text into fixed-length numeric vectors.
// Implementations are interchangeable (real model or deterministic fake).
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string, dim int) ([][]float32, error)
}

// LLMProvider generates an answer from a system prompt and a user prompt.
type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
}

// DocumentExtractor converts an uploaded file into plain text.
type DocumentExtractor interface {
	ExtractText(ctx context.Context, data []byte, contentType string) (string, error)
}
