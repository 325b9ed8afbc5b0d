package models

import (
	"time"
)

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Collection is a named, owned grouping of document chunks.
// Metadata is an open key-value bag; the reserved "owner_id" key is always
// set server-side to the authenticated caller and never trusted from input.
type Collection struct {
	UUID     string         `db:"uuid" json:"uuid"`
	Name     string         `db:"name" json:"name"`
	Metadata map[string]any `db:"cmetadata" json:"metadata"`
}

// Chunk is one embedded segment of a source document.
type Chunk struct {
	ID       string         `db:"uuid" json:"id"`
	Content  string         `db:"document" json:"content"`
	Metadata map[string]any `db:"cmetadata" json:"metadata"`
}

// ChunkInsert is the input row for a bulk chunk insert. The embedding is
// computed before insert; ids are generated by the database.
type ChunkInsert struct {
	Content   string
	Embedding []float32
	Metadata  map[string]any
}

// DocumentView is one representative chunk per distinct file_id within a
// collection. It is a derived projection over the chunks table, not a
// stored entity.
type DocumentView struct {
	ID           string         `json:"id"`
	Content      string         `json:"content"`
	Metadata     map[string]any `json:"metadata"`
	CollectionID string         `json:"collection_id"`
}

// SearchResult is a raw nearest-neighbor result: content, metadata and a
// distance score (smaller is closer). Storage identity travels inside the
// metadata under the "uuid" key.
type SearchResult struct {
	Content  string
	Metadata map[string]any
	Score    float64
}

// SearchHit is a ranked search result surfaced to callers, with the chunk
// id recovered from the result metadata.
type SearchHit struct {
	ID       string         `json:"id"`
	Content  string         `json:"page_content"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"score"`
}
