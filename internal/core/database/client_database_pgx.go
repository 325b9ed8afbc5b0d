package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vectra-io/vectra/internal/config"
	"github.com/vectra-io/vectra/internal/core"
	"github.com/vectra-io/vectra/internal/logger"
	"github.com/vectra-io/vectra/internal/models"
)

// Every collection read, update and delete below carries the ownerColumn
// predicate. Ownership lives only in collection metadata; chunks inherit
// it transitively through collection_id.

// ownerColumn is the expression every ownership predicate compares against
// the caller's user id. New collection queries must use it.
const ownerColumn = "cmetadata->>'owner_id'"

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (core.DbClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

// InitializeSchema re-runs the schema bootstrap. Exposed for the admin
// endpoint; harmless when the schema is already current.
func (c *DatabaseClient) InitializeSchema(ctx context.Context) error {
	return EnsureBootstrapped(ctx, c.db)
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Implementing the db interface for users

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	const q = `
		INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, COALESCE($4, now()), COALESCE($5, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		user.ID, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %q: %w", user.Email, ErrConflict)
	}
	return err
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := c.db.QueryRowContext(ctx, q, email).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Implementing the db interface for collections

func (c *DatabaseClient) ListCollections(ctx context.Context, userID string) ([]models.Collection, error) {
	const q = `
		SELECT uuid, name, cmetadata
		FROM collections
		WHERE ` + ownerColumn + ` = $1
		ORDER BY name
	`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	out := []models.Collection{}
	for rows.Next() {
		col, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *col)
	}
	return out, rows.Err()
}

// GetCollection looks a collection up by UUID or by name; both paths apply
// the ownership filter, so a foreign collection looks exactly like a
// missing one.
func (c *DatabaseClient) GetCollection(ctx context.Context, userID, idOrName string) (*models.Collection, error) {
	var col *models.Collection
	var err error
	if _, parseErr := uuid.Parse(idOrName); parseErr == nil {
		col, err = c.getCollectionByID(ctx, userID, idOrName)
	} else {
		col, err = c.getCollectionByName(ctx, userID, idOrName)
	}
	if err != nil {
		return nil, err
	}
	if col == nil {
		return nil, fmt.Errorf("collection %q: %w", idOrName, ErrNotFound)
	}
	return col, nil
}

func (c *DatabaseClient) CreateCollection(ctx context.Context, userID, name string, metadata map[string]any) (*models.Collection, error) {
	// Fast-path pre-check for a friendlier error; the unique index on
	// (owner_id, name) settles any create/create race below.
	existing, err := c.getCollectionByName(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("collection %q: %w", name, ErrConflict)
	}

	meta := copyMetadata(metadata)
	meta["owner_id"] = userID
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	const q = `
		INSERT INTO collections (name, cmetadata)
		VALUES ($1, $2::jsonb)
		RETURNING uuid, name, cmetadata
	`
	col, err := scanCollection(c.db.QueryRowContext(ctx, q, name, raw))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("collection %q: %w", name, ErrConflict)
		}
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return col, nil
}

// UpdateCollection applies a partial update: an absent name or metadata
// argument leaves the stored value unchanged. A supplied metadata map
// replaces the stored one wholesale, with owner_id force-set afterwards.
func (c *DatabaseClient) UpdateCollection(ctx context.Context, userID, id string, newName *string, metadata map[string]any) (*models.Collection, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("collection %q: %w", id, ErrNotFound)
	}

	var metaArg any
	if metadata != nil {
		meta := copyMetadata(metadata)
		meta["owner_id"] = userID
		raw, err := json.Marshal(meta)
		if err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
		metaArg = string(raw)
	}

	const q = `
		UPDATE collections
		SET name = COALESCE($1, name),
		    cmetadata = COALESCE($2::jsonb, cmetadata)
		WHERE uuid = $3 AND ` + ownerColumn + ` = $4
		RETURNING uuid, name, cmetadata
	`
	col, err := scanCollection(c.db.QueryRowContext(ctx, q, newName, metaArg, id, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("collection %q: %w", id, ErrNotFound)
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("collection name taken: %w", ErrConflict)
		}
		return nil, fmt.Errorf("update collection: %w", err)
	}
	return col, nil
}

// DeleteCollection removes the collection row; its chunks go with it via
// ON DELETE CASCADE. Zero affected rows surfaces as ErrNotFound; the HTTP
// adapter decides whether to mask that as idempotent success.
func (c *DatabaseClient) DeleteCollection(ctx context.Context, userID, id string) (int64, error) {
	if _, err := uuid.Parse(id); err != nil {
		return 0, fmt.Errorf("collection %q: %w", id, ErrNotFound)
	}
	const q = `
		DELETE FROM collections
		WHERE uuid = $1 AND ` + ownerColumn + ` = $2
	`
	res, err := c.db.ExecContext(ctx, q, id, userID)
	if err != nil {
		return 0, fmt.Errorf("delete collection: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return 0, fmt.Errorf("collection %q: %w", id, ErrNotFound)
	}
	return n, nil
}

func (c *DatabaseClient) getCollectionByID(ctx context.Context, userID, id string) (*models.Collection, error) {
	const q = `
		SELECT uuid, name, cmetadata
		FROM collections
		WHERE uuid = $1 AND ` + ownerColumn + ` = $2
	`
	col, err := scanCollection(c.db.QueryRowContext(ctx, q, id, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return col, err
}

func (c *DatabaseClient) getCollectionByName(ctx context.Context, userID, name string) (*models.Collection, error) {
	const q = `
		SELECT uuid, name, cmetadata
		FROM collections
		WHERE name = $1 AND ` + ownerColumn + ` = $2
	`
	col, err := scanCollection(c.db.QueryRowContext(ctx, q, name, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return col, err
}

// resolveCollectionID maps a collection name to its UUID for the chunk
// paths. These are lenient by design: ownership is validated upstream
// against the registry before any chunk operation runs.
func (c *DatabaseClient) resolveCollectionID(ctx context.Context, name string) (string, bool, error) {
	const q = `SELECT uuid FROM collections WHERE name = $1`
	var id string
	err := c.db.QueryRowContext(ctx, q, name).Scan(&id)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		if isUndefinedTable(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("resolve collection %q: %w", name, err)
	}
	return id, true, nil
}

// Implementing the db interface for chunks

// InsertChunks writes embedded chunks in a single transaction and returns
// the generated ids in input order.
func (c *DatabaseClient) InsertChunks(ctx context.Context, collectionName string, chunks []models.ChunkInsert) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	collectionID, ok, err := c.resolveCollectionID(ctx, collectionName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("collection %q does not exist", collectionName)
	}

	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}

	const q = `
		INSERT INTO chunks (collection_id, document, embedding, cmetadata)
		VALUES ($1, $2, $3, $4::jsonb)
		RETURNING uuid
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	defer stmt.Close()

	ids := make([]string, 0, len(chunks))
	for i := range chunks {
		ch := &chunks[i]
		raw, err := json.Marshal(ch.Metadata)
		if err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("encode chunk metadata: %w", err)
		}
		vec := pgvector.NewVector(ch.Embedding)

		var id string
		if err := stmt.QueryRowContext(ctx, collectionID, ch.Content, vec, raw).Scan(&id); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("insert chunk: %w", err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

// ListDocuments returns one representative chunk per distinct file_id in
// the named collection (tie-break: lowest chunk uuid), ordered by file_id,
// paginated after deduplication. Chunks without a file_id are excluded.
// A missing collection or uninitialized schema yields an empty list.
func (c *DatabaseClient) ListDocuments(ctx context.Context, collectionName string, limit, offset int) ([]models.DocumentView, error) {
	collectionID, ok, err := c.resolveCollectionID(ctx, collectionName)
	if err != nil {
		return nil, err
	}
	if !ok {
		logger.Warn("collection not found while listing documents", "collection", collectionName)
		return []models.DocumentView{}, nil
	}

	const q = `
		WITH unique_file_chunks AS (
			SELECT DISTINCT ON (cmetadata->>'file_id')
			       uuid,
			       cmetadata->>'file_id' AS file_id
			FROM chunks
			WHERE collection_id = $1
			  AND cmetadata->>'file_id' IS NOT NULL
			ORDER BY cmetadata->>'file_id', uuid
		)
		SELECT c.uuid, c.document, c.cmetadata
		FROM chunks c
		JOIN unique_file_chunks u ON c.uuid = u.uuid
		ORDER BY u.file_id
		LIMIT $2 OFFSET $3
	`
	rows, err := c.db.QueryContext(ctx, q, collectionID, limit, offset)
	if err != nil {
		if isUndefinedTable(err) {
			logger.Warn("chunks relation missing, returning empty document list", "collection", collectionName)
			return []models.DocumentView{}, nil
		}
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := []models.DocumentView{}
	for rows.Next() {
		var (
			id      string
			content sql.NullString
			rawMeta []byte
		)
		if err := rows.Scan(&id, &content, &rawMeta); err != nil {
			return nil, err
		}
		out = append(out, models.DocumentView{
			ID:           id,
			Content:      content.String,
			Metadata:     parseMetadata(rawMeta),
			CollectionID: collectionID,
		})
	}
	return out, rows.Err()
}

// GetChunk fetches a single chunk by id. Not-found is a normal outcome and
// comes back as (nil, nil); a malformed id is treated the same way rather
// than as a format error.
func (c *DatabaseClient) GetChunk(ctx context.Context, chunkID string) (*models.Chunk, error) {
	if _, err := uuid.Parse(chunkID); err != nil {
		logger.Debug("invalid chunk id format", "id", chunkID)
		return nil, nil
	}

	const q = `
		SELECT uuid, document, cmetadata
		FROM chunks
		WHERE uuid = $1
	`
	var (
		id      string
		content sql.NullString
		rawMeta []byte
	)
	err := c.db.QueryRowContext(ctx, q, chunkID).Scan(&id, &content, &rawMeta)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chunk: %w", err)
	}
	return &models.Chunk{
		ID:       id,
		Content:  content.String,
		Metadata: parseMetadata(rawMeta),
	}, nil
}

// DeleteChunksByFile removes every chunk whose metadata file_id is in
// fileIDs. One bulk statement, so a partial delete cannot happen. Empty
// input is a vacuous success; a missing collection reports failure.
func (c *DatabaseClient) DeleteChunksByFile(ctx context.Context, collectionName string, fileIDs []string) (bool, error) {
	if len(fileIDs) == 0 {
		return true, nil
	}
	collectionID, ok, err := c.resolveCollectionID(ctx, collectionName)
	if err != nil {
		return false, err
	}
	if !ok {
		logger.Warn("collection not found for deletion", "collection", collectionName)
		return false, nil
	}

	const q = `
		DELETE FROM chunks
		WHERE collection_id = $1 AND cmetadata->>'file_id' = ANY($2)
	`
	res, err := c.db.ExecContext(ctx, q, collectionID, fileIDs)
	if err != nil {
		if isUndefinedTable(err) {
			logger.Warn("chunks relation missing during deletion", "collection", collectionName)
			return false, nil
		}
		return false, fmt.Errorf("delete chunks: %w", err)
	}
	n, _ := res.RowsAffected()
	logger.Info("deleted chunks by file id", "collection", collectionName, "file_ids", fileIDs, "count", n)
	return true, nil
}

// SearchChunks returns the k nearest chunks to queryVec within the named
// collection, best match first. The row uuid is injected into each result's
// metadata so callers recover identity the same way they would from an
// external vector index.
func (c *DatabaseClient) SearchChunks(ctx context.Context, collectionName string, queryVec []float32, k int) ([]models.SearchResult, error) {
	collectionID, ok, err := c.resolveCollectionID(ctx, collectionName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []models.SearchResult{}, nil
	}

	const q = `
		SELECT uuid, document, cmetadata, embedding <-> $2 AS distance
		FROM chunks
		WHERE collection_id = $1
		ORDER BY embedding <-> $2
		LIMIT $3
	`
	vec := pgvector.NewVector(queryVec)
	rows, err := c.db.QueryContext(ctx, q, collectionID, vec, k)
	if err != nil {
		if isUndefinedTable(err) {
			return []models.SearchResult{}, nil
		}
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	out := []models.SearchResult{}
	for rows.Next() {
		var (
			id       string
			content  sql.NullString
			rawMeta  []byte
			distance float64
		)
		if err := rows.Scan(&id, &content, &rawMeta, &distance); err != nil {
			return nil, err
		}
		meta := parseMetadata(rawMeta)
		meta["uuid"] = id
		out = append(out, models.SearchResult{
			Content:  content.String,
			Metadata: meta,
			Score:    distance,
		})
	}
	return out, rows.Err()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollection(row rowScanner) (*models.Collection, error) {
	var (
		id      string
		name    string
		rawMeta []byte
	)
	if err := row.Scan(&id, &name, &rawMeta); err != nil {
		return nil, err
	}
	return &models.Collection{
		UUID:     id,
		Name:     name,
		Metadata: parseMetadata(rawMeta),
	}, nil
}
