package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectra-io/vectra/internal/config"
	db "github.com/vectra-io/vectra/internal/core/database"
	"github.com/vectra-io/vectra/internal/core/ingest"
	"github.com/vectra-io/vectra/internal/core/llm"
	"github.com/vectra-io/vectra/internal/models"
	"github.com/vectra-io/vectra/internal/services"
)

const testEmbedDim = 8

// memStore is an in-memory stand-in for the Postgres client so the full
// HTTP stack can be exercised without a database. It mirrors the store's
// contract: ownership filters on every collection read/write, per-owner
// name uniqueness, wholesale metadata replace, per-file dedup on listing,
// cascade delete of chunks, and L2 nearest-neighbor search.
type memStore struct {
	mu     sync.Mutex
	users  map[string]*models.User
	cols   []*memCollection
	chunks []*memChunk
	seq    int
}

type memCollection struct {
	uuid string
	name string
	meta map[string]any
}

type memChunk struct {
	id           string
	collectionID string
	content      string
	embedding    []float32
	meta         map[string]any
	seq          int
}

func newMemStore() *memStore {
	return &memStore{users: map[string]*models.User{}}
}

func (m *memStore) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Email]; ok {
		return db.ErrConflict
	}
	m.users[user.Email] = user
	return nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, db.ErrNotFound
	}
	return u, nil
}

func (m *memStore) ListCollections(_ context.Context, userID string) ([]models.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Collection{}
	for _, c := range m.cols {
		if c.meta["owner_id"] == userID {
			out = append(out, c.view())
		}
	}
	return out, nil
}

func (m *memStore) GetCollection(_ context.Context, userID, idOrName string) (*models.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cols {
		if c.meta["owner_id"] != userID {
			continue
		}
		if c.uuid == idOrName || c.name == idOrName {
			v := c.view()
			return &v, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *memStore) CreateCollection(_ context.Context, userID, name string, metadata map[string]any) (*models.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cols {
		if c.name == name && c.meta["owner_id"] == userID {
			return nil, db.ErrConflict
		}
	}
	meta := map[string]any{}
	for k, v := range metadata {
		meta[k] = v
	}
	meta["owner_id"] = userID
	col := &memCollection{uuid: uuid.NewString(), name: name, meta: meta}
	m.cols = append(m.cols, col)
	v := col.view()
	return &v, nil
}

func (m *memStore) UpdateCollection(_ context.Context, userID, id string, newName *string, metadata map[string]any) (*models.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var target *memCollection
	for _, c := range m.cols {
		if c.uuid == id && c.meta["owner_id"] == userID {
			target = c
			break
		}
	}
	if target == nil {
		return nil, db.ErrNotFound
	}
	if newName != nil {
		for _, c := range m.cols {
			if c != target && c.name == *newName && c.meta["owner_id"] == userID {
				return nil, db.ErrConflict
			}
		}
		target.name = *newName
	}
	if metadata != nil {
		meta := map[string]any{}
		for k, v := range metadata {
			meta[k] = v
		}
		meta["owner_id"] = userID
		target.meta = meta
	}
	v := target.view()
	return &v, nil
}

func (m *memStore) DeleteCollection(_ context.Context, userID, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.cols {
		if c.uuid == id && c.meta["owner_id"] == userID {
			m.cols = append(m.cols[:i], m.cols[i+1:]...)
			kept := m.chunks[:0]
			for _, ch := range m.chunks {
				if ch.collectionID != c.uuid {
					kept = append(kept, ch)
				}
			}
			m.chunks = kept
			return 1, nil
		}
	}
	return 0, db.ErrNotFound
}

func (m *memStore) findByName(name string) *memCollection {
	for _, c := range m.cols {
		if c.name == name {
			return c
		}
	}
	return nil
}

func (m *memStore) InsertChunks(_ context.Context, collectionName string, chunks []models.ChunkInsert) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	col := m.findByName(collectionName)
	if col == nil {
		return nil, fmt.Errorf("collection %q does not exist", collectionName)
	}
	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		m.seq++
		row := &memChunk{
			id:           uuid.NewString(),
			collectionID: col.uuid,
			content:      ch.Content,
			embedding:    ch.Embedding,
			meta:         ch.Metadata,
			seq:          m.seq,
		}
		m.chunks = append(m.chunks, row)
		ids[i] = row.id
	}
	return ids, nil
}

func (m *memStore) ListDocuments(_ context.Context, collectionName string, limit, offset int) ([]models.DocumentView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	col := m.findByName(collectionName)
	if col == nil {
		return []models.DocumentView{}, nil
	}
	// One representative chunk per file_id (the earliest inserted), ordered
	// by file_id. Chunks without a file_id never appear in the view.
	best := map[string]*memChunk{}
	for _, ch := range m.chunks {
		if ch.collectionID != col.uuid {
			continue
		}
		fid, _ := ch.meta["file_id"].(string)
		if fid == "" {
			continue
		}
		if cur, ok := best[fid]; !ok || ch.seq < cur.seq {
			best[fid] = ch
		}
	}
	fids := make([]string, 0, len(best))
	for fid := range best {
		fids = append(fids, fid)
	}
	sort.Strings(fids)
	reps := make([]*memChunk, 0, len(best))
	for _, fid := range fids {
		reps = append(reps, best[fid])
	}

	out := []models.DocumentView{}
	for i := offset; i < len(reps) && len(out) < limit; i++ {
		ch := reps[i]
		out = append(out, models.DocumentView{
			ID:           ch.id,
			Content:      ch.content,
			Metadata:     ch.meta,
			CollectionID: ch.collectionID,
		})
	}
	return out, nil
}

func (m *memStore) GetChunk(_ context.Context, chunkID string) (*models.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.chunks {
		if ch.id == chunkID {
			return &models.Chunk{ID: ch.id, Content: ch.content, Metadata: ch.meta}, nil
		}
	}
	return nil, nil
}

func (m *memStore) DeleteChunksByFile(_ context.Context, collectionName string, fileIDs []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(fileIDs) == 0 {
		return true, nil
	}
	col := m.findByName(collectionName)
	if col == nil {
		return false, nil
	}
	targets := map[string]bool{}
	for _, id := range fileIDs {
		targets[id] = true
	}
	kept := m.chunks[:0]
	for _, ch := range m.chunks {
		fid, _ := ch.meta["file_id"].(string)
		if ch.collectionID == col.uuid && targets[fid] {
			continue
		}
		kept = append(kept, ch)
	}
	m.chunks = kept
	return true, nil
}

func (m *memStore) SearchChunks(_ context.Context, collectionName string, queryVec []float32, k int) ([]models.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	col := m.findByName(collectionName)
	if col == nil {
		return []models.SearchResult{}, nil
	}
	type scored struct {
		ch    *memChunk
		score float64
	}
	var ranked []scored
	for _, ch := range m.chunks {
		if ch.collectionID != col.uuid {
			continue
		}
		ranked = append(ranked, scored{ch: ch, score: l2Distance(queryVec, ch.embedding)})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score < ranked[j].score })
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	out := make([]models.SearchResult, len(ranked))
	for i, s := range ranked {
		meta := map[string]any{}
		for key, v := range s.ch.meta {
			meta[key] = v
		}
		meta["uuid"] = s.ch.id
		out[i] = models.SearchResult{Content: s.ch.content, Metadata: meta, Score: s.score}
	}
	return out, nil
}

func (m *memStore) InitializeSchema(context.Context) error { return nil }
func (m *memStore) Close() error                           { return nil }

func (c *memCollection) view() models.Collection {
	meta := map[string]any{}
	for k, v := range c.meta {
		meta[k] = v
	}
	return models.Collection{UUID: c.uuid, Name: c.name, Metadata: meta}
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// stubLLM answers every generation request with a fixed string.
type stubLLM struct{}

func (stubLLM) Generate(_ context.Context, _, _ string) (string, error) {
	return "stub answer", nil
}

func newTestHandler(t *testing.T) (http.Handler, *memStore) {
	t.Helper()
	cfg := &config.Config{
		Port:      "0",
		JWTSecret: "test-secret",
		EmbedDim:  testEmbedDim,
		Testing:   true,
	}
	store := newMemStore()
	docs := services.NewDocumentService(store, llm.NewFakeEmbedder(testEmbedDim), testEmbedDim)
	cols := services.NewCollectionService(store)
	ing := services.NewIngestService(docs, ingest.NewDocconvExtractor(false), nil, "", services.IngestConfig{
		TargetTokens:   50,
		OverlapTokens:  5,
		MaxConcurrency: 2,
	})
	srv := NewServer(cfg, store, cols, docs, ing, stubLLM{})
	return srv.httpServer.Handler, store
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), "body: %s", rr.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t)
	rr := doJSON(t, h, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decodeBody[map[string]string](t, rr)["status"])
}

func TestInitializeDatabase(t *testing.T) {
	h, _ := newTestHandler(t)
	rr := doJSON(t, h, http.MethodPost, "/admin/initialize-database", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestAuthRequired(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := doJSON(t, h, http.MethodGet, "/api/collections", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doJSON(t, h, http.MethodGet, "/api/collections", "no_such_user", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestSignupAndLogin(t *testing.T) {
	h, _ := newTestHandler(t)

	creds := map[string]string{"email": "a@example.com", "password": "hunter22"}
	rr := doJSON(t, h, http.MethodPost, "/api/signup", "", creds)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.NotEmpty(t, decodeBody[map[string]string](t, rr)["token"])

	// Duplicate signup conflicts.
	rr = doJSON(t, h, http.MethodPost, "/api/signup", "", creds)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = doJSON(t, h, http.MethodPost, "/api/login", "", creds)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, decodeBody[map[string]string](t, rr)["token"])

	rr = doJSON(t, h, http.MethodPost, "/api/login", "",
		map[string]string{"email": "a@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCollectionLifecycle(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := doJSON(t, h, http.MethodPost, "/api/collections", "user1",
		map[string]any{"name": "notes", "metadata": map[string]any{"purpose": "testing"}})
	require.Equal(t, http.StatusCreated, rr.Code)
	created := decodeBody[models.Collection](t, rr)
	assert.Equal(t, "notes", created.Name)
	assert.NotEmpty(t, created.UUID)
	assert.Equal(t, "user1", created.Metadata["owner_id"])
	assert.Equal(t, "testing", created.Metadata["purpose"])

	// Fetch works by name and by uuid.
	for _, key := range []string{"notes", created.UUID} {
		rr = doJSON(t, h, http.MethodGet, "/api/collections/"+key, "user1", nil)
		require.Equal(t, http.StatusOK, rr.Code, "key %q", key)
		assert.Equal(t, created.UUID, decodeBody[models.Collection](t, rr).UUID)
	}

	rr = doJSON(t, h, http.MethodGet, "/api/collections", "user1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[[]models.Collection](t, rr), 1)
}

func TestCollectionDuplicateName(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := doJSON(t, h, http.MethodPost, "/api/collections", "user1", map[string]any{"name": "dup"})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doJSON(t, h, http.MethodPost, "/api/collections", "user1", map[string]any{"name": "dup"})
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, decodeBody[map[string]string](t, rr)["detail"], "already exists")

	// Another user may reuse the name.
	rr = doJSON(t, h, http.MethodPost, "/api/collections", "user2", map[string]any{"name": "dup"})
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestCollectionOwnershipIsolation(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := doJSON(t, h, http.MethodPost, "/api/collections", "user1", map[string]any{"name": "private"})
	require.Equal(t, http.StatusCreated, rr.Code)
	created := decodeBody[models.Collection](t, rr)

	// Another user's collection looks missing, by name and by uuid.
	rr = doJSON(t, h, http.MethodGet, "/api/collections/private", "user2", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = doJSON(t, h, http.MethodGet, "/api/collections/"+created.UUID, "user2", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, h, http.MethodGet, "/api/collections", "user2", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeBody[[]models.Collection](t, rr))
}

func TestCollectionUpdate(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := doJSON(t, h, http.MethodPost, "/api/collections", "user1",
		map[string]any{"name": "before", "metadata": map[string]any{"a": 1, "b": 2}})
	require.Equal(t, http.StatusCreated, rr.Code)

	// Metadata replace is wholesale: unmentioned keys are gone, owner_id
	// is re-stamped.
	rr = doJSON(t, h, http.MethodPatch, "/api/collections/before", "user1",
		map[string]any{"metadata": map[string]any{"a": 2}})
	require.Equal(t, http.StatusOK, rr.Code)
	updated := decodeBody[models.Collection](t, rr)
	assert.Equal(t, map[string]any{"a": float64(2), "owner_id": "user1"}, updated.Metadata)

	// Rename by name path.
	rr = doJSON(t, h, http.MethodPatch, "/api/collections/before", "user1",
		map[string]any{"name": "after"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "after", decodeBody[models.Collection](t, rr).Name)

	rr = doJSON(t, h, http.MethodGet, "/api/collections/before", "user1", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	// Renaming onto an existing collection conflicts.
	rr = doJSON(t, h, http.MethodPost, "/api/collections", "user1", map[string]any{"name": "other"})
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = doJSON(t, h, http.MethodPatch, "/api/collections/other", "user1",
		map[string]any{"name": "after"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = doJSON(t, h, http.MethodPatch, "/api/collections/ghost", "user1",
		map[string]any{"metadata": map[string]any{}})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCollectionDeleteIdempotent(t *testing.T) {
	h, store := newTestHandler(t)

	rr := doJSON(t, h, http.MethodPost, "/api/collections", "user1", map[string]any{"name": "doomed"})
	require.Equal(t, http.StatusCreated, rr.Code)

	ids, err := store.InsertChunks(context.Background(), "doomed", []models.ChunkInsert{
		{Content: "chunk", Embedding: make([]float32, testEmbedDim), Metadata: map[string]any{"file_id": "f1"}},
	})
	require.NoError(t, err)

	rr = doJSON(t, h, http.MethodDelete, "/api/collections/doomed", "user1", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	// Deleting again, or deleting something that never existed, still 204s.
	rr = doJSON(t, h, http.MethodDelete, "/api/collections/doomed", "user1", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = doJSON(t, h, http.MethodGet, "/api/collections/doomed", "user1", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	// Chunks went with the collection.
	rr = doJSON(t, h, http.MethodGet, "/api/chunks/"+ids[0], "user1", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func uploadFiles(t *testing.T, h http.Handler, token, collection, metadatasJSON string, files map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	if metadatasJSON != "" {
		require.NoError(t, mw.WriteField("metadatas_json", metadatasJSON))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/collections/"+collection+"/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestDocumentUploadAndList(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := doJSON(t, h, http.MethodPost, "/api/collections", "user1", map[string]any{"name": "docs"})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = uploadFiles(t, h, "user1", "docs", `[{"topic":"greetings"}]`,
		map[string]string{"hello.txt": "hello world from the first file"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decodeBody[map[string]any](t, rr)
	assert.Equal(t, true, resp["success"])
	added := resp["added_chunk_ids"].([]any)
	require.NotEmpty(t, added)

	rr = doJSON(t, h, http.MethodGet, "/api/collections/docs/documents", "user1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	listed := decodeBody[[]models.DocumentView](t, rr)
	require.Len(t, listed, 1)
	assert.Equal(t, "hello.txt", listed[0].Metadata["source"])
	assert.Equal(t, "greetings", listed[0].Metadata["topic"])
	assert.NotEmpty(t, listed[0].Metadata["file_id"])

	// A second file becomes a second document entry.
	rr = uploadFiles(t, h, "user1", "docs", "",
		map[string]string{"bye.txt": "goodbye from the second file"})
	require.Equal(t, http.StatusOK, rr.Code)
	rr = doJSON(t, h, http.MethodGet, "/api/collections/docs/documents", "user1", nil)
	assert.Len(t, decodeBody[[]models.DocumentView](t, rr), 2)
}

func TestDocumentUploadValidation(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := doJSON(t, h, http.MethodPost, "/api/collections", "user1", map[string]any{"name": "docs"})
	require.Equal(t, http.StatusCreated, rr.Code)

	// Metadata count must match file count.
	rr = uploadFiles(t, h, "user1", "docs", `[{"a":1},{"b":2}]`,
		map[string]string{"one.txt": "content"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeBody[map[string]string](t, rr)["detail"], "does not match")

	rr = uploadFiles(t, h, "user1", "docs", `not json`,
		map[string]string{"one.txt": "content"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Unknown collection 404s before any processing.
	rr = uploadFiles(t, h, "user1", "ghost", "", map[string]string{"one.txt": "content"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDocumentListDedup(t *testing.T) {
	h, store := newTestHandler(t)

	rr := doJSON(t, h, http.MethodPost, "/api/collections", "user1", map[string]any{"name": "docs"})
	require.Equal(t, http.StatusCreated, rr.Code)

	// Five chunks across two files; listing collapses to one row per file
	// with the earliest chunk as representative.
	rows := []models.ChunkInsert{
		{Content: "a0", Metadata: map[string]any{"file_id": "fa"}},
		{Content: "a1", Metadata: map[string]any{"file_id": "fa"}},
		{Content: "b0", Metadata: map[string]any{"file_id": "fb"}},
		{Content: "a2", Metadata: map[string]any{"file_id": "fa"}},
		{Content: "b1", Metadata: map[string]any{"file_id": "fb"}},
	}
	for i := range rows {
		rows[i].Embedding = make([]float32, testEmbedDim)
	}
	_, err := store.InsertChunks(context.Background(), "docs", rows)
	require.NoError(t, err)

	rr = doJSON(t, h, http.MethodGet, "/api/collections/docs/documents", "user1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	listed := decodeBody[[]models.DocumentView](t, rr)
	require.Len(t, listed, 2)
	assert.Equal(t, "a0", listed[0].Content)
	assert.Equal(t, "b0", listed[1].Content)

	// Pagination applies after dedup.
	rr = doJSON(t, h, http.MethodGet, "/api/collections/docs/documents?limit=1&offset=1", "user1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	listed = decodeBody[[]models.DocumentView](t, rr)
	require.Len(t, listed, 1)
	assert.Equal(t, "b0", listed[0].Content)
}

func TestDocumentListSkipsChunksWithoutFileID(t *testing.T) {
	h, store := newTestHandler(t)

	rr := doJSON(t, h, http.MethodPost, "/api/collections", "user1", map[string]any{"name": "docs"})
	require.Equal(t, http.StatusCreated, rr.Code)

	// Chunks with no file_id are not documents and never show up in the
	// per-file view.
	_, err := store.InsertChunks(context.Background(), "docs", []models.ChunkInsert{
		{Content: "orphan", Embedding: make([]float32, testEmbedDim), Metadata: map[string]any{}},
		{Content: "filed", Embedding: make([]float32, testEmbedDim), Metadata: map[string]any{"file_id": "f1"}},
	})
	require.NoError(t, err)

	rr = doJSON(t, h, http.MethodGet, "/api/collections/docs/documents", "user1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	listed := decodeBody[[]models.DocumentView](t, rr)
	require.Len(t, listed, 1)
	assert.Equal(t, "filed", listed[0].Content)
}

func TestDocumentListMissingCollectionIsEmpty(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := doJSON(t, h, http.MethodGet, "/api/collections/nowhere/documents", "user1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeBody[[]models.DocumentView](t, rr))
}

func TestDocumentDeleteByFile(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := doJSON(t, h, http.MethodPost, "/api/collections", "user1", map[string]any{"name": "docs"})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = uploadFiles(t, h, "user1", "docs", "", map[string]string{"doc.txt": "some document text"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, h, http.MethodGet, "/api/collections/docs/documents", "user1", nil)
	listed := decodeBody[[]models.DocumentView](t, rr)
	require.Len(t, listed, 1)
	fileID := listed[0].Metadata["file_id"].(string)

	rr = doJSON(t, h, http.MethodDelete, "/api/collections/docs/documents/"+fileID, "user1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, decodeBody[map[string]any](t, rr)["success"])

	rr = doJSON(t, h, http.MethodGet, "/api/collections/docs/documents", "user1", nil)
	assert.Empty(t, decodeBody[[]models.DocumentView](t, rr))

	// Deleting a file id with no chunks is still a success.
	rr = doJSON(t, h, http.MethodDelete, "/api/collections/docs/documents/"+fileID, "user1", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, h, http.MethodDelete, "/api/collections/ghost/documents/"+fileID, "user1", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSearch(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := doJSON(t, h, http.MethodPost, "/api/collections", "user1", map[string]any{"name": "docs"})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = uploadFiles(t, h, "user1", "docs", "", map[string]string{
		"a.txt": "alpha bravo charlie",
		"b.txt": "delta echo foxtrot",
		"c.txt": "golf hotel india",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	// The embedder is deterministic, so querying with a chunk's exact text
	// brings that chunk back at distance zero.
	rr = doJSON(t, h, http.MethodPost, "/api/collections/docs/documents/search", "user1",
		map[string]any{"query": "delta echo foxtrot", "limit": 2})
	require.Equal(t, http.StatusOK, rr.Code)
	hits := decodeBody[[]models.SearchHit](t, rr)
	require.Len(t, hits, 2)
	assert.Equal(t, "delta echo foxtrot", hits[0].Content)
	assert.NotEmpty(t, hits[0].ID)
	assert.InDelta(t, 0, hits[0].Score, 1e-6)
	assert.LessOrEqual(t, hits[0].Score, hits[1].Score)

	// The hit id resolves as a chunk.
	rr = doJSON(t, h, http.MethodGet, "/api/chunks/"+hits[0].ID, "user1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "delta echo foxtrot", decodeBody[models.Chunk](t, rr).Content)
}

func TestSearchValidation(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := doJSON(t, h, http.MethodPost, "/api/collections", "user1", map[string]any{"name": "docs"})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doJSON(t, h, http.MethodPost, "/api/collections/docs/documents/search", "user1",
		map[string]any{"query": ""})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, h, http.MethodPost, "/api/collections/ghost/documents/search", "user1",
		map[string]any{"query": "anything"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	// Empty collection searches fine, just returns nothing.
	rr = doJSON(t, h, http.MethodPost, "/api/collections/docs/documents/search", "user1",
		map[string]any{"query": "anything"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeBody[[]models.SearchHit](t, rr))
}

func TestChatQuery(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := doJSON(t, h, http.MethodPost, "/api/collections", "user1", map[string]any{"name": "docs"})
	require.Equal(t, http.StatusCreated, rr.Code)
	created := decodeBody[models.Collection](t, rr)

	rr = uploadFiles(t, h, "user1", "docs", "", map[string]string{"a.txt": "alpha bravo charlie"})
	require.Equal(t, http.StatusOK, rr.Code)

	// The collection may be referenced by name or by uuid; both retrieve
	// the same sources.
	for _, ref := range []string{"docs", created.UUID} {
		rr = doJSON(t, h, http.MethodPost, "/api/chat/query", "user1",
			map[string]any{"collection": ref, "query": "alpha bravo charlie"})
		require.Equal(t, http.StatusOK, rr.Code, "ref %q", ref)
		resp := decodeBody[map[string]any](t, rr)
		assert.Equal(t, "stub answer", resp["answer"], "ref %q", ref)
		assert.NotEmpty(t, resp["sources"], "ref %q", ref)
	}

	rr = doJSON(t, h, http.MethodPost, "/api/chat/query", "user1",
		map[string]any{"collection": "ghost", "query": "anything"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, h, http.MethodPost, "/api/chat/query", "user1",
		map[string]any{"collection": "docs", "query": ""})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetChunkNotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	rr := doJSON(t, h, http.MethodGet, "/api/chunks/not-a-real-id", "user1", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
