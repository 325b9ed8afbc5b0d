package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	middleware "github.com/vectra-io/vectra/internal/api/middlewares"
	db "github.com/vectra-io/vectra/internal/core/database"
	"github.com/vectra-io/vectra/internal/models"
	"github.com/vectra-io/vectra/internal/services"
)

const maxUploadBytes = 52 << 20

type DocumentHandler struct {
	docs   *services.DocumentService
	ingest *services.IngestService
	cols   *services.CollectionService
}

func NewDocumentHandler(docs *services.DocumentService, ingest *services.IngestService, cols *services.CollectionService) *DocumentHandler {
	return &DocumentHandler{docs: docs, ingest: ingest, cols: cols}
}

// Upload processes and indexes new document files with optional per-file
// metadata (a JSON array in the "metadatas_json" form field, one entry per
// file).
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "user not resolved")
		return
	}
	col, err := h.cols.Get(r.Context(), userID, chi.URLParam(r, "id_or_name"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Collection not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Error checking collection")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		respondError(w, http.StatusBadRequest, "no files provided")
		return
	}

	metadatas := make([]map[string]any, len(fileHeaders))
	if raw := r.FormValue("metadatas_json"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadatas); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid JSON format for metadatas.")
			return
		}
		if len(metadatas) != len(fileHeaders) {
			respondError(w, http.StatusBadRequest, fmt.Sprintf(
				"Number of metadata objects (%d) does not match number of files (%d).",
				len(metadatas), len(fileHeaders)))
			return
		}
	}

	files := make([]services.UploadedFile, 0, len(fileHeaders))
	for i, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("cannot read file %q", fh.Filename))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("cannot read file %q", fh.Filename))
			return
		}
		contentType := fh.Header.Get("Content-Type")
		files = append(files, services.UploadedFile{
			Name:        fh.Filename,
			ContentType: contentType,
			Data:        data,
			Metadata:    metadatas[i],
		})
	}

	res, err := h.ingest.IngestFiles(r.Context(), userID, col.Name, files)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to add documents to vector store")
		return
	}
	if len(res.AddedChunkIDs) == 0 {
		detail := "Failed to process any documents from the provided files."
		if len(res.FailedFiles) > 0 {
			detail += " Files that failed processing: " + strings.Join(res.FailedFiles, ", ") + "."
		}
		respondError(w, http.StatusBadRequest, detail)
		return
	}

	resp := map[string]any{
		"success": true,
		"message": fmt.Sprintf("%d document chunk(s) from %d file(s) added successfully.",
			len(res.AddedChunkIDs), res.ProcessedFiles),
		"added_chunk_ids": res.AddedChunkIDs,
	}
	if len(res.FailedFiles) > 0 {
		resp["warnings"] = "Processing failed for files: " + strings.Join(res.FailedFiles, ", ")
	}
	respondJSON(w, http.StatusOK, resp)
}

// List returns the deduplicated per-file document view of a collection.
// A collection the caller does not own yields an empty list, same as a
// missing one.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "user not resolved")
		return
	}
	limit := queryInt(r, "limit", 10, 1, 100)
	offset := queryInt(r, "offset", 0, 0, 1<<30)

	col, err := h.cols.Get(r.Context(), userID, chi.URLParam(r, "id_or_name"))
	if err != nil {
		// Missing and foreign collections read as empty; only backend
		// failures surface as errors.
		if errors.Is(err, db.ErrNotFound) {
			respondJSON(w, http.StatusOK, []models.DocumentView{})
			return
		}
		respondError(w, http.StatusInternalServerError, "Error checking collection")
		return
	}

	docs, err := h.docs.List(r.Context(), col.Name, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}
	respondJSON(w, http.StatusOK, docs)
}

// DeleteByFile removes every chunk of the given file id from a collection.
func (h *DocumentHandler) DeleteByFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "user not resolved")
		return
	}
	fileID := chi.URLParam(r, "file_id")

	col, err := h.cols.Get(r.Context(), userID, chi.URLParam(r, "id_or_name"))
	if err != nil {
		respondError(w, http.StatusNotFound, "Collection not found")
		return
	}

	success, err := h.docs.DeleteByFile(r.Context(), col.Name, []string{fileID})
	if err != nil || !success {
		respondError(w, http.StatusInternalServerError, "Failed to delete document from vector store")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// Search performs semantic similarity search within a collection.
func (h *DocumentHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "user not resolved")
		return
	}
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Query == "" {
		respondError(w, http.StatusBadRequest, "Search query cannot be empty")
		return
	}

	col, err := h.cols.Get(r.Context(), userID, chi.URLParam(r, "id_or_name"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Collection not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Error checking collection")
		return
	}

	hits, err := h.docs.Search(r.Context(), col.Name, req.Query, req.Limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Search failed")
		return
	}
	respondJSON(w, http.StatusOK, hits)
}

// GetChunk fetches a single chunk by id; not-found (including malformed
// ids) is 404.
func (h *DocumentHandler) GetChunk(w http.ResponseWriter, r *http.Request) {
	chunkID := chi.URLParam(r, "chunk_id")

	chunk, err := h.docs.GetChunk(r.Context(), chunkID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get chunk")
		return
	}
	if chunk == nil {
		respondError(w, http.StatusNotFound, "Chunk not found")
		return
	}
	respondJSON(w, http.StatusOK, chunk)
}

func queryInt(r *http.Request, key string, def, min, max int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min {
		return def
	}
	if n > max {
		return max
	}
	return n
}
