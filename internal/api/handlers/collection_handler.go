package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	middleware "github.com/vectra-io/vectra/internal/api/middlewares"
	db "github.com/vectra-io/vectra/internal/core/database"
	"github.com/vectra-io/vectra/internal/services"
)

type CollectionHandler struct {
	svc *services.CollectionService
}

func NewCollectionHandler(svc *services.CollectionService) *CollectionHandler {
	return &CollectionHandler{svc: svc}
}

type collectionCreateRequest struct {
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata"`
}

type collectionUpdateRequest struct {
	Name     *string        `json:"name"`
	Metadata map[string]any `json:"metadata"`
}

func (h *CollectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "user not resolved")
		return
	}

	var req collectionCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "collection name is required")
		return
	}

	col, err := h.svc.Create(r.Context(), userID, req.Name, req.Metadata)
	if err != nil {
		if errors.Is(err, db.ErrConflict) {
			respondError(w, http.StatusConflict, fmt.Sprintf("Collection '%s' already exists.", req.Name))
			return
		}
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to create collection '%s'", req.Name))
		return
	}
	respondJSON(w, http.StatusCreated, col)
}

func (h *CollectionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "user not resolved")
		return
	}

	cols, err := h.svc.List(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list collections")
		return
	}
	respondJSON(w, http.StatusOK, cols)
}

func (h *CollectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "user not resolved")
		return
	}
	idOrName := chi.URLParam(r, "id_or_name")

	col, err := h.svc.Get(r.Context(), userID, idOrName)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, fmt.Sprintf("Collection '%s' not found", idOrName))
			return
		}
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get collection '%s'", idOrName))
		return
	}
	respondJSON(w, http.StatusOK, col)
}

func (h *CollectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "user not resolved")
		return
	}
	idOrName := chi.URLParam(r, "id_or_name")

	var req collectionUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}

	// Resolve the path segment (uuid or name) to the collection id first,
	// so a rename-by-name works and a foreign collection 404s here.
	col, err := h.svc.Get(r.Context(), userID, idOrName)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, fmt.Sprintf("Collection '%s' not found", idOrName))
			return
		}
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get collection '%s'", idOrName))
		return
	}

	updated, err := h.svc.Update(r.Context(), userID, col.UUID, req.Name, req.Metadata)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrNotFound):
			respondError(w, http.StatusNotFound, fmt.Sprintf("Collection '%s' not found", idOrName))
		case errors.Is(err, db.ErrConflict):
			name := idOrName
			if req.Name != nil {
				name = *req.Name
			}
			respondError(w, http.StatusConflict, fmt.Sprintf("Collection with name '%s' already exists", name))
		default:
			respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to update collection '%s'", idOrName))
		}
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// Delete is idempotent at the HTTP boundary: removing a collection that is
// already gone (or was never yours) still reports 204.
func (h *CollectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "user not resolved")
		return
	}
	idOrName := chi.URLParam(r, "id_or_name")

	col, err := h.svc.Get(r.Context(), userID, idOrName)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to delete collection '%s'", idOrName))
		return
	}

	if _, err := h.svc.Delete(r.Context(), userID, col.UUID); err != nil && !errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to delete collection '%s'", idOrName))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
