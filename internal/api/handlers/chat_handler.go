package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	middleware "github.com/vectra-io/vectra/internal/api/middlewares"
	"github.com/vectra-io/vectra/internal/core"
	db "github.com/vectra-io/vectra/internal/core/database"
	"github.com/vectra-io/vectra/internal/services"
)

const answerSystemPrompt = "You are a helpful assistant. Answer the question using only the provided context. " +
	"If the context does not contain the answer, say you don't know."

type ChatHandler struct {
	docs *services.DocumentService
	cols *services.CollectionService
	llm  core.LLMProvider
}

func NewChatHandler(docs *services.DocumentService, cols *services.CollectionService, llm core.LLMProvider) *ChatHandler {
	return &ChatHandler{docs: docs, cols: cols, llm: llm}
}

type chatRequest struct {
	Collection string `json:"collection"`
	Query      string `json:"query"`
	K          int    `json:"k"`
}

// Query answers a question over a collection: retrieve the top-k chunks,
// then generate an answer grounded in them.
func (h *ChatHandler) Query(w http.ResponseWriter, r *http.Request) {
	if h.llm == nil {
		respondError(w, http.StatusServiceUnavailable, "chat is not configured")
		return
	}

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "user not resolved")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Collection == "" || req.Query == "" {
		respondError(w, http.StatusBadRequest, "collection and query are required")
		return
	}
	if req.K <= 0 {
		req.K = 5
	}

	// The collection reference may be a uuid; the chunk store resolves by
	// name, so search with the resolved name.
	col, err := h.cols.Get(r.Context(), userID, req.Collection)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Collection not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Error checking collection")
		return
	}

	hits, err := h.docs.Search(r.Context(), col.Name, req.Query, req.K)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Search failed")
		return
	}

	var b strings.Builder
	for i, hit := range hits {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, hit.Content)
	}
	prompt := fmt.Sprintf("Context:\n%s\nQuestion: %s", b.String(), req.Query)

	answer, err := h.llm.Generate(r.Context(), answerSystemPrompt, prompt)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate answer")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"answer":  answer,
		"sources": hits,
	})
}
