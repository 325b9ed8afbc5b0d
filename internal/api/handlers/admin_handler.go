package handlers

import (
	"net/http"

	"github.com/vectra-io/vectra/internal/core"
	"github.com/vectra-io/vectra/internal/logger"
)

type AdminHandler struct {
	dbclient core.DbClient
}

func NewAdminHandler(dbclient core.DbClient) *AdminHandler {
	return &AdminHandler{dbclient: dbclient}
}

// InitializeDatabase creates required extensions and tables if they don't
// exist. Should only be called once or when schema changes are needed.
func (h *AdminHandler) InitializeDatabase(w http.ResponseWriter, r *http.Request) {
	logger.Info("received request to initialize database")
	if err := h.dbclient.InitializeSchema(r.Context()); err != nil {
		logger.Error("database initialization failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Database initialization failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Database initialization successful."})
}

// Health is the liveness check.
func Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
