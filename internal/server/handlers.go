package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spindle/internal/orchestrator"
	"github.com/desertthunder/spindle/internal/repositories"
	"github.com/desertthunder/spindle/internal/shared"
)

// SyncHandler exposes the sync action envelope over HTTP. The request body
// is an [orchestrator.SyncRequest]; the response is always an
// [orchestrator.SyncResponse], including for failures.
type SyncHandler struct {
	orc    *orchestrator.Orchestrator
	logger *log.Logger
}

// NewSyncHandler creates a SyncHandler over the given orchestrator.
func NewSyncHandler(orc *orchestrator.Orchestrator, logger *log.Logger) *SyncHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SyncHandler{orc: orc, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *SyncHandler) Routes() []string {
	return []string{"POST /api/sync"}
}

// ServeHTTP decodes the sync request, dispatches it, and writes the envelope.
func (h *SyncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, orchestrator.SyncResponse{
			Message: fmt.Sprintf("%v: malformed request body", shared.ErrInvalidRequest),
		})
		return
	}

	resp := h.orc.Handle(r.Context(), req)

	status := http.StatusOK
	if !resp.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

// HistoryHandler serves recent sync run history.
type HistoryHandler struct {
	db *sql.DB
}

// NewHistoryHandler creates a HistoryHandler over the catalog database.
func NewHistoryHandler(db *sql.DB) *HistoryHandler {
	return &HistoryHandler{db: db}
}

// Routes returns the HTTP routes this handler serves.
func (h *HistoryHandler) Routes() []string {
	return []string{"GET /api/history"}
}

// ServeHTTP lists recent runs, newest first. The limit query parameter caps
// the result; it defaults to 20.
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	runs, err := repositories.NewRunRepository(h.db).Recent(r.Context(), limit)
	if err != nil {
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
