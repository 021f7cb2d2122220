package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/expenselens/expenselens/internal/receipt"
	"github.com/expenselens/expenselens/internal/report"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// handleListReceipts returns all records, date descending.
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List(r.Context())
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	// Always an array, never null
	if records == nil {
		records = []*receipt.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// handleCreateReceipt persists a confirmed record and returns its new ID.
func (s *Server) handleCreateReceipt(w http.ResponseWriter, r *http.Request) {
	var record receipt.Record
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id, err := s.store.Create(r.Context(), &record)
	if err != nil {
		slog.Error("Error creating receipt", "merchant", record.Merchant, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// handleDeleteReceipt removes a record. Deletion is idempotent: an unknown
// ID still reports success.
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Receipt ID required")
		return
	}

	if err := s.store.Delete(r.Context(), id); err != nil {
		slog.Error("Error deleting receipt", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Error deleting receipt")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleSummary returns the aggregate view over all records.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List(r.Context())
	if err != nil {
		slog.Error("Error listing receipts for summary", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, report.Summarize(records))
}
