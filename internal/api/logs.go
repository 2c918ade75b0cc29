package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cenderhq/cender/pkg/deliverylog"
)

// logRecord is the JSON shape of one delivery log row.
type logRecord struct {
	ID             uuid.UUID `json:"id"`
	RecipientID    *int64    `json:"recipient_id,omitempty"`
	RecipientEmail string    `json:"recipient_email"`
	Subject        string    `json:"subject"`
	Status         string    `json:"status"`
	SentAt         time.Time `json:"sent_at"`
	ErrorMessage   string    `json:"error_message,omitempty"`
}

// handleLogsList returns delivery log rows, newest first. Supports ?limit=
// and ?status= filters.
func (h *Handler) handleLogsList(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	status, ok := statusParam(w, r)
	if !ok {
		return
	}

	records, err := h.logs.List(r.Context(), owner, limit, status)
	if err != nil {
		h.log.ErrorContext(r.Context(), "log list failed",
			slog.Int64("owner_id", owner),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]logRecord, len(records))
	for i, rec := range records {
		out[i] = logRecord{
			ID:             rec.ID,
			RecipientID:    rec.RecipientID,
			RecipientEmail: rec.RecipientEmail,
			Subject:        rec.Subject,
			Status:         string(rec.Status),
			SentAt:         rec.SentAt,
			ErrorMessage:   rec.ErrorMessage,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": out, "count": len(out)})
}

// handleLogsStats returns per-status totals for the account.
func (h *Handler) handleLogsStats(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	stats, err := h.logs.Stats(r.Context(), owner)
	if err != nil {
		h.log.ErrorContext(r.Context(), "log stats failed",
			slog.Int64("owner_id", owner),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleLogsPurge bulk-deletes log rows. At least one filter is required:
// ?all=true, ?recipient_id=, ?status=, or ?before= (RFC 3339). Purging a
// "sent" row re-enables delivery to that recipient.
func (h *Handler) handleLogsPurge(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	var f deliverylog.Filter
	q := r.URL.Query()

	if v := q.Get("recipient_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid recipient_id")
			return
		}
		f.RecipientID = &id
	}
	status, ok := statusParam(w, r)
	if !ok {
		return
	}
	f.Status = status
	if v := q.Get("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid before timestamp, want RFC 3339")
			return
		}
		f.Before = &t
	}
	f.All = q.Get("all") == "true"

	deleted, err := h.logs.Purge(r.Context(), owner, f)
	if err != nil {
		if errors.Is(err, deliverylog.ErrNoFilter) {
			writeError(w, http.StatusBadRequest, "at least one filter is required; pass all=true to purge everything")
			return
		}
		h.log.ErrorContext(r.Context(), "log purge failed",
			slog.Int64("owner_id", owner),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// handleLogDelete removes a single log row by id.
func (h *Handler) handleLogDelete(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	logID, err := uuid.Parse(chi.URLParam(r, "logID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid log id")
		return
	}

	if err := h.logs.Delete(r.Context(), owner, logID); err != nil {
		if errors.Is(err, deliverylog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "log record not found")
			return
		}
		h.log.ErrorContext(r.Context(), "log delete failed",
			slog.Int64("owner_id", owner),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// statusParam parses the optional ?status= query value.
func statusParam(w http.ResponseWriter, r *http.Request) (*deliverylog.Status, bool) {
	v := r.URL.Query().Get("status")
	if v == "" {
		return nil, true
	}
	status := deliverylog.Status(v)
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status, want sent, failed or skipped")
		return nil, false
	}
	return &status, true
}
