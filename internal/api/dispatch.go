package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cenderhq/cender/pkg/dispatch"
	"github.com/cenderhq/cender/pkg/redis"
)

// DefaultSubject is used when a dispatch request carries no subject.
const DefaultSubject = "Candidature"

// DefaultTemplate is the body used when a dispatch request carries no
// template.
const DefaultTemplate = "Bonjour {salutation},\n\n" +
	"Je me permets de vous contacter concernant une opportunité au sein de {company}. " +
	"Vous trouverez ci-joint mon CV.\n\n" +
	"Cordialement,\n" +
	"Votre Nom"

type dispatchRequest struct {
	RecipientIDs []int64 `json:"recipient_ids"`
	Subject      string  `json:"subject"`
	Template     string  `json:"template"`
	DryRun       bool    `json:"dry_run"`
}

// wireEvent is one NDJSON line of the dispatch stream.
type wireEvent struct {
	RecipientID int64  `json:"recipient_id,omitempty"`
	Email       string `json:"email,omitempty"`
	Status      string `json:"status,omitempty"`
	Message     string `json:"message,omitempty"`
	Preview     string `json:"preview,omitempty"`
	Error       string `json:"error,omitempty"`
}

// handleDispatch runs a dispatch and streams one JSON object per recipient
// outcome. The response is chunked NDJSON; a line with an "error" field is
// terminal. The HTTP status is always 200 once streaming starts, so errors
// after the first byte are carried in-band.
func (h *Handler) handleDispatch(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.RecipientIDs) == 0 {
		writeError(w, http.StatusBadRequest, "recipient_ids is required")
		return
	}
	if req.Subject == "" {
		req.Subject = DefaultSubject
	}
	if req.Template == "" {
		req.Template = DefaultTemplate
	}

	ctx := r.Context()

	release, err := h.locks.Acquire(ctx, owner)
	if err != nil {
		if errors.Is(err, redis.ErrRunActive) {
			writeError(w, http.StatusConflict, "a dispatch run is already active for this account")
			return
		}
		h.log.ErrorContext(ctx, "run lock acquire failed",
			slog.Int64("owner_id", owner),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer func() {
		// Release uses the request context; if the client vanished, the
		// lock's TTL is the backstop.
		if err := release(ctx); err != nil {
			h.log.ErrorContext(ctx, "run lock release failed",
				slog.Int64("owner_id", owner),
				slog.String("error", err.Error()))
		}
	}()

	w.Header().Set("Content-Type", "application/x-ndjson; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)

	for ev := range h.dispatcher.Dispatch(ctx, dispatch.Request{
		AccountOwnerID: owner,
		RecipientIDs:   req.RecipientIDs,
		Subject:        req.Subject,
		Template:       req.Template,
		DryRun:         req.DryRun,
	}) {
		if err := enc.Encode(toWire(ev)); err != nil {
			// Client gone; stop consuming, which stops the run.
			return
		}
		_ = rc.Flush()
	}
}

func toWire(ev dispatch.Event) wireEvent {
	switch e := ev.(type) {
	case dispatch.Sent:
		return wireEvent{RecipientID: e.RecipientID, Email: e.Email, Status: "sent"}
	case dispatch.Failed:
		return wireEvent{RecipientID: e.RecipientID, Email: e.Email, Status: "failed", Message: e.Reason}
	case dispatch.Skipped:
		return wireEvent{RecipientID: e.RecipientID, Email: e.Email, Status: "skipped", Message: e.Reason}
	case dispatch.Preview:
		return wireEvent{RecipientID: e.RecipientID, Email: e.Email, Status: "dry_run", Preview: e.Body}
	case dispatch.FatalError:
		return wireEvent{Error: e.Message}
	default:
		return wireEvent{Error: "unknown event"}
	}
}
