package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cenderhq/cender/pkg/gmail"
)

// handleGmailStatus reports the connection state of the account's mailbox.
// It never fails: problems are reported inside the status payload.
func (h *Handler) handleGmailStatus(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.accounts.CheckConnection(r.Context(), owner))
}

// handleGmailAuthURL returns the consent URL the account owner must visit.
func (h *Handler) handleGmailAuthURL(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	url, err := h.accounts.AuthorizationURL(r.Context(), owner)
	if err != nil {
		if errors.Is(err, gmail.ErrMissingCredentials) {
			writeError(w, http.StatusNotFound, "no OAuth credentials uploaded for this account")
			return
		}
		h.log.ErrorContext(r.Context(), "authorization URL failed",
			slog.Int64("owner_id", owner),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"auth_url": url})
}

type gmailCompleteRequest struct {
	// Code is the authorization code, or the full redirect URL the browser
	// landed on; both are accepted.
	Code string `json:"code"`
}

// handleGmailComplete exchanges the pasted authorization code for a token.
func (h *Handler) handleGmailComplete(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	var req gmailCompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	if _, err := h.accounts.CompleteAuthorization(r.Context(), owner, req.Code); err != nil {
		switch {
		case errors.Is(err, gmail.ErrMissingAuthorizationCode), errors.Is(err, gmail.ErrMalformedInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, gmail.ErrMissingCredentials):
			writeError(w, http.StatusNotFound, "no OAuth credentials uploaded for this account")
		case errors.Is(err, gmail.ErrExchangeFailed):
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			h.log.ErrorContext(r.Context(), "authorization completion failed",
				slog.Int64("owner_id", owner),
				slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "connected"})
}

// handleGmailDisconnect removes the stored token. Idempotent.
func (h *Handler) handleGmailDisconnect(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	if err := h.accounts.Disconnect(r.Context(), owner); err != nil {
		h.log.ErrorContext(r.Context(), "disconnect failed",
			slog.Int64("owner_id", owner),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}
