package api

import (
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

// uploads larger than this are rejected outright.
const maxUploadBytes = 10 << 20

// handleUploadCredentials stores the OAuth client secret JSON for the
// account. The file replaces any previous one.
func (h *Handler) handleUploadCredentials(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	file, header, err := formFile(w, r)
	if err != nil {
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".json") {
		writeError(w, http.StatusBadRequest, "credentials must be a .json file")
		return
	}

	if err := h.files.SaveClientSecret(r.Context(), owner, file); err != nil {
		h.log.ErrorContext(r.Context(), "credentials upload failed",
			slog.Int64("owner_id", owner),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "uploaded"})
}

// handleUploadResume stores the resume PDF for the account, remembering its
// original filename for the outgoing attachment.
func (h *Handler) handleUploadResume(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	file, header, err := formFile(w, r)
	if err != nil {
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "resume must be a .pdf file")
		return
	}

	if err := h.files.SaveResume(r.Context(), owner, filepath.Base(header.Filename), file); err != nil {
		h.log.ErrorContext(r.Context(), "resume upload failed",
			slog.Int64("owner_id", owner),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "uploaded", "filename": filepath.Base(header.Filename)})
}

// handleFilesStatus reports which files the account has uploaded.
func (h *Handler) handleFilesStatus(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	status, err := h.files.FilesStatus(r.Context(), owner)
	if err != nil {
		h.log.ErrorContext(r.Context(), "files status failed",
			slog.Int64("owner_id", owner),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// formFile extracts the "file" part of a multipart upload, writing the error
// response itself on failure.
func formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return nil, nil, err
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return nil, nil, err
	}
	return file, header, nil
}
