// Package api exposes the service over HTTP: the streaming dispatch
// endpoint, Gmail connection management, credential and resume uploads, and
// delivery log queries.
package api

import (
	"context"
	"io"
	"iter"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/cenderhq/cender/pkg/deliverylog"
	"github.com/cenderhq/cender/pkg/dispatch"
	"github.com/cenderhq/cender/pkg/gmail"
	"github.com/cenderhq/cender/pkg/logger"
)

// Dispatcher runs dispatch requests and streams their events.
type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) iter.Seq[dispatch.Event]
}

// RunLocker serializes runs per account owner.
type RunLocker interface {
	Acquire(ctx context.Context, ownerID int64) (release func(context.Context) error, err error)
}

// GmailAccounts manages the Gmail OAuth connection of an account owner.
type GmailAccounts interface {
	CheckConnection(ctx context.Context, ownerID int64) gmail.Status
	AuthorizationURL(ctx context.Context, ownerID int64) (string, error)
	CompleteAuthorization(ctx context.Context, ownerID int64, userInput string) (*oauth2.Token, error)
	Disconnect(ctx context.Context, ownerID int64) error
}

// CredentialFiles stores uploaded client secrets and resumes.
type CredentialFiles interface {
	SaveClientSecret(ctx context.Context, ownerID int64, r io.Reader) error
	SaveResume(ctx context.Context, ownerID int64, filename string, r io.Reader) error
	FilesStatus(ctx context.Context, ownerID int64) (gmail.FilesStatus, error)
}

// DeliveryLogs answers delivery log queries.
type DeliveryLogs interface {
	List(ctx context.Context, ownerID int64, limit int, status *deliverylog.Status) ([]deliverylog.Record, error)
	Stats(ctx context.Context, ownerID int64) (deliverylog.Stats, error)
	Purge(ctx context.Context, ownerID int64, f deliverylog.Filter) (int64, error)
	Delete(ctx context.Context, ownerID int64, id uuid.UUID) error
}

// Handler carries the dependencies of all HTTP endpoints.
type Handler struct {
	dispatcher Dispatcher
	locks      RunLocker
	accounts   GmailAccounts
	files      CredentialFiles
	logs       DeliveryLogs
	log        *slog.Logger

	readiness map[string]func(context.Context) error
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler's logger.
func WithLogger(log *slog.Logger) Option {
	return func(h *Handler) {
		h.log = log
	}
}

// WithReadinessCheck registers a named probe for the readiness endpoint.
func WithReadinessCheck(name string, probe func(context.Context) error) Option {
	return func(h *Handler) {
		h.readiness[name] = probe
	}
}

// New creates a Handler.
func New(dispatcher Dispatcher, locks RunLocker, accounts GmailAccounts, files CredentialFiles, logs DeliveryLogs, opts ...Option) *Handler {
	h := &Handler{
		dispatcher: dispatcher,
		locks:      locks,
		accounts:   accounts,
		files:      files,
		logs:       logs,
		log:        logger.NewNope(),
		readiness:  make(map[string]func(context.Context) error),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router builds the HTTP routing table.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestID())
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Get("/readyz", h.handleReady)

	r.Route("/accounts/{ownerID}", func(r chi.Router) {
		r.Post("/dispatch", h.handleDispatch)

		r.Route("/gmail", func(r chi.Router) {
			r.Get("/status", h.handleGmailStatus)
			r.Get("/auth-url", h.handleGmailAuthURL)
			r.Post("/complete", h.handleGmailComplete)
			r.Delete("/", h.handleGmailDisconnect)
		})

		r.Route("/files", func(r chi.Router) {
			r.Post("/credentials", h.handleUploadCredentials)
			r.Post("/resume", h.handleUploadResume)
			r.Get("/status", h.handleFilesStatus)
		})

		r.Route("/logs", func(r chi.Router) {
			r.Get("/", h.handleLogsList)
			r.Get("/stats", h.handleLogsStats)
			r.Delete("/", h.handleLogsPurge)
			r.Delete("/{logID}", h.handleLogDelete)
		})
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	failures := map[string]string{}
	for name, probe := range h.readiness {
		if err := probe(r.Context()); err != nil {
			failures[name] = err.Error()
		}
	}
	if len(failures) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":   "unavailable",
			"failures": failures,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
