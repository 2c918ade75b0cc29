package gmail

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/cenderhq/cender/pkg/logger"
)

// Option configures a Manager.
type Option func(*Manager)

// WithHTTPClient sets a custom HTTP client for the OAuth exchange, token
// refresh, and Gmail API calls. Used for testing and custom transports.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) {
		m.httpClient = c
	}
}

// WithLogger sets the manager's logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// Manager owns the OAuth credential lifecycle for account owners.
type Manager struct {
	store      *CredentialStore
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

// NewManager creates a credential manager over the given store.
func NewManager(store *CredentialStore, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		cfg:   cfg,
		log:   logger.NewNope(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// oauthConfig parses the owner's client secret blob into an OAuth config
// scoped to sending mail.
func (m *Manager) oauthConfig(secret []byte) (*oauth2.Config, error) {
	cfg, err := google.ConfigFromJSON(secret, gmailapi.GmailSendScope)
	if err != nil {
		return nil, errors.Join(ErrInvalidCredentials, err)
	}
	cfg.RedirectURL = m.cfg.RedirectURL
	return cfg, nil
}

// AuthorizationURL builds the consent URL for the manual authorization flow.
// Offline access and a forced consent screen make Google issue a refresh
// token even when the account owner authorized before.
func (m *Manager) AuthorizationURL(ctx context.Context, ownerID int64) (string, error) {
	secret, err := m.store.ClientSecret(ctx, ownerID)
	if err != nil {
		return "", err
	}
	cfg, err := m.oauthConfig(secret)
	if err != nil {
		return "", err
	}

	url := cfg.AuthCodeURL("", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	m.log.InfoContext(ctx, "generated authorization url", slog.Int64("owner_id", ownerID))
	return url, nil
}

// CompleteAuthorization exchanges the pasted authorization input for a token
// pair and persists it. The input is either the raw authorization code or
// the full redirect URL the browser landed on.
func (m *Manager) CompleteAuthorization(ctx context.Context, ownerID int64, userInput string) (*oauth2.Token, error) {
	secret, err := m.store.ClientSecret(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	cfg, err := m.oauthConfig(secret)
	if err != nil {
		return nil, err
	}

	code, err := extractCode(userInput)
	if err != nil {
		return nil, err
	}

	tok, err := cfg.Exchange(m.oauthContext(ctx), code)
	if err != nil {
		return nil, errors.Join(ErrExchangeFailed, err)
	}
	if err := m.store.SaveToken(ctx, ownerID, tok); err != nil {
		return nil, err
	}

	m.log.InfoContext(ctx, "authorization completed", slog.Int64("owner_id", ownerID))
	return tok, nil
}

// Authenticate loads the persisted credential and returns a send transport.
// An expired token is refreshed and persisted before the transport is built;
// refresh failure propagates without retry so the caller can abort the run
// up front instead of degrading mid-iteration.
func (m *Manager) Authenticate(ctx context.Context, ownerID int64) (*Transport, error) {
	secret, err := m.store.ClientSecret(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	cfg, err := m.oauthConfig(secret)
	if err != nil {
		return nil, err
	}

	tok, err := m.store.Token(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if !tok.Valid() {
		if tok.RefreshToken == "" {
			return nil, ErrUnrecoverable
		}
		fresh, err := cfg.TokenSource(m.oauthContext(ctx), tok).Token()
		if err != nil {
			return nil, errors.Join(ErrRefreshFailed, err)
		}
		if err := m.store.SaveToken(ctx, ownerID, fresh); err != nil {
			return nil, err
		}
		m.log.InfoContext(ctx, "access token refreshed", slog.Int64("owner_id", ownerID))
		tok = fresh
	}

	// The transport gets a static token source: every refresh must go through
	// Authenticate so the persisted token stays authoritative.
	client := oauth2.NewClient(m.oauthContext(ctx), oauth2.StaticTokenSource(tok))
	svc, err := gmailapi.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, err
	}
	return &Transport{svc: svc}, nil
}

// Status is the structured connection status used for operational
// visibility. It never carries an error value; failures land in Error as
// text so a status probe can never interrupt a dispatch run.
type Status struct {
	Connected      bool   `json:"connected"`
	HasCredentials bool   `json:"has_credentials"`
	HasToken       bool   `json:"has_token"`
	Email          string `json:"email,omitempty"`
	Error          string `json:"error,omitempty"`
}

// CheckConnection probes the Gmail profile endpoint and reports a structured
// status. It never returns an error.
func (m *Manager) CheckConnection(ctx context.Context, ownerID int64) Status {
	var st Status

	if _, err := m.store.ClientSecret(ctx, ownerID); err != nil {
		st.Error = err.Error()
		return st
	}
	st.HasCredentials = true

	if _, err := m.store.Token(ctx, ownerID); err != nil {
		st.Error = err.Error()
		return st
	}
	st.HasToken = true

	transport, err := m.Authenticate(ctx, ownerID)
	if err != nil {
		st.Error = err.Error()
		return st
	}

	email, err := transport.Profile(ctx)
	if err != nil {
		st.Error = err.Error()
		return st
	}

	st.Connected = true
	st.Email = email
	return st
}

// Disconnect deletes the persisted token. Idempotent.
func (m *Manager) Disconnect(ctx context.Context, ownerID int64) error {
	if err := m.store.DeleteToken(ctx, ownerID); err != nil {
		return err
	}
	m.log.InfoContext(ctx, "gmail disconnected", slog.Int64("owner_id", ownerID))
	return nil
}

// oauthContext injects the custom HTTP client into the context used by the
// oauth2 package for exchange and refresh calls.
func (m *Manager) oauthContext(ctx context.Context) context.Context {
	if m.httpClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	}
	return ctx
}

// extractCode pulls the authorization code out of the pasted input. A bare
// code passes through; anything URL-shaped must carry a code query parameter.
func extractCode(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ErrMissingAuthorizationCode
	}
	if !strings.Contains(input, "://") {
		return input, nil
	}

	u, err := url.Parse(input)
	if err != nil {
		return "", errors.Join(ErrMalformedInput, err)
	}
	code := u.Query().Get("code")
	if code == "" {
		return "", ErrMissingAuthorizationCode
	}
	return code, nil
}
