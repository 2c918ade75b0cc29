package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cenderhq/cender/pkg/dispatch"
	"github.com/cenderhq/cender/pkg/gmail"
	"github.com/cenderhq/cender/pkg/message"
	"github.com/cenderhq/cender/pkg/resendmail"
)

// authenticator adapts the Gmail manager to the dispatch port. When the
// account has no usable Gmail connection and a Resend API key is
// configured, it falls back to sending from the service address.
type authenticator struct {
	gmail    *gmail.Manager
	fallback dispatch.Transport
	log      *slog.Logger
}

func newAuthenticator(manager *gmail.Manager, resendCfg resendmail.Config, log *slog.Logger) *authenticator {
	a := &authenticator{gmail: manager, log: log}
	if fallback, err := resendmail.New(resendCfg); err == nil {
		a.fallback = fallback
	}
	return a
}

func (a *authenticator) Authenticate(ctx context.Context, ownerID int64) (dispatch.Transport, error) {
	transport, err := a.gmail.Authenticate(ctx, ownerID)
	if err == nil {
		return transport, nil
	}

	if a.fallback != nil && isNoGmailConnection(err) {
		a.log.InfoContext(ctx, "no gmail connection, using resend fallback",
			slog.Int64("owner_id", ownerID))
		return a.fallback, nil
	}

	return nil, err
}

func isNoGmailConnection(err error) bool {
	return errors.Is(err, gmail.ErrMissingCredentials) ||
		errors.Is(err, gmail.ErrNoToken) ||
		errors.Is(err, gmail.ErrUnrecoverable)
}

// resumeSource adapts the credential store to the dispatch attachment port.
type resumeSource struct {
	credentials *gmail.CredentialStore
}

func (s *resumeSource) Attachment(ctx context.Context, ownerID int64) (message.Attachment, error) {
	att, err := s.credentials.Resume(ctx, ownerID)
	if errors.Is(err, gmail.ErrNoResume) {
		return message.Attachment{}, dispatch.ErrNoAttachment
	}
	return att, err
}
