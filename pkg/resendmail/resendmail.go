// Package resendmail sends dispatch messages through the Resend API. It is
// the fallback transport for accounts without a connected Gmail mailbox:
// mail goes out from the configured service address instead of the account
// owner's own one.
package resendmail

import (
	"context"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v3"

	"github.com/cenderhq/cender/pkg/message"
)

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("resendmail: missing API key")

// Config holds Resend transport configuration.
type Config struct {
	APIKey      string `env:"RESEND_API_KEY"`
	SenderEmail string `env:"RESEND_SENDER_EMAIL"`
	SenderName  string `env:"RESEND_SENDER_NAME"`
}

// Transport sends envelopes via Resend. It uses the envelope's structured
// fields rather than its raw MIME form, since Resend builds the wire
// message itself.
type Transport struct {
	client *resend.Client
	from   string
}

// New creates a Resend transport.
func New(cfg Config) (*Transport, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	from := cfg.SenderEmail
	if cfg.SenderName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.SenderName, cfg.SenderEmail)
	}

	return &Transport{
		client: resend.NewClient(cfg.APIKey),
		from:   from,
	}, nil
}

// Send delivers one envelope.
func (t *Transport) Send(ctx context.Context, env *message.Envelope) error {
	req := &resend.SendEmailRequest{
		From:    t.from,
		To:      []string{env.To},
		Subject: env.Subject,
		Text:    env.Body,
	}

	if env.Attachment.Filename != "" {
		req.Attachments = []*resend.Attachment{
			{
				Filename:    env.Attachment.Filename,
				Content:     env.Attachment.Content,
				ContentType: "application/pdf",
			},
		}
	}

	if _, err := t.client.Emails.SendWithContext(ctx, req); err != nil {
		return fmt.Errorf("resendmail: failed to send email: %w", err)
	}

	return nil
}
