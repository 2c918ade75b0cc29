package gmail

import (
	"context"
	"errors"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/cenderhq/cender/pkg/message"
)

// Transport is an authenticated handle on the Gmail send API, bound to the
// token that was current when Authenticate returned it.
type Transport struct {
	svc *gmailapi.Service
}

// Send delivers the encoded envelope through the Gmail API. The API accepts
// the raw message as a base64url blob, which is exactly what the encoder
// produces.
func (t *Transport) Send(ctx context.Context, env *message.Envelope) error {
	_, err := t.svc.Users.Messages.Send("me", &gmailapi.Message{Raw: env.Raw}).Context(ctx).Do()
	if err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	return nil
}

// Profile returns the authenticated account's email address. Used by the
// connection status probe.
func (t *Transport) Profile(ctx context.Context) (string, error) {
	profile, err := t.svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return profile.EmailAddress, nil
}
