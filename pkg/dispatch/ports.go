package dispatch

import (
	"context"
	"errors"

	"github.com/cenderhq/cender/pkg/deliverylog"
	"github.com/cenderhq/cender/pkg/message"
)

// ErrNoAttachment is the sentinel AttachmentSource implementations return
// when no attachment has been uploaded for the account owner.
var ErrNoAttachment = errors.New("dispatch: attachment not uploaded")

// Recipient is one resolved member of the dispatch target set.
type Recipient struct {
	ID        int64
	Email     string
	FirstName string
	LastName  string
	Company   string
}

// DeliveryLog is the slice of the delivery log the orchestrator needs:
// the already-delivered key set for idempotency, and appends for outcomes.
type DeliveryLog interface {
	SentKeys(ctx context.Context, ownerID int64) (deliverylog.KeySet, error)
	Append(ctx context.Context, rec deliverylog.Record) error
}

// Directory resolves account owners and their recipients.
type Directory interface {
	// AccountExists reports whether the account owner is known.
	AccountExists(ctx context.Context, ownerID int64) (bool, error)

	// Recipients returns the subset of ids that are linked to the account
	// owner, in no particular order. The orchestrator detects unlinked ids
	// by comparing against the request.
	Recipients(ctx context.Context, ownerID int64, ids []int64) ([]Recipient, error)
}

// Authenticator produces an authenticated transport for the account owner.
// Called exactly once per non-dry-run dispatch, before any send.
type Authenticator interface {
	Authenticate(ctx context.Context, ownerID int64) (Transport, error)
}

// Transport is the mail provider's send operation.
type Transport interface {
	Send(ctx context.Context, env *message.Envelope) error
}

// AttachmentSource supplies the attachment included with every message of a
// run. Implementations return ErrNoAttachment when nothing is uploaded.
type AttachmentSource interface {
	Attachment(ctx context.Context, ownerID int64) (message.Attachment, error)
}
