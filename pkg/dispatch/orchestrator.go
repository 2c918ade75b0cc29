package dispatch

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cenderhq/cender/pkg/deliverylog"
	"github.com/cenderhq/cender/pkg/logger"
	"github.com/cenderhq/cender/pkg/message"
)

// defaultDryRunDelay paces dry-run previews so the caller-visible progress
// rate approximates a real send.
const defaultDryRunDelay = 100 * time.Millisecond

// Request describes one dispatch run. It is ephemeral: constructed per
// invocation, never persisted.
type Request struct {
	AccountOwnerID int64
	RecipientIDs   []int64
	Subject        string
	Template       string
	DryRun         bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator's logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.log = log
	}
}

// WithDryRunDelay overrides the pacing delay between dry-run previews.
// Tests set it to zero.
func WithDryRunDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.dryRunDelay = d
	}
}

// Orchestrator runs dispatch requests. Safe for concurrent use across
// different account owners; at most one active run per account owner is
// assumed and enforced by the calling layer.
type Orchestrator struct {
	dlog        DeliveryLog
	dir         Directory
	auth        Authenticator
	attachments AttachmentSource
	builder     *message.Builder
	log         *slog.Logger
	dryRunDelay time.Duration
}

// New creates an Orchestrator with its collaborators.
func New(dlog DeliveryLog, dir Directory, auth Authenticator, attachments AttachmentSource, builder *message.Builder, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		dlog:        dlog,
		dir:         dir,
		auth:        auth,
		attachments: attachments,
		builder:     builder,
		log:         logger.NewNope(),
		dryRunDelay: defaultDryRunDelay,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Dispatch executes one run and streams its events. The returned sequence is
// lazy: nothing happens until the caller starts ranging, and the run pauses
// between events until the caller consumes the current one. Breaking out of
// the range, or cancelling ctx, stops the run between recipients; an
// in-flight send always completes and is logged first.
func (o *Orchestrator) Dispatch(ctx context.Context, req Request) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		run, fatal := o.prepare(ctx, req)
		if fatal != nil {
			o.log.ErrorContext(ctx, "dispatch aborted",
				slog.Int64("owner_id", req.AccountOwnerID),
				slog.String("reason", fatal.Message))
			yield(*fatal)
			return
		}

		for _, r := range run.recipients {
			select {
			case <-ctx.Done():
				o.log.InfoContext(ctx, "dispatch cancelled",
					slog.Int64("owner_id", req.AccountOwnerID))
				return
			default:
			}

			ev := o.process(ctx, req, run, r)
			if !yield(ev) {
				return
			}
			if _, isFatal := ev.(FatalError); isFatal {
				return
			}
		}

		o.log.InfoContext(ctx, "dispatch completed",
			slog.Int64("owner_id", req.AccountOwnerID),
			slog.Int("recipients", len(run.recipients)))
	}
}

// runState carries everything the iteration phase needs, assembled by the
// validating and authenticating phases.
type runState struct {
	recipients []Recipient
	sentKeys   deliverylog.KeySet
	attachment message.Attachment
	transport  Transport
}

// prepare walks the Validating and Authenticating states. Any error here is
// terminal: the run aborts with a single FatalError and zero side effects.
func (o *Orchestrator) prepare(ctx context.Context, req Request) (*runState, *FatalError) {
	// Validating.
	if err := message.ValidateTemplate(req.Template); err != nil {
		return nil, &FatalError{Message: err.Error()}
	}

	exists, err := o.dir.AccountExists(ctx, req.AccountOwnerID)
	if err != nil {
		return nil, &FatalError{Message: fmt.Sprintf("account lookup failed: %v", err)}
	}
	if !exists {
		return nil, &FatalError{Message: fmt.Sprintf("account owner %d not found", req.AccountOwnerID)}
	}

	linked, err := o.dir.Recipients(ctx, req.AccountOwnerID, req.RecipientIDs)
	if err != nil {
		return nil, &FatalError{Message: fmt.Sprintf("recipient lookup failed: %v", err)}
	}
	recipients, unlinked := orderRecipients(req.RecipientIDs, linked)
	if len(unlinked) > 0 {
		// One unlinked recipient poisons the whole request: no partial sends.
		return nil, &FatalError{Message: fmt.Sprintf("recipients %s not linked to this account", formatIDs(unlinked))}
	}
	if len(recipients) == 0 {
		return nil, &FatalError{Message: "no valid recipients"}
	}

	run := &runState{recipients: recipients}

	run.attachment, err = o.attachments.Attachment(ctx, req.AccountOwnerID)
	if err != nil {
		// A dry run only surfaces the plaintext preview, so a missing
		// attachment is tolerated there.
		if !(req.DryRun && errors.Is(err, ErrNoAttachment)) {
			return nil, &FatalError{Message: err.Error()}
		}
		run.attachment = message.Attachment{}
	}

	// Authenticating. Skipped entirely on dry runs: no transport is needed.
	if !req.DryRun {
		run.transport, err = o.auth.Authenticate(ctx, req.AccountOwnerID)
		if err != nil {
			return nil, &FatalError{Message: fmt.Sprintf("authentication failed: %v", err)}
		}
	}

	run.sentKeys, err = o.dlog.SentKeys(ctx, req.AccountOwnerID)
	if err != nil {
		return nil, &FatalError{Message: fmt.Sprintf("delivery log lookup failed: %v", err)}
	}

	return run, nil
}

// process handles one recipient and returns its event.
func (o *Orchestrator) process(ctx context.Context, req Request, run *runState, r Recipient) Event {
	if run.sentKeys.Contains(r.ID, r.Email) {
		return Skipped{RecipientID: r.ID, Email: r.Email, Reason: "already sent"}
	}

	env, body, err := o.builder.Build(message.Recipient{
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Company:   r.Company,
	}, req.Template, req.Subject, run.attachment)
	if err != nil {
		// Encoder failures are not recipient-scoped: every recipient shares
		// the same template and attachment, so the first failure would
		// repeat for all of them.
		return FatalError{Message: fmt.Sprintf("message encoding failed: %v", err)}
	}

	if req.DryRun {
		select {
		case <-time.After(o.dryRunDelay):
		case <-ctx.Done():
		}
		return Preview{RecipientID: r.ID, Email: r.Email, Body: body}
	}

	// The loop-top ctx check is the sole cancellation point: once a send
	// starts it must complete and be logged even if the caller goes away,
	// otherwise a delivered mail could lose its SENT record and be re-sent
	// by the next run.
	sendCtx := context.WithoutCancel(ctx)

	if err := run.transport.Send(sendCtx, env); err != nil {
		o.record(sendCtx, req, r, deliverylog.StatusFailed, err.Error())
		o.log.ErrorContext(ctx, "send failed",
			slog.Int64("owner_id", req.AccountOwnerID),
			slog.String("email", r.Email),
			slog.String("error", err.Error()))
		return Failed{RecipientID: r.ID, Email: r.Email, Reason: err.Error()}
	}

	o.record(sendCtx, req, r, deliverylog.StatusSent, "")
	// Protect duplicate addresses later in the same run.
	run.sentKeys.Add(r.ID, r.Email)
	o.log.InfoContext(ctx, "email sent",
		slog.Int64("owner_id", req.AccountOwnerID),
		slog.String("email", r.Email))
	return Sent{RecipientID: r.ID, Email: r.Email}
}

// record appends one delivery outcome. Append failures are logged but do not
// change the recipient's event: the send already happened and its outcome
// must reach the caller.
func (o *Orchestrator) record(ctx context.Context, req Request, r Recipient, status deliverylog.Status, errMsg string) {
	recipientID := r.ID
	if err := o.dlog.Append(ctx, deliverylog.Record{
		AccountOwnerID: req.AccountOwnerID,
		RecipientID:    &recipientID,
		RecipientEmail: r.Email,
		Subject:        req.Subject,
		Status:         status,
		SentAt:         time.Now().UTC(),
		ErrorMessage:   errMsg,
	}); err != nil {
		o.log.ErrorContext(ctx, "delivery log append failed",
			slog.Int64("owner_id", req.AccountOwnerID),
			slog.String("email", r.Email),
			slog.String("error", err.Error()))
	}
}

// orderRecipients reorders resolved recipients into the request's id order
// and collects ids the directory did not return. Duplicate ids in the
// request dispatch once.
func orderRecipients(requested []int64, resolved []Recipient) ([]Recipient, []int64) {
	byID := make(map[int64]Recipient, len(resolved))
	for _, r := range resolved {
		byID[r.ID] = r
	}

	ordered := make([]Recipient, 0, len(requested))
	seen := make(map[int64]struct{}, len(requested))
	var unlinked []int64
	for _, id := range requested {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		r, ok := byID[id]
		if !ok {
			unlinked = append(unlinked, id)
			continue
		}
		ordered = append(ordered, r)
	}
	return ordered, unlinked
}

func formatIDs(ids []int64) string {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
