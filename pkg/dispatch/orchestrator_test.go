package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cenderhq/cender/pkg/deliverylog"
	"github.com/cenderhq/cender/pkg/dispatch"
	"github.com/cenderhq/cender/pkg/gender"
	"github.com/cenderhq/cender/pkg/message"
)

type fakeDeliveryLog struct {
	mu        sync.Mutex
	keys      deliverylog.KeySet
	records   []deliverylog.Record
	keysErr   error
	appendErr error
}

func newFakeDeliveryLog() *fakeDeliveryLog {
	return &fakeDeliveryLog{keys: deliverylog.NewKeySet()}
}

func (f *fakeDeliveryLog) SentKeys(_ context.Context, _ int64) (deliverylog.KeySet, error) {
	if f.keysErr != nil {
		return deliverylog.KeySet{}, f.keysErr
	}
	return f.keys, nil
}

func (f *fakeDeliveryLog) Append(_ context.Context, rec deliverylog.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeDeliveryLog) recorded() []deliverylog.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]deliverylog.Record(nil), f.records...)
}

type fakeDirectory struct {
	exists     bool
	existsErr  error
	recipients []dispatch.Recipient
}

func (f *fakeDirectory) AccountExists(_ context.Context, _ int64) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeDirectory) Recipients(_ context.Context, _ int64, ids []int64) ([]dispatch.Recipient, error) {
	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []dispatch.Recipient
	for _, r := range f.recipients {
		if _, ok := want[r.ID]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeTransport struct {
	mu     sync.Mutex
	sent   []string
	failOn map[string]error
}

func (f *fakeTransport) Send(_ context.Context, env *message.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failOn[env.To]; ok {
		return err
	}
	f.sent = append(f.sent, env.To)
	return nil
}

func (f *fakeTransport) sentTo() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fakeAuthenticator struct {
	transport dispatch.Transport
	err       error
	calls     int
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, _ int64) (dispatch.Transport, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.transport, nil
}

type fakeAttachments struct {
	attachment message.Attachment
	err        error
}

func (f *fakeAttachments) Attachment(_ context.Context, _ int64) (message.Attachment, error) {
	if f.err != nil {
		return message.Attachment{}, f.err
	}
	return f.attachment, nil
}

type harness struct {
	dlog      *fakeDeliveryLog
	dir       *fakeDirectory
	auth      *fakeAuthenticator
	transport *fakeTransport
	att       *fakeAttachments
	orch      *dispatch.Orchestrator
}

func newHarness(t *testing.T, recipients ...dispatch.Recipient) *harness {
	t.Helper()

	detector, err := gender.NewHeuristicDetector()
	require.NoError(t, err)

	h := &harness{
		dlog:      newFakeDeliveryLog(),
		dir:       &fakeDirectory{exists: true, recipients: recipients},
		transport: &fakeTransport{},
		att: &fakeAttachments{attachment: message.Attachment{
			Filename: "resume.pdf",
			Content:  []byte("%PDF-1.4 stub"),
		}},
	}
	h.auth = &fakeAuthenticator{transport: h.transport}
	h.orch = dispatch.New(h.dlog, h.dir, h.auth, h.att,
		message.NewBuilder(detector),
		dispatch.WithDryRunDelay(0),
	)
	return h
}

func collect(t *testing.T, seq func(func(dispatch.Event) bool)) []dispatch.Event {
	t.Helper()
	var events []dispatch.Event
	for ev := range seq {
		events = append(events, ev)
	}
	return events
}

func recipientIDs(recipients []dispatch.Recipient) []int64 {
	ids := make([]int64, len(recipients))
	for i, r := range recipients {
		ids[i] = r.ID
	}
	return ids
}

func testRecipients() []dispatch.Recipient {
	return []dispatch.Recipient{
		{ID: 1, Email: "alice@corp.example", FirstName: "Marie", LastName: "Durand", Company: "Corp"},
		{ID: 2, Email: "bob@acme.example", FirstName: "Jean", LastName: "Martin", Company: "Acme"},
		{ID: 3, Email: "carol@initech.example", FirstName: "Sophie", LastName: "Bernard", Company: "Initech"},
	}
}

const testTemplate = "{salutation},\n\nJe vous contacte au sujet de {company}.\n\nCordialement"

func TestDispatch_SendsAllRecipientsInOrder(t *testing.T) {
	t.Parallel()

	recipients := testRecipients()
	h := newHarness(t, recipients...)

	events := collect(t, h.orch.Dispatch(context.Background(), dispatch.Request{
		AccountOwnerID: 7,
		RecipientIDs:   recipientIDs(recipients),
		Subject:        "Candidature",
		Template:       testTemplate,
	}))

	require.Len(t, events, 3)
	for i, ev := range events {
		sent, ok := ev.(dispatch.Sent)
		require.True(t, ok, "event %d: expected Sent, got %T", i, ev)
		require.Equal(t, recipients[i].ID, sent.RecipientID)
		require.Equal(t, recipients[i].Email, sent.Email)
	}

	require.Equal(t, []string{
		"alice@corp.example", "bob@acme.example", "carol@initech.example",
	}, h.transport.sentTo())

	records := h.dlog.recorded()
	require.Len(t, records, 3)
	for _, rec := range records {
		require.Equal(t, deliverylog.StatusSent, rec.Status)
		require.Equal(t, int64(7), rec.AccountOwnerID)
		require.Equal(t, "Candidature", rec.Subject)
	}
}

func TestDispatch_SkipsAlreadySentRecipients(t *testing.T) {
	t.Parallel()

	recipients := testRecipients()
	h := newHarness(t, recipients...)
	h.dlog.keys.Add(2, "bob@acme.example")

	events := collect(t, h.orch.Dispatch(context.Background(), dispatch.Request{
		AccountOwnerID: 7,
		RecipientIDs:   recipientIDs(recipients),
		Subject:        "Candidature",
		Template:       testTemplate,
	}))

	require.Len(t, events, 3)
	require.IsType(t, dispatch.Sent{}, events[0])
	skipped, ok := events[1].(dispatch.Skipped)
	require.True(t, ok)
	require.Equal(t, "bob@acme.example", skipped.Email)
	require.Equal(t, "already sent", skipped.Reason)
	require.IsType(t, dispatch.Sent{}, events[2])

	require.Equal(t, []string{"alice@corp.example", "carol@initech.example"}, h.transport.sentTo())
	require.Len(t, h.dlog.recorded(), 2)
}

func TestDispatch_SkipsByEmailWhenIDDiffers(t *testing.T) {
	t.Parallel()

	recipients := testRecipients()[:1]
	h := newHarness(t, recipients...)
	// Same address recorded under a different (deleted) recipient id.
	h.dlog.keys.Add(999, "alice@corp.example")

	events := collect(t, h.orch.Dispatch(context.Background(), dispatch.Request{
		AccountOwnerID: 7,
		RecipientIDs:   []int64{1},
		Subject:        "Candidature",
		Template:       testTemplate,
	}))

	require.Len(t, events, 1)
	require.IsType(t, dispatch.Skipped{}, events[0])
	require.Empty(t, h.transport.sentTo())
}

func TestDispatch_FailureIsolation(t *testing.T) {
	t.Parallel()

	recipients := testRecipients()
	h := newHarness(t, recipients...)
	h.transport.failOn = map[string]error{
		"bob@acme.example": errors.New("gmail: 550 mailbox unavailable"),
	}

	events := collect(t, h.orch.Dispatch(context.Background(), dispatch.Request{
		AccountOwnerID: 7,
		RecipientIDs:   recipientIDs(recipients),
		Subject:        "Candidature",
		Template:       testTemplate,
	}))

	require.Len(t, events, 3)
	require.IsType(t, dispatch.Sent{}, events[0])
	failed, ok := events[1].(dispatch.Failed)
	require.True(t, ok)
	require.Contains(t, failed.Reason, "550")
	require.IsType(t, dispatch.Sent{}, events[2])

	records := h.dlog.recorded()
	require.Len(t, records, 3)
	require.Equal(t, deliverylog.StatusFailed, records[1].Status)
	require.Equal(t, "gmail: 550 mailbox unavailable", records[1].ErrorMessage)
	require.Equal(t, deliverylog.StatusSent, records[0].Status)
	require.Equal(t, deliverylog.StatusSent, records[2].Status)
}

func TestDispatch_DryRunHasNoSideEffects(t *testing.T) {
	t.Parallel()

	recipients := testRecipients()
	h := newHarness(t, recipients...)

	events := collect(t, h.orch.Dispatch(context.Background(), dispatch.Request{
		AccountOwnerID: 7,
		RecipientIDs:   recipientIDs(recipients),
		Subject:        "Candidature",
		Template:       testTemplate,
		DryRun:         true,
	}))

	require.Len(t, events, 3)
	for i, ev := range events {
		preview, ok := ev.(dispatch.Preview)
		require.True(t, ok, "event %d: expected Preview, got %T", i, ev)
		require.Contains(t, preview.Body, recipients[i].Company)
		require.NotContains(t, preview.Body, "{salutation}")
	}

	require.Empty(t, h.transport.sentTo())
	require.Empty(t, h.dlog.recorded())
	require.Zero(t, h.auth.calls, "dry run must not authenticate")
}

func TestDispatch_DryRunToleratesMissingAttachment(t *testing.T) {
	t.Parallel()

	recipients := testRecipients()[:1]
	h := newHarness(t, recipients...)
	h.att.err = dispatch.ErrNoAttachment

	events := collect(t, h.orch.Dispatch(context.Background(), dispatch.Request{
		AccountOwnerID: 7,
		RecipientIDs:   []int64{1},
		Subject:        "Candidature",
		Template:       testTemplate,
		DryRun:         true,
	}))

	require.Len(t, events, 1)
	require.IsType(t, dispatch.Preview{}, events[0])
}

func TestDispatch_MissingAttachmentFailsRealRun(t *testing.T) {
	t.Parallel()

	recipients := testRecipients()[:1]
	h := newHarness(t, recipients...)
	h.att.err = dispatch.ErrNoAttachment

	events := collect(t, h.orch.Dispatch(context.Background(), dispatch.Request{
		AccountOwnerID: 7,
		RecipientIDs:   []int64{1},
		Subject:        "Candidature",
		Template:       testTemplate,
	}))

	require.Len(t, events, 1)
	require.IsType(t, dispatch.FatalError{}, events[0])
	require.Empty(t, h.transport.sentTo())
	require.Empty(t, h.dlog.recorded())
}

func TestDispatch_UnlinkedRecipientAbortsRun(t *testing.T) {
	t.Parallel()

	recipients := testRecipients()
	h := newHarness(t, recipients...)

	events := collect(t, h.orch.Dispatch(context.Background(), dispatch.Request{
		AccountOwnerID: 7,
		RecipientIDs:   []int64{1, 42, 2},
		Subject:        "Candidature",
		Template:       testTemplate,
	}))

	require.Len(t, events, 1)
	fatal, ok := events[0].(dispatch.FatalError)
	require.True(t, ok)
	require.Contains(t, fatal.Message, "42")
	require.Empty(t, h.transport.sentTo())
	require.Empty(t, h.dlog.recorded())
}

func TestDispatch_UnknownAccountAbortsRun(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testRecipients()...)
	h.dir.exists = false

	events := collect(t, h.orch.Dispatch(context.Background(), dispatch.Request{
		AccountOwnerID: 404,
		RecipientIDs:   []int64{1},
		Subject:        "Candidature",
		Template:       testTemplate,
	}))

	require.Len(t, events, 1)
	require.IsType(t, dispatch.FatalError{}, events[0])
}

func TestDispatch_InvalidTemplateAbortsBeforeAnyWork(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testRecipients()...)

	events := collect(t, h.orch.Dispatch(context.Background(), dispatch.Request{
		AccountOwnerID: 7,
		RecipientIDs:   []int64{1, 2, 3},
		Subject:        "Candidature",
		Template:       "Bonjour {salutaton}",
	}))

	require.Len(t, events, 1)
	fatal, ok := events[0].(dispatch.FatalError)
	require.True(t, ok)
	require.Contains(t, fatal.Message, "salutaton")
	require.Zero(t, h.auth.calls)
	require.Empty(t, h.dlog.recorded())
}

func TestDispatch_AuthFailureYieldsSingleFatalError(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testRecipients()...)
	h.auth.err = errors.New("gmail: token refresh rejected")

	events := collect(t, h.orch.Dispatch(context.Background(), dispatch.Request{
		AccountOwnerID: 7,
		RecipientIDs:   []int64{1, 2, 3},
		Subject:        "Candidature",
		Template:       testTemplate,
	}))

	require.Len(t, events, 1)
	fatal, ok := events[0].(dispatch.FatalError)
	require.True(t, ok)
	require.Contains(t, fatal.Message, "authentication failed")
	require.Empty(t, h.transport.sentTo())
}

func TestDispatch_DuplicateRequestIDsDispatchOnce(t *testing.T) {
	t.Parallel()

	recipients := testRecipients()[:1]
	h := newHarness(t, recipients...)

	events := collect(t, h.orch.Dispatch(context.Background(), dispatch.Request{
		AccountOwnerID: 7,
		RecipientIDs:   []int64{1, 1, 1},
		Subject:        "Candidature",
		Template:       testTemplate,
	}))

	require.Len(t, events, 1)
	require.Equal(t, []string{"alice@corp.example"}, h.transport.sentTo())
}

func TestDispatch_DuplicateEmailsWithinRunSendOnce(t *testing.T) {
	t.Parallel()

	recipients := []dispatch.Recipient{
		{ID: 1, Email: "shared@corp.example", FirstName: "Marie", LastName: "Durand", Company: "Corp"},
		{ID: 2, Email: "shared@corp.example", FirstName: "Jean", LastName: "Martin", Company: "Corp"},
	}
	h := newHarness(t, recipients...)

	events := collect(t, h.orch.Dispatch(context.Background(), dispatch.Request{
		AccountOwnerID: 7,
		RecipientIDs:   []int64{1, 2},
		Subject:        "Candidature",
		Template:       testTemplate,
	}))

	require.Len(t, events, 2)
	require.IsType(t, dispatch.Sent{}, events[0])
	require.IsType(t, dispatch.Skipped{}, events[1])
	require.Equal(t, []string{"shared@corp.example"}, h.transport.sentTo())
}

func TestDispatch_BreakingOutStopsTheRun(t *testing.T) {
	t.Parallel()

	recipients := testRecipients()
	h := newHarness(t, recipients...)

	seen := 0
	for range h.orch.Dispatch(context.Background(), dispatch.Request{
		AccountOwnerID: 7,
		RecipientIDs:   recipientIDs(recipients),
		Subject:        "Candidature",
		Template:       testTemplate,
	}) {
		seen++
		if seen == 1 {
			break
		}
	}

	require.Equal(t, 1, seen)
	require.Equal(t, []string{"alice@corp.example"}, h.transport.sentTo())
	require.Len(t, h.dlog.recorded(), 1, "only the consumed recipient is sent")
}

func TestDispatch_CancellationStopsBetweenRecipients(t *testing.T) {
	t.Parallel()

	recipients := testRecipients()
	h := newHarness(t, recipients...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var events []dispatch.Event
	for ev := range h.orch.Dispatch(ctx, dispatch.Request{
		AccountOwnerID: 7,
		RecipientIDs:   recipientIDs(recipients),
		Subject:        "Candidature",
		Template:       testTemplate,
	}) {
		events = append(events, ev)
		cancel()
	}

	require.Len(t, events, 1)
	require.IsType(t, dispatch.Sent{}, events[0])
	require.Equal(t, []string{"alice@corp.example"}, h.transport.sentTo())
	require.Len(t, h.dlog.recorded(), 1)
}

// ctxCheckingLog rejects appends whose context is already cancelled, the
// way a real database write would.
type ctxCheckingLog struct {
	mu      sync.Mutex
	keys    deliverylog.KeySet
	records []deliverylog.Record
}

func (f *ctxCheckingLog) SentKeys(_ context.Context, _ int64) (deliverylog.KeySet, error) {
	return f.keys, nil
}

func (f *ctxCheckingLog) Append(ctx context.Context, rec deliverylog.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

// cancellingTransport cancels the caller's context while a send is in
// flight and fails the send if its own context is cancelled too.
type cancellingTransport struct {
	cancel context.CancelFunc
	sent   []string
}

func (f *cancellingTransport) Send(ctx context.Context, env *message.Envelope) error {
	f.cancel()
	if err := ctx.Err(); err != nil {
		return err
	}
	f.sent = append(f.sent, env.To)
	return nil
}

func TestDispatch_InFlightSendSurvivesCancellation(t *testing.T) {
	t.Parallel()

	detector, err := gender.NewHeuristicDetector()
	require.NoError(t, err)

	recipients := testRecipients()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dlog := &ctxCheckingLog{keys: deliverylog.NewKeySet()}
	transport := &cancellingTransport{cancel: cancel}
	orch := dispatch.New(
		dlog,
		&fakeDirectory{exists: true, recipients: recipients},
		&fakeAuthenticator{transport: transport},
		&fakeAttachments{attachment: message.Attachment{Filename: "resume.pdf", Content: []byte("x")}},
		message.NewBuilder(detector),
		dispatch.WithDryRunDelay(0),
	)

	var events []dispatch.Event
	for ev := range orch.Dispatch(ctx, dispatch.Request{
		AccountOwnerID: 7,
		RecipientIDs:   recipientIDs(recipients),
		Subject:        "Candidature",
		Template:       testTemplate,
	}) {
		events = append(events, ev)
	}

	// The in-flight send completes and is logged; cancellation takes
	// effect before the next recipient.
	require.Len(t, events, 1)
	require.IsType(t, dispatch.Sent{}, events[0])
	require.Equal(t, []string{"alice@corp.example"}, transport.sent)
	require.Len(t, dlog.records, 1)
	require.Equal(t, deliverylog.StatusSent, dlog.records[0].Status)
	require.Equal(t, "alice@corp.example", dlog.records[0].RecipientEmail)
}

func TestDispatch_AppendFailureDoesNotChangeOutcome(t *testing.T) {
	t.Parallel()

	recipients := testRecipients()[:1]
	h := newHarness(t, recipients...)
	h.dlog.appendErr = errors.New("pg: connection reset")

	events := collect(t, h.orch.Dispatch(context.Background(), dispatch.Request{
		AccountOwnerID: 7,
		RecipientIDs:   []int64{1},
		Subject:        "Candidature",
		Template:       testTemplate,
	}))

	require.Len(t, events, 1)
	require.IsType(t, dispatch.Sent{}, events[0])
	require.Equal(t, []string{"alice@corp.example"}, h.transport.sentTo())
}

func TestDispatch_DryRunPacing(t *testing.T) {
	t.Parallel()

	detector, err := gender.NewHeuristicDetector()
	require.NoError(t, err)

	recipients := testRecipients()
	dlog := newFakeDeliveryLog()
	orch := dispatch.New(
		dlog,
		&fakeDirectory{exists: true, recipients: recipients},
		&fakeAuthenticator{},
		&fakeAttachments{attachment: message.Attachment{Filename: "resume.pdf", Content: []byte("x")}},
		message.NewBuilder(detector),
		dispatch.WithDryRunDelay(20*time.Millisecond),
	)

	start := time.Now()
	events := collect(t, orch.Dispatch(context.Background(), dispatch.Request{
		AccountOwnerID: 7,
		RecipientIDs:   recipientIDs(recipients),
		Subject:        "Candidature",
		Template:       testTemplate,
		DryRun:         true,
	}))
	elapsed := time.Since(start)

	require.Len(t, events, 3)
	require.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
}

func TestDispatch_LazySequenceDoesNothingUntilRanged(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testRecipients()...)

	_ = h.orch.Dispatch(context.Background(), dispatch.Request{
		AccountOwnerID: 7,
		RecipientIDs:   []int64{1, 2, 3},
		Subject:        "Candidature",
		Template:       testTemplate,
	})

	require.Empty(t, h.transport.sentTo())
	require.Empty(t, h.dlog.recorded())
	require.Zero(t, h.auth.calls)
}

func TestDispatch_NoRecipientsAborts(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	events := collect(t, h.orch.Dispatch(context.Background(), dispatch.Request{
		AccountOwnerID: 7,
		RecipientIDs:   nil,
		Subject:        "Candidature",
		Template:       testTemplate,
	}))

	require.Len(t, events, 1)
	fatal, ok := events[0].(dispatch.FatalError)
	require.True(t, ok)
	require.Contains(t, fatal.Message, "no valid recipients")
}

func TestDispatch_EventsCarryRecipientIdentity(t *testing.T) {
	t.Parallel()

	recipients := testRecipients()
	h := newHarness(t, recipients...)
	h.transport.failOn = map[string]error{"carol@initech.example": errors.New("quota exceeded")}

	events := collect(t, h.orch.Dispatch(context.Background(), dispatch.Request{
		AccountOwnerID: 7,
		RecipientIDs:   recipientIDs(recipients),
		Subject:        "Candidature",
		Template:       testTemplate,
	}))

	require.Len(t, events, 3)
	got := make([]string, len(events))
	for i, ev := range events {
		switch e := ev.(type) {
		case dispatch.Sent:
			got[i] = fmt.Sprintf("sent:%d:%s", e.RecipientID, e.Email)
		case dispatch.Failed:
			got[i] = fmt.Sprintf("failed:%d:%s", e.RecipientID, e.Email)
		default:
			t.Fatalf("unexpected event %T", ev)
		}
	}
	require.Equal(t, []string{
		"sent:1:alice@corp.example",
		"sent:2:bob@acme.example",
		"failed:3:carol@initech.example",
	}, got)
}
