// Package dispatch runs the outreach pipeline: one pass over a recipient
// set, sending each recipient at most one email and reporting progress as a
// lazy event stream.
//
// A run is a small state machine: validation (account, recipients,
// template, attachment), one-shot authentication, then a strictly sequential
// iteration over the recipients in input order. Authentication happens once
// up front because a credential failure halfway through a large run must
// abort everything rather than degrade to per-recipient auth attempts.
//
// Dispatch returns an iter.Seq of events, one per recipient plus an optional
// terminal FatalError. The sequence is pull-based: the next recipient is not
// processed until the caller consumes the current event, so a slow consumer
// backpressures the run instead of forcing unbounded buffering. Cancellation
// is honored between recipients only; an in-flight send always completes and
// is logged, which keeps the delivery log unambiguous.
//
// Idempotency rests on the delivery log: a recipient with a prior SENT
// record, keyed by recipient id or raw address, is skipped without touching
// the transport.
//
// Usage:
//
//	orch := dispatch.New(log, directory, authenticator, attachments, builder)
//	for ev := range orch.Dispatch(ctx, req) {
//		switch e := ev.(type) {
//		case dispatch.Sent:
//			// ...
//		case dispatch.FatalError:
//			// run aborted
//		}
//	}
package dispatch
