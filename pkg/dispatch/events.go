package dispatch

// Event is the closed set of per-recipient outcomes streamed to the caller.
// Exactly one event is produced per recipient, in recipient input order; a
// FatalError is terminal and replaces the rest of the stream.
type Event interface {
	event()
}

// Sent reports a successful transport delivery.
type Sent struct {
	RecipientID int64
	Email       string
}

// Failed reports a per-recipient transport failure. The run continues with
// the next recipient.
type Failed struct {
	RecipientID int64
	Email       string
	Reason      string
}

// Skipped reports a recipient left untouched, typically because a prior run
// already delivered to it.
type Skipped struct {
	RecipientID int64
	Email       string
	Reason      string
}

// Preview carries the rendered plaintext body of a dry-run send.
type Preview struct {
	RecipientID int64
	Email       string
	Body        string
}

// FatalError aborts the stream. Nothing is emitted after it.
type FatalError struct {
	Message string
}

func (Sent) event()       {}
func (Failed) event()     {}
func (Skipped) event()    {}
func (Preview) event()    {}
func (FatalError) event() {}
