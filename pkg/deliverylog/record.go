package deliverylog

import (
	"time"

	"github.com/google/uuid"
)

// Status is the outcome of one send attempt.
type Status string

const (
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusSent, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Record is one row of the delivery log.
// RecipientID is nil when the record references a recipient that has since
// been removed, or when only the raw address was known at send time.
// ErrorMessage is set only when Status is StatusFailed.
type Record struct {
	ID             uuid.UUID
	AccountOwnerID int64
	RecipientID    *int64
	RecipientEmail string
	Subject        string
	Status         Status
	SentAt         time.Time
	ErrorMessage   string
}

// KeySet holds the already-delivered keys for one account owner. Both the
// recipient id and the raw address are tracked: a recipient row can be
// recreated under a new id pointing at the same address, and the address
// alone must still protect it.
type KeySet struct {
	IDs    map[int64]struct{}
	Emails map[string]struct{}
}

// NewKeySet returns an empty KeySet.
func NewKeySet() KeySet {
	return KeySet{
		IDs:    make(map[int64]struct{}),
		Emails: make(map[string]struct{}),
	}
}

// Contains reports whether the recipient id or email is already delivered.
func (k KeySet) Contains(recipientID int64, email string) bool {
	if _, ok := k.IDs[recipientID]; ok {
		return true
	}
	_, ok := k.Emails[email]
	return ok
}

// Add marks a recipient as delivered.
func (k KeySet) Add(recipientID int64, email string) {
	k.IDs[recipientID] = struct{}{}
	k.Emails[email] = struct{}{}
}

// Filter selects records for Purge. At least one criterion must be set
// unless All is true.
type Filter struct {
	RecipientID *int64
	Status      *Status
	Before      *time.Time
	All         bool
}

// Empty reports whether no criterion is set.
func (f Filter) Empty() bool {
	return !f.All && f.RecipientID == nil && f.Status == nil && f.Before == nil
}

// Stats aggregates per-owner delivery counts.
type Stats struct {
	TotalSent    int64 `json:"total_sent"`
	TotalFailed  int64 `json:"total_failed"`
	TotalSkipped int64 `json:"total_skipped"`
	TotalEmails  int64 `json:"total_emails"`
}
