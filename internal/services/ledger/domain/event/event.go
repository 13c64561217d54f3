// Package event defines the immutable lease event envelope for the ledger
// write path.
//
// Events are business facts emitted by accepted commands. Persistence assigns
// sequence, creation time, and integrity fields on append; everything else is
// fixed by the command that produced the event.
package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Type identifies the kind of a lease event. The set is closed.
type Type string

const (
	// TypeLeaseCreated records the creation of a lease.
	TypeLeaseCreated Type = "LeaseCreated"
	// TypePaymentScheduled records a payment being scheduled.
	TypePaymentScheduled Type = "PaymentScheduled"
	// TypePaymentReceived records a payment being received.
	TypePaymentReceived Type = "PaymentReceived"
	// TypeLeaseTerminated records the termination of a lease.
	TypeLeaseTerminated Type = "LeaseTerminated"
)

// Event represents an immutable entry in a lease's event journal.
type Event struct {
	// LeaseID is the lease this event belongs to.
	LeaseID string
	// EventID is the event sequence number within the lease (starts at 1).
	// Assigned by storage on append.
	EventID uint64
	// CreatedTime is the transaction time of the append (system time).
	// Assigned by storage on append; non-decreasing in EventID per lease.
	CreatedTime time.Time
	// EffectiveDate is the business date the event takes effect (valid time).
	// Day granularity; may be backdated or future-dated relative to CreatedTime.
	EffectiveDate time.Time
	// Type identifies the kind of event.
	Type Type
	// RequestID correlates the event with the command submission that produced it.
	RequestID string
	// Hash is the content-addressed identity (SHA-256 truncated to 128-bit).
	// Assigned by storage on append.
	Hash string
	// Signature is the HMAC signature of the content hash.
	// Assigned by storage on append.
	Signature string
	// SignatureKeyID identifies the HMAC key used to sign the hash.
	// Assigned by storage on append.
	SignatureKeyID string
	// PayloadJSON holds event-specific data as JSON.
	PayloadJSON []byte
}

// IsValid reports whether the type belongs to the closed event set.
func (t Type) IsValid() bool {
	switch t {
	case TypeLeaseCreated, TypePaymentScheduled, TypePaymentReceived, TypeLeaseTerminated:
		return true
	}
	return false
}

// ValidateForAppend normalizes an event and checks it is storable.
// Sequence and integrity fields must still be unset; storage owns them.
func ValidateForAppend(evt Event) (Event, error) {
	evt.LeaseID = strings.TrimSpace(evt.LeaseID)
	if evt.LeaseID == "" {
		return Event{}, fmt.Errorf("lease id is required")
	}
	if !evt.Type.IsValid() {
		return Event{}, fmt.Errorf("unknown event type %q", evt.Type)
	}
	if evt.EventID != 0 {
		return Event{}, fmt.Errorf("event id is assigned by storage")
	}
	if evt.EffectiveDate.IsZero() {
		return Event{}, fmt.Errorf("effective date is required")
	}
	evt.EffectiveDate = TruncateToDay(evt.EffectiveDate)
	if len(evt.PayloadJSON) == 0 {
		evt.PayloadJSON = []byte("{}")
	}
	if !json.Valid(evt.PayloadJSON) {
		return Event{}, fmt.Errorf("event payload is not valid JSON")
	}
	return evt, nil
}

// TruncateToDay normalizes a time to midnight UTC. EffectiveDate and every
// asOn comparison operate at day granularity.
func TruncateToDay(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// OnOrBefore reports whether d falls on or before cutoff at day granularity.
func OnOrBefore(d, cutoff time.Time) bool {
	return !TruncateToDay(d).After(TruncateToDay(cutoff))
}

// DateLayout is the boundary format for day-granularity dates.
const DateLayout = "2006-01-02"

// FormatDate renders a day-granularity date for payloads and API responses.
func FormatDate(t time.Time) string {
	return TruncateToDay(t).Format(DateLayout)
}

// ParseDate parses a boundary date string into a midnight-UTC time.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return t.UTC(), nil
}
