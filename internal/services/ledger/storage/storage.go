// Package storage defines the persistence contracts for the lease ledger.
//
// The event journal is the only mutable resource. Each lease is an independent
// consistency boundary: appends for one lease serialize, appends for
// different leases proceed in parallel.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/leaselog/internal/services/ledger/domain/event"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateLease is returned when a LeaseCreated append targets an
// existing lease.
var ErrDuplicateLease = errors.New("lease already exists")

// ErrDuplicatePayment is returned when a payment event reuses a payment id
// already recorded for the lease (idempotency-key replay).
var ErrDuplicatePayment = errors.New("payment id already recorded")

// ErrAppendConflict is returned when a concurrent append race on the same
// lease is detected at the store layer.
var ErrAppendConflict = errors.New("append conflict")

// Lease is the immutable identity of a lease, registered when its
// LeaseCreated event is appended.
type Lease struct {
	LeaseID              string
	UserID               string
	CommencementDate     time.Time
	ExpirationDate       time.Time
	MonthlyPaymentAmount float64
	CreatedTime          time.Time
}

// ReadEventsPageRequest describes one page of a bi-temporal event listing.
type ReadEventsPageRequest struct {
	LeaseID string
	// CreatedBefore is the asAt cutoff (transaction time). Zero means now.
	CreatedBefore time.Time
	// EffectiveOnOrBefore is the asOn cutoff (business time). Zero disables it.
	EffectiveOnOrBefore time.Time
	PageSize            int
	// Cursor state decoded from an opaque page token.
	CursorSeq     uint64
	CursorDir     string
	CursorReverse bool
	// Optional AIP-160 filter translated to SQL.
	FilterClause string
	FilterParams []any
}

// ReadEventsPageResult is one page of events plus pagination facts.
type ReadEventsPageResult struct {
	Events      []event.Event
	TotalCount  int
	HasNextPage bool
	HasPrevPage bool
}

// ListLeasesPageRequest describes one page of the lease registry listing.
type ListLeasesPageRequest struct {
	PageSize int
	// Cursor state decoded from an opaque page token; leases order by LeaseID.
	CursorKey     string
	CursorDir     string
	CursorReverse bool
}

// ListLeasesPageResult is one page of lease identities plus pagination facts.
type ListLeasesPageResult struct {
	Leases      []Lease
	TotalCount  int
	HasNextPage bool
	HasPrevPage bool
}

// EventStore is the append/read/delete surface over per-lease event journals.
type EventStore interface {
	// AppendEvent atomically appends an event, assigning its sequence,
	// creation time, and integrity fields.
	AppendEvent(ctx context.Context, evt event.Event) (event.Event, error)
	// ReadEvents returns all events for a lease with CreatedTime at or before
	// createdBefore (zero means now), ordered by EventID ascending.
	ReadEvents(ctx context.Context, leaseID string, createdBefore time.Time) ([]event.Event, error)
	// ReadEventsPage returns a paginated bi-temporal slice of a lease journal.
	ReadEventsPage(ctx context.Context, req ReadEventsPageRequest) (ReadEventsPageResult, error)
	// GetEventByID retrieves a single event.
	GetEventByID(ctx context.Context, leaseID string, eventID uint64) (event.Event, error)
	// DeleteEvent physically removes one event from the journal.
	DeleteEvent(ctx context.Context, leaseID string, eventID uint64) error
}

// LeaseStore is the read surface over the lease identity registry.
type LeaseStore interface {
	// GetLease returns the immutable identity of a lease.
	GetLease(ctx context.Context, leaseID string) (Lease, error)
	// ListLeasesPage returns a page of registered leases ordered by LeaseID.
	ListLeasesPage(ctx context.Context, req ListLeasesPageRequest) (ListLeasesPageResult, error)
}
