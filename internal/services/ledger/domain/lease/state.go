// Package lease holds the pure domain logic for one lease aggregate: folding
// its event journal into state, deriving observations, and deciding commands.
package lease

import "time"

// Status is the lifecycle status of a lease.
type Status string

const (
	// StatusOutstanding marks a live lease accepting payment events.
	StatusOutstanding Status = "Outstanding"
	// StatusTerminated marks a terminated lease. Terminated is absorbing.
	StatusTerminated Status = "Terminated"
)

// State is the folded state of a lease as of some bi-temporal cutoff.
//
// State is never persisted; it exists for the duration of a single command
// decision or query evaluation.
type State struct {
	// Created reports whether a LeaseCreated event is in scope.
	Created bool
	// Identity fields, set once by LeaseCreated.
	LeaseID              string
	UserID               string
	CommencementDate     time.Time
	ExpirationDate       time.Time
	MonthlyPaymentAmount float64
	// Running totals.
	TotalScheduled float64
	TotalPaid      float64
	// Status of the lease lifecycle.
	Status Status
	// UpdatedAtTime / UpdatedOnDate mark the last contributing event.
	UpdatedAtTime time.Time
	UpdatedOnDate time.Time
}
