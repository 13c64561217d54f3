package lease

import (
	"time"

	"github.com/louisbranch/leaselog/internal/services/ledger/domain/event"
)

// Observation is the derived financial view of a lease at a bi-temporal
// cutoff. It is regenerated on every query and never persisted.
type Observation struct {
	LeaseID              string
	UserID               string
	CommencementDate     time.Time
	ExpirationDate       time.Time
	MonthlyPaymentAmount float64
	TotalScheduled       float64
	TotalPaid            float64
	// AmountDue is TotalScheduled - TotalPaid. Negative when overpaid; the
	// value is surfaced as-is, never clamped.
	AmountDue     float64
	Status        Status
	UpdatedAtTime time.Time
	UpdatedOnDate time.Time
}

// Observe replays an ordered event sequence into an Observation, keeping only
// events effective on or before asOn. The caller applies the asAt (transaction
// time) cutoff when reading the journal.
func Observe(events []event.Event, asOn time.Time) Observation {
	state := Replay(events, asOn)
	return Observation{
		LeaseID:              state.LeaseID,
		UserID:               state.UserID,
		CommencementDate:     state.CommencementDate,
		ExpirationDate:       state.ExpirationDate,
		MonthlyPaymentAmount: state.MonthlyPaymentAmount,
		TotalScheduled:       state.TotalScheduled,
		TotalPaid:            state.TotalPaid,
		AmountDue:            state.TotalScheduled - state.TotalPaid,
		Status:               state.Status,
		UpdatedAtTime:        state.UpdatedAtTime,
		UpdatedOnDate:        state.UpdatedOnDate,
	}
}
