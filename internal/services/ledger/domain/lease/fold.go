package lease

import (
	"encoding/json"
	"time"

	"github.com/louisbranch/leaselog/internal/services/ledger/domain/event"
)

// Fold applies a single event to lease state.
//
// Fold assumes the caller already applied the bi-temporal cutoff; it reads no
// clock and inspects nothing beyond the event itself, so folding the same
// sequence always yields the same state.
func Fold(state State, evt event.Event) State {
	switch evt.Type {
	case event.TypeLeaseCreated:
		var payload event.LeaseCreatedPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state.Created = true
		state.LeaseID = evt.LeaseID
		state.UserID = payload.UserID
		if t, err := event.ParseDate(payload.CommencementDate); err == nil {
			state.CommencementDate = t
		}
		if t, err := event.ParseDate(payload.ExpirationDate); err == nil {
			state.ExpirationDate = t
		}
		state.MonthlyPaymentAmount = payload.MonthlyPaymentAmount
		state.Status = StatusOutstanding
	case event.TypePaymentScheduled:
		var payload event.PaymentScheduledPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state.TotalScheduled += payload.Amount
	case event.TypePaymentReceived:
		var payload event.PaymentReceivedPayload
		_ = json.Unmarshal(evt.PayloadJSON, &payload)
		state.TotalPaid += payload.Amount
	case event.TypeLeaseTerminated:
		state.Status = StatusTerminated
	}
	state.UpdatedAtTime = evt.CreatedTime
	state.UpdatedOnDate = evt.EffectiveDate
	return state
}

// Replay folds an ordered event sequence into state, keeping only events
// effective on or before asOn. Events must arrive in EventID order.
func Replay(events []event.Event, asOn time.Time) State {
	var state State
	for _, evt := range events {
		if !event.OnOrBefore(evt.EffectiveDate, asOn) {
			continue
		}
		state = Fold(state, evt)
	}
	return state
}
