// Package api exposes the ledger command and query services as plain Go
// request/response types. Errors cross this boundary as gRPC status values so
// any transport can map them uniformly.
package api

import (
	"encoding/json"
	"time"

	"github.com/louisbranch/leaselog/internal/services/ledger/domain/event"
	"github.com/louisbranch/leaselog/internal/services/ledger/domain/lease"
	"github.com/louisbranch/leaselog/internal/services/ledger/storage"
)

// Stores bundles the storage interfaces the services depend on.
type Stores struct {
	Event storage.EventStore
	Lease storage.LeaseStore
}

// Lease is the observation of a lease at a bi-temporal cutoff.
type Lease struct {
	LeaseID              string  `json:"lease_id"`
	UserID               string  `json:"user_id"`
	CommencementDate     string  `json:"commencement_date"`
	ExpirationDate       string  `json:"expiration_date"`
	MonthlyPaymentAmount float64 `json:"monthly_payment_amount"`
	TotalScheduled       float64 `json:"total_scheduled"`
	TotalPaid            float64 `json:"total_paid"`
	AmountDue            float64 `json:"amount_due"`
	Status               string  `json:"status"`
	UpdatedAtTime        string  `json:"updated_at_time,omitempty"`
	UpdatedOnDate        string  `json:"updated_on_date,omitempty"`
}

// Event is the transport view of one journal event.
type Event struct {
	LeaseID       string          `json:"lease_id"`
	EventID       uint64          `json:"event_id"`
	CreatedTime   string          `json:"created_time"`
	EffectiveDate string          `json:"effective_date"`
	Type          string          `json:"type"`
	RequestID     string          `json:"request_id,omitempty"`
	Hash          string          `json:"hash"`
	Payload       json.RawMessage `json:"payload"`
}

// LeaseIdentity is the registry view of a lease, independent of any cutoff.
type LeaseIdentity struct {
	LeaseID              string  `json:"lease_id"`
	UserID               string  `json:"user_id"`
	CommencementDate     string  `json:"commencement_date"`
	ExpirationDate       string  `json:"expiration_date"`
	MonthlyPaymentAmount float64 `json:"monthly_payment_amount"`
	CreatedTime          string  `json:"created_time"`
}

func observationToView(obs lease.Observation) Lease {
	view := Lease{
		LeaseID:              obs.LeaseID,
		UserID:               obs.UserID,
		CommencementDate:     event.FormatDate(obs.CommencementDate),
		ExpirationDate:       event.FormatDate(obs.ExpirationDate),
		MonthlyPaymentAmount: obs.MonthlyPaymentAmount,
		TotalScheduled:       obs.TotalScheduled,
		TotalPaid:            obs.TotalPaid,
		AmountDue:            obs.AmountDue,
		Status:               string(obs.Status),
	}
	if !obs.UpdatedAtTime.IsZero() {
		view.UpdatedAtTime = obs.UpdatedAtTime.UTC().Format(time.RFC3339Nano)
	}
	if !obs.UpdatedOnDate.IsZero() {
		view.UpdatedOnDate = event.FormatDate(obs.UpdatedOnDate)
	}
	return view
}

func eventToView(evt event.Event) Event {
	return Event{
		LeaseID:       evt.LeaseID,
		EventID:       evt.EventID,
		CreatedTime:   evt.CreatedTime.UTC().Format(time.RFC3339Nano),
		EffectiveDate: event.FormatDate(evt.EffectiveDate),
		Type:          string(evt.Type),
		RequestID:     evt.RequestID,
		Hash:          evt.Hash,
		Payload:       json.RawMessage(evt.PayloadJSON),
	}
}

func leaseToIdentityView(l storage.Lease) LeaseIdentity {
	return LeaseIdentity{
		LeaseID:              l.LeaseID,
		UserID:               l.UserID,
		CommencementDate:     event.FormatDate(l.CommencementDate),
		ExpirationDate:       event.FormatDate(l.ExpirationDate),
		MonthlyPaymentAmount: l.MonthlyPaymentAmount,
		CreatedTime:          l.CreatedTime.UTC().Format(time.RFC3339Nano),
	}
}
