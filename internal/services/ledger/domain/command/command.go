// Package command defines the command envelope and the pure decision outcome
// used by the ledger write path.
package command

import (
	"time"

	"github.com/louisbranch/leaselog/internal/services/ledger/domain/event"
)

// Type identifies a ledger command.
type Type string

// Command is the envelope for a requested state change against one lease.
type Command struct {
	// LeaseID is the aggregate the command targets.
	LeaseID string
	// Type identifies the requested operation.
	Type Type
	// EffectiveDate is the business date the resulting event takes effect.
	EffectiveDate time.Time
	// RequestID correlates retried submissions of the same logical command.
	RequestID string
	// PayloadJSON holds command-specific data as JSON.
	PayloadJSON []byte
}

// NewEvent builds an event.Event by copying the shared envelope fields from a
// command. Callers supply the event type and payload. This keeps per-decider
// boilerplate down and forwards new envelope fields automatically.
func NewEvent(cmd Command, eventType event.Type, payloadJSON []byte) event.Event {
	return event.Event{
		LeaseID:       cmd.LeaseID,
		Type:          eventType,
		EffectiveDate: cmd.EffectiveDate,
		RequestID:     cmd.RequestID,
		PayloadJSON:   payloadJSON,
	}
}
