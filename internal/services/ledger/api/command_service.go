package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/louisbranch/leaselog/internal/errors"
	"github.com/louisbranch/leaselog/internal/services/ledger/domain/command"
	"github.com/louisbranch/leaselog/internal/services/ledger/domain/event"
	"github.com/louisbranch/leaselog/internal/services/ledger/domain/lease"
	"github.com/louisbranch/leaselog/internal/services/ledger/storage"
)

// CommandService handles the ledger write path: validate, decide, append.
type CommandService struct {
	stores Stores
	now    func() time.Time
}

// NewCommandService creates a CommandService with the provided stores.
func NewCommandService(stores Stores) *CommandService {
	return &CommandService{
		stores: stores,
		now:    time.Now,
	}
}

// CreateLeaseRequest opens a new lease ledger.
type CreateLeaseRequest struct {
	LeaseID              string  `json:"lease_id"`
	UserID               string  `json:"user_id"`
	CommencementDate     string  `json:"commencement_date"`
	ExpirationDate       string  `json:"expiration_date"`
	MonthlyPaymentAmount float64 `json:"monthly_payment_amount"`
	// RequestID correlates retried submissions; one is generated when empty.
	RequestID string `json:"request_id,omitempty"`
}

// PaymentRequest schedules or records a payment against a lease.
type PaymentRequest struct {
	LeaseID   string  `json:"lease_id"`
	PaymentID string  `json:"payment_id"`
	Amount    float64 `json:"amount"`
	// EffectiveDate is the business date of the payment, YYYY-MM-DD.
	EffectiveDate string `json:"effective_date"`
	RequestID     string `json:"request_id,omitempty"`
}

// TerminateLeaseRequest closes a lease ledger.
type TerminateLeaseRequest struct {
	LeaseID string `json:"lease_id"`
	Reason  string `json:"reason,omitempty"`
	// EffectiveDate is the business date the termination takes effect,
	// YYYY-MM-DD. Empty means today.
	EffectiveDate string `json:"effective_date,omitempty"`
	RequestID     string `json:"request_id,omitempty"`
}

// CommandResponse reports the appended event and the lease observation as of
// the moment the command landed.
type CommandResponse struct {
	Event Event `json:"event"`
	Lease Lease `json:"lease"`
}

// DeleteLeaseEventRequest removes one event from a lease journal.
type DeleteLeaseEventRequest struct {
	LeaseID string `json:"lease_id"`
	EventID uint64 `json:"event_id"`
}

// DeleteLeaseEventResponse returns the deleted event for audit logs.
type DeleteLeaseEventResponse struct {
	Event Event `json:"event"`
}

// CreateLease opens a lease ledger with a LeaseCreated event.
func (s *CommandService) CreateLease(ctx context.Context, req CreateLeaseRequest) (CommandResponse, error) {
	commencement, err := event.ParseDate(req.CommencementDate)
	if err != nil {
		return CommandResponse{}, apperrors.HandleError(
			apperrors.New(apperrors.CodeLeaseTermInvalid, "commencement date is invalid"))
	}

	payloadJSON, _ := json.Marshal(event.LeaseCreatedPayload{
		UserID:               req.UserID,
		CommencementDate:     req.CommencementDate,
		ExpirationDate:       req.ExpirationDate,
		MonthlyPaymentAmount: req.MonthlyPaymentAmount,
	})

	return s.handle(ctx, command.Command{
		LeaseID:       req.LeaseID,
		Type:          lease.CommandTypeCreate,
		EffectiveDate: commencement,
		RequestID:     req.RequestID,
		PayloadJSON:   payloadJSON,
	})
}

// SchedulePayment records an expected payment against the lease.
func (s *CommandService) SchedulePayment(ctx context.Context, req PaymentRequest) (CommandResponse, error) {
	return s.handlePayment(ctx, req, lease.CommandTypeSchedulePayment)
}

// ReceivePayment records a received payment against the lease.
func (s *CommandService) ReceivePayment(ctx context.Context, req PaymentRequest) (CommandResponse, error) {
	return s.handlePayment(ctx, req, lease.CommandTypeReceivePayment)
}

func (s *CommandService) handlePayment(ctx context.Context, req PaymentRequest, cmdType command.Type) (CommandResponse, error) {
	effective, err := event.ParseDate(req.EffectiveDate)
	if err != nil {
		return CommandResponse{}, apperrors.HandleError(
			apperrors.New(apperrors.CodePaymentDateInvalid, "payment effective date is invalid"))
	}

	payloadJSON, _ := json.Marshal(event.PaymentScheduledPayload{
		PaymentID: req.PaymentID,
		Amount:    req.Amount,
	})

	return s.handle(ctx, command.Command{
		LeaseID:       req.LeaseID,
		Type:          cmdType,
		EffectiveDate: effective,
		RequestID:     req.RequestID,
		PayloadJSON:   payloadJSON,
	})
}

// TerminateLease closes the lease ledger with a LeaseTerminated event.
func (s *CommandService) TerminateLease(ctx context.Context, req TerminateLeaseRequest) (CommandResponse, error) {
	effective := event.TruncateToDay(s.now().UTC())
	if strings.TrimSpace(req.EffectiveDate) != "" {
		parsed, err := event.ParseDate(req.EffectiveDate)
		if err != nil {
			return CommandResponse{}, apperrors.HandleError(
				apperrors.New(apperrors.CodeLeaseTermInvalid, "termination effective date is invalid"))
		}
		effective = parsed
	}

	payloadJSON, _ := json.Marshal(event.LeaseTerminatedPayload{Reason: req.Reason})

	return s.handle(ctx, command.Command{
		LeaseID:       req.LeaseID,
		Type:          lease.CommandTypeTerminate,
		EffectiveDate: effective,
		RequestID:     req.RequestID,
		PayloadJSON:   payloadJSON,
	})
}

// DeleteLeaseEvent physically removes one event from a lease journal. The
// removal itself is logged; past observations derived from the deleted event
// are not reconstructable afterwards.
func (s *CommandService) DeleteLeaseEvent(ctx context.Context, req DeleteLeaseEventRequest) (DeleteLeaseEventResponse, error) {
	leaseID := strings.TrimSpace(req.LeaseID)
	if leaseID == "" {
		return DeleteLeaseEventResponse{}, apperrors.HandleError(
			apperrors.New(apperrors.CodeLeaseIDEmpty, "lease id is required"))
	}

	evt, err := s.stores.Event.GetEventByID(ctx, leaseID, req.EventID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return DeleteLeaseEventResponse{}, apperrors.HandleError(
				apperrors.WithMetadata(apperrors.CodeEventNotFound, "event not found", map[string]string{
					"lease_id": leaseID,
				}))
		}
		return DeleteLeaseEventResponse{}, apperrors.HandleError(err)
	}

	if err := s.stores.Event.DeleteEvent(ctx, leaseID, req.EventID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return DeleteLeaseEventResponse{}, apperrors.HandleError(
				apperrors.New(apperrors.CodeEventNotFound, "event not found"))
		}
		return DeleteLeaseEventResponse{}, apperrors.HandleError(err)
	}

	log.Printf("deleted lease event lease_id=%s event_id=%d type=%s", leaseID, req.EventID, evt.Type)

	return DeleteLeaseEventResponse{Event: eventToView(evt)}, nil
}

// handle runs the shared command path: load state as of now on both axes,
// decide, append at most one event, and report the resulting observation.
func (s *CommandService) handle(ctx context.Context, cmd command.Command) (CommandResponse, error) {
	cmd.LeaseID = strings.TrimSpace(cmd.LeaseID)
	if cmd.LeaseID == "" {
		return CommandResponse{}, apperrors.HandleError(
			apperrors.New(apperrors.CodeLeaseIDEmpty, "lease id is required"))
	}
	if strings.TrimSpace(cmd.RequestID) == "" {
		cmd.RequestID = uuid.NewString()
	}

	now := s.now().UTC()

	events, err := s.stores.Event.ReadEvents(ctx, cmd.LeaseID, now)
	if err != nil {
		return CommandResponse{}, apperrors.HandleError(err)
	}

	state := lease.Replay(events, now)
	decision := lease.Decide(state, cmd)

	if len(decision.Rejections) > 0 {
		rej := decision.Rejections[0]
		return CommandResponse{}, apperrors.HandleError(
			apperrors.WithMetadata(apperrors.Code(rej.Code), rej.Message, map[string]string{
				"lease_id": cmd.LeaseID,
			}))
	}
	if len(decision.Events) != 1 {
		return CommandResponse{}, apperrors.HandleError(
			apperrors.New(apperrors.CodeUnknown, "command produced no event"))
	}

	stored, err := s.stores.Event.AppendEvent(ctx, decision.Events[0])
	if err != nil {
		return CommandResponse{}, apperrors.HandleError(mapAppendError(err, cmd.LeaseID))
	}

	// Fold the journal including the new event for the response observation.
	// The asOn cutoff stretches to the event's effective date so a
	// forward-dated command is visible in its own response.
	events = append(events, stored)
	asOn := now
	if stored.EffectiveDate.After(asOn) {
		asOn = stored.EffectiveDate
	}
	obs := lease.Observe(events, asOn)

	return CommandResponse{
		Event: eventToView(stored),
		Lease: observationToView(obs),
	}, nil
}

func mapAppendError(err error, leaseID string) error {
	metadata := map[string]string{"lease_id": leaseID}
	switch {
	case errors.Is(err, storage.ErrDuplicateLease):
		return apperrors.WithMetadata(apperrors.CodeLeaseAlreadyExists, "lease already exists", metadata)
	case errors.Is(err, storage.ErrDuplicatePayment):
		return apperrors.WithMetadata(apperrors.CodePaymentAlreadyRecorded, "payment id already recorded", metadata)
	case errors.Is(err, storage.ErrAppendConflict):
		return apperrors.WithMetadata(apperrors.CodeAppendConflict, "concurrent append detected, retry the command", metadata)
	default:
		return err
	}
}
