package lease

import (
	"encoding/json"
	"strings"

	"github.com/louisbranch/leaselog/internal/services/ledger/domain/command"
	"github.com/louisbranch/leaselog/internal/services/ledger/domain/event"
)

// Ledger commands.
const (
	CommandTypeCreate          command.Type = "lease.create"
	CommandTypeSchedulePayment command.Type = "payment.schedule"
	CommandTypeReceivePayment  command.Type = "payment.receive"
	CommandTypeTerminate       command.Type = "lease.terminate"
)

// Rejection codes align with the error codes surfaced by the API layer.
const (
	rejectionCodeLeaseAlreadyExists   = "LEASE_ALREADY_EXISTS"
	rejectionCodeLeaseNotCreated      = "LEASE_NOT_CREATED"
	rejectionCodeLeaseTerminated      = "LEASE_TERMINATED"
	rejectionCodeTerminationRepeated  = "LEASE_TERMINATION_REPEATED"
	rejectionCodeLeaseUserEmpty       = "LEASE_USER_EMPTY"
	rejectionCodeLeaseTermInvalid     = "LEASE_TERM_INVALID"
	rejectionCodeLeaseAmountInvalid   = "LEASE_AMOUNT_INVALID"
	rejectionCodePaymentIDEmpty       = "PAYMENT_ID_EMPTY"
	rejectionCodePaymentAmountInvalid = "PAYMENT_AMOUNT_INVALID"
)

// Decide returns the decision for a ledger command against current state.
//
// State must be folded as of "now" on both time axes: a termination only
// blocks payment commands once it is business-effective.
func Decide(state State, cmd command.Command) command.Decision {
	switch cmd.Type {
	case CommandTypeCreate:
		return decideCreate(state, cmd)
	case CommandTypeSchedulePayment:
		return decidePayment(state, cmd, event.TypePaymentScheduled)
	case CommandTypeReceivePayment:
		return decidePayment(state, cmd, event.TypePaymentReceived)
	case CommandTypeTerminate:
		return decideTerminate(state, cmd)
	}

	return command.Decision{}
}

func decideCreate(state State, cmd command.Command) command.Decision {
	if state.Created {
		return command.Reject(command.Rejection{
			Code:    rejectionCodeLeaseAlreadyExists,
			Message: "lease already exists",
		})
	}
	var payload event.LeaseCreatedPayload
	_ = json.Unmarshal(cmd.PayloadJSON, &payload)
	payload.UserID = strings.TrimSpace(payload.UserID)
	if payload.UserID == "" {
		return command.Reject(command.Rejection{
			Code:    rejectionCodeLeaseUserEmpty,
			Message: "user id is required",
		})
	}
	commencement, err := event.ParseDate(payload.CommencementDate)
	if err != nil {
		return command.Reject(command.Rejection{
			Code:    rejectionCodeLeaseTermInvalid,
			Message: "commencement date is invalid",
		})
	}
	expiration, err := event.ParseDate(payload.ExpirationDate)
	if err != nil {
		return command.Reject(command.Rejection{
			Code:    rejectionCodeLeaseTermInvalid,
			Message: "expiration date is invalid",
		})
	}
	if !expiration.After(commencement) {
		return command.Reject(command.Rejection{
			Code:    rejectionCodeLeaseTermInvalid,
			Message: "expiration date must follow commencement date",
		})
	}
	if payload.MonthlyPaymentAmount <= 0 {
		return command.Reject(command.Rejection{
			Code:    rejectionCodeLeaseAmountInvalid,
			Message: "monthly payment amount must be positive",
		})
	}

	normalized := event.LeaseCreatedPayload{
		UserID:               payload.UserID,
		CommencementDate:     event.FormatDate(commencement),
		ExpirationDate:       event.FormatDate(expiration),
		MonthlyPaymentAmount: payload.MonthlyPaymentAmount,
	}
	payloadJSON, _ := json.Marshal(normalized)
	return command.Accept(command.NewEvent(cmd, event.TypeLeaseCreated, payloadJSON))
}

func decidePayment(state State, cmd command.Command, eventType event.Type) command.Decision {
	if !state.Created {
		return command.Reject(command.Rejection{
			Code:    rejectionCodeLeaseNotCreated,
			Message: "lease does not exist",
		})
	}
	if state.Status == StatusTerminated {
		return command.Reject(command.Rejection{
			Code:    rejectionCodeLeaseTerminated,
			Message: "lease is terminated",
		})
	}

	// PaymentScheduled and PaymentReceived share payload shape.
	var payload event.PaymentScheduledPayload
	_ = json.Unmarshal(cmd.PayloadJSON, &payload)
	payload.PaymentID = strings.TrimSpace(payload.PaymentID)
	if payload.PaymentID == "" {
		return command.Reject(command.Rejection{
			Code:    rejectionCodePaymentIDEmpty,
			Message: "payment id is required",
		})
	}
	if payload.Amount <= 0 {
		return command.Reject(command.Rejection{
			Code:    rejectionCodePaymentAmountInvalid,
			Message: "payment amount must be positive",
		})
	}
	// Overpayment is allowed: TotalPaid may exceed TotalScheduled and surfaces
	// as a negative amount due.

	payloadJSON, _ := json.Marshal(payload)
	return command.Accept(command.NewEvent(cmd, eventType, payloadJSON))
}

func decideTerminate(state State, cmd command.Command) command.Decision {
	if !state.Created {
		return command.Reject(command.Rejection{
			Code:    rejectionCodeLeaseNotCreated,
			Message: "lease does not exist",
		})
	}
	if state.Status == StatusTerminated {
		return command.Reject(command.Rejection{
			Code:    rejectionCodeTerminationRepeated,
			Message: "lease is already terminated",
		})
	}

	var payload event.LeaseTerminatedPayload
	_ = json.Unmarshal(cmd.PayloadJSON, &payload)
	payload.Reason = strings.TrimSpace(payload.Reason)

	payloadJSON, _ := json.Marshal(payload)
	return command.Accept(command.NewEvent(cmd, event.TypeLeaseTerminated, payloadJSON))
}
