package lease

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/louisbranch/leaselog/internal/services/ledger/domain/command"
	"github.com/louisbranch/leaselog/internal/services/ledger/domain/event"
)

func createCommand(t *testing.T, payload event.LeaseCreatedPayload) command.Command {
	t.Helper()
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	commencement, _ := event.ParseDate(payload.CommencementDate)
	return command.Command{
		LeaseID:       "lease-1",
		Type:          CommandTypeCreate,
		EffectiveDate: commencement,
		RequestID:     "req-1",
		PayloadJSON:   payloadJSON,
	}
}

func paymentCommand(t *testing.T, cmdType command.Type, paymentID string, amount float64) command.Command {
	t.Helper()
	payloadJSON, err := json.Marshal(event.PaymentScheduledPayload{PaymentID: paymentID, Amount: amount})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return command.Command{
		LeaseID:       "lease-1",
		Type:          cmdType,
		EffectiveDate: time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		RequestID:     "req-2",
		PayloadJSON:   payloadJSON,
	}
}

func outstandingState() State {
	return State{
		Created:              true,
		LeaseID:              "lease-1",
		UserID:               "user-1",
		CommencementDate:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpirationDate:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		MonthlyPaymentAmount: 100.0,
		Status:               StatusOutstanding,
	}
}

func requireRejection(t *testing.T, decision command.Decision, code string) {
	t.Helper()
	if len(decision.Events) != 0 {
		t.Fatalf("expected no events, got %d", len(decision.Events))
	}
	if len(decision.Rejections) != 1 {
		t.Fatalf("expected one rejection, got %d", len(decision.Rejections))
	}
	if decision.Rejections[0].Code != code {
		t.Fatalf("expected rejection %s, got %s", code, decision.Rejections[0].Code)
	}
}

func requireSingleEvent(t *testing.T, decision command.Decision, eventType event.Type) event.Event {
	t.Helper()
	if len(decision.Rejections) != 0 {
		t.Fatalf("unexpected rejection: %+v", decision.Rejections[0])
	}
	if len(decision.Events) != 1 {
		t.Fatalf("expected one event, got %d", len(decision.Events))
	}
	if decision.Events[0].Type != eventType {
		t.Fatalf("expected %s, got %s", eventType, decision.Events[0].Type)
	}
	return decision.Events[0]
}

func TestDecideCreateAccepts(t *testing.T) {
	cmd := createCommand(t, event.LeaseCreatedPayload{
		UserID:               "user-1",
		CommencementDate:     "2024-01-01",
		ExpirationDate:       "2025-01-01",
		MonthlyPaymentAmount: 100.0,
	})

	decision := Decide(State{}, cmd)

	evt := requireSingleEvent(t, decision, event.TypeLeaseCreated)
	if evt.LeaseID != "lease-1" {
		t.Fatalf("expected lease-1, got %q", evt.LeaseID)
	}
	var payload event.LeaseCreatedPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.UserID != "user-1" || payload.MonthlyPaymentAmount != 100.0 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestDecideCreateRejectsExisting(t *testing.T) {
	cmd := createCommand(t, event.LeaseCreatedPayload{
		UserID:               "user-1",
		CommencementDate:     "2024-01-01",
		ExpirationDate:       "2025-01-01",
		MonthlyPaymentAmount: 100.0,
	})

	decision := Decide(outstandingState(), cmd)
	requireRejection(t, decision, rejectionCodeLeaseAlreadyExists)
}

func TestDecideCreateRejectsInvalidTerm(t *testing.T) {
	cmd := createCommand(t, event.LeaseCreatedPayload{
		UserID:               "user-1",
		CommencementDate:     "2025-01-01",
		ExpirationDate:       "2024-01-01",
		MonthlyPaymentAmount: 100.0,
	})

	decision := Decide(State{}, cmd)
	requireRejection(t, decision, rejectionCodeLeaseTermInvalid)
}

func TestDecideCreateRejectsEqualDates(t *testing.T) {
	cmd := createCommand(t, event.LeaseCreatedPayload{
		UserID:               "user-1",
		CommencementDate:     "2024-01-01",
		ExpirationDate:       "2024-01-01",
		MonthlyPaymentAmount: 100.0,
	})

	decision := Decide(State{}, cmd)
	requireRejection(t, decision, rejectionCodeLeaseTermInvalid)
}

func TestDecideCreateRejectsNonPositiveAmount(t *testing.T) {
	cmd := createCommand(t, event.LeaseCreatedPayload{
		UserID:               "user-1",
		CommencementDate:     "2024-01-01",
		ExpirationDate:       "2025-01-01",
		MonthlyPaymentAmount: 0,
	})

	decision := Decide(State{}, cmd)
	requireRejection(t, decision, rejectionCodeLeaseAmountInvalid)
}

func TestDecideSchedulePaymentAccepts(t *testing.T) {
	cmd := paymentCommand(t, CommandTypeSchedulePayment, "pmt-1", 100.0)

	decision := Decide(outstandingState(), cmd)
	requireSingleEvent(t, decision, event.TypePaymentScheduled)
}

func TestDecidePaymentRejectsUnknownLease(t *testing.T) {
	cmd := paymentCommand(t, CommandTypeSchedulePayment, "pmt-1", 100.0)

	decision := Decide(State{}, cmd)
	requireRejection(t, decision, rejectionCodeLeaseNotCreated)
}

func TestDecidePaymentRejectsNonPositiveAmount(t *testing.T) {
	cmd := paymentCommand(t, CommandTypeReceivePayment, "rcpt-1", -5.0)

	decision := Decide(outstandingState(), cmd)
	requireRejection(t, decision, rejectionCodePaymentAmountInvalid)
}

func TestDecideReceiveAllowsOverpayment(t *testing.T) {
	state := outstandingState()
	state.TotalScheduled = 100.0
	state.TotalPaid = 100.0

	cmd := paymentCommand(t, CommandTypeReceivePayment, "rcpt-2", 500.0)

	decision := Decide(state, cmd)
	requireSingleEvent(t, decision, event.TypePaymentReceived)
}

func TestDecideTerminatedLeaseIsAbsorbing(t *testing.T) {
	state := outstandingState()
	state.Status = StatusTerminated

	schedule := Decide(state, paymentCommand(t, CommandTypeSchedulePayment, "pmt-9", 100.0))
	requireRejection(t, schedule, rejectionCodeLeaseTerminated)

	receive := Decide(state, paymentCommand(t, CommandTypeReceivePayment, "rcpt-9", 100.0))
	requireRejection(t, receive, rejectionCodeLeaseTerminated)

	terminate := Decide(state, command.Command{
		LeaseID:       "lease-1",
		Type:          CommandTypeTerminate,
		EffectiveDate: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		PayloadJSON:   []byte(`{"reason":"again"}`),
	})
	requireRejection(t, terminate, rejectionCodeTerminationRepeated)
}

func TestDecideTerminateAccepts(t *testing.T) {
	cmd := command.Command{
		LeaseID:       "lease-1",
		Type:          CommandTypeTerminate,
		EffectiveDate: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		PayloadJSON:   []byte(`{"reason":"early buyout"}`),
	}

	decision := Decide(outstandingState(), cmd)
	evt := requireSingleEvent(t, decision, event.TypeLeaseTerminated)

	var payload event.LeaseTerminatedPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Reason != "early buyout" {
		t.Fatalf("unexpected reason: %q", payload.Reason)
	}
}
