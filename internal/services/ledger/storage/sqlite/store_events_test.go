package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/leaselog/internal/services/ledger/domain/event"
	"github.com/louisbranch/leaselog/internal/services/ledger/storage"
)

func TestAppendEventAssignsSequenceAndIntegrity(t *testing.T) {
	store := newTestStore(t)

	first := appendLeaseCreated(t, store, "lease-1", "2025-01-01")
	if first.EventID != 1 {
		t.Fatalf("expected event id 1, got %d", first.EventID)
	}
	if first.Hash == "" || first.Signature == "" || first.SignatureKeyID != "v1" {
		t.Fatalf("expected integrity fields to be set, got %+v", first)
	}
	if first.CreatedTime.IsZero() {
		t.Fatal("expected created time to be assigned")
	}

	second := appendPaymentReceived(t, store, "lease-1", "p-1", "2025-02-01", 1000)
	if second.EventID != 2 {
		t.Fatalf("expected event id 2, got %d", second.EventID)
	}
	if second.CreatedTime.Before(first.CreatedTime) {
		t.Fatalf("expected non-decreasing created time, got %v then %v", first.CreatedTime, second.CreatedTime)
	}
}

func TestAppendEventSequencesPerLease(t *testing.T) {
	store := newTestStore(t)

	appendLeaseCreated(t, store, "lease-1", "2025-01-01")
	appendPaymentReceived(t, store, "lease-1", "p-1", "2025-02-01", 1000)
	other := appendLeaseCreated(t, store, "lease-2", "2025-01-15")

	if other.EventID != 1 {
		t.Fatalf("expected independent sequence per lease, got %d", other.EventID)
	}
}

func TestAppendEventClampsBackwardsClock(t *testing.T) {
	store := newTestStore(t)

	first := appendLeaseCreated(t, store, "lease-1", "2025-01-01")

	past := event.Event{
		LeaseID:       "lease-1",
		CreatedTime:   first.CreatedTime.Add(-time.Hour),
		EffectiveDate: testDate(t, "2025-02-01"),
		Type:          event.TypePaymentReceived,
		PayloadJSON:   mustMarshal(t, event.PaymentReceivedPayload{PaymentID: "p-1", Amount: 1000}),
	}
	stored := appendTestEvent(t, store, past)
	if stored.CreatedTime.Before(first.CreatedTime) {
		t.Fatalf("expected created time clamped to %v, got %v", first.CreatedTime, stored.CreatedTime)
	}
}

func TestAppendEventRejectsDuplicateLease(t *testing.T) {
	store := newTestStore(t)

	appendLeaseCreated(t, store, "lease-1", "2025-01-01")

	_, err := store.AppendEvent(context.Background(), event.Event{
		LeaseID:       "lease-1",
		EffectiveDate: testDate(t, "2025-01-02"),
		Type:          event.TypeLeaseCreated,
		PayloadJSON: mustMarshal(t, event.LeaseCreatedPayload{
			UserID:               "user-2",
			CommencementDate:     "2025-01-02",
			ExpirationDate:       "2027-01-01",
			MonthlyPaymentAmount: 500,
		}),
	})
	if !errors.Is(err, storage.ErrDuplicateLease) {
		t.Fatalf("expected ErrDuplicateLease, got %v", err)
	}
}

func TestAppendEventRejectsDuplicatePaymentID(t *testing.T) {
	store := newTestStore(t)

	appendLeaseCreated(t, store, "lease-1", "2025-01-01")
	appendPaymentReceived(t, store, "lease-1", "p-1", "2025-02-01", 1000)

	_, err := store.AppendEvent(context.Background(), event.Event{
		LeaseID:       "lease-1",
		EffectiveDate: testDate(t, "2025-02-02"),
		Type:          event.TypePaymentReceived,
		PayloadJSON:   mustMarshal(t, event.PaymentReceivedPayload{PaymentID: "p-1", Amount: 1000}),
	})
	if !errors.Is(err, storage.ErrDuplicatePayment) {
		t.Fatalf("expected ErrDuplicatePayment, got %v", err)
	}
}

func TestAppendEventAllowsSamePaymentIDAcrossTypes(t *testing.T) {
	store := newTestStore(t)

	appendLeaseCreated(t, store, "lease-1", "2025-01-01")

	appendTestEvent(t, store, event.Event{
		LeaseID:       "lease-1",
		EffectiveDate: testDate(t, "2025-02-01"),
		Type:          event.TypePaymentScheduled,
		PayloadJSON:   mustMarshal(t, event.PaymentScheduledPayload{PaymentID: "p-1", Amount: 1000}),
	})

	// Receiving the scheduled payment reuses its payment id.
	appendPaymentReceived(t, store, "lease-1", "p-1", "2025-02-03", 1000)
}

func TestReadEventsHonorsCreatedBeforeCutoff(t *testing.T) {
	store := newTestStore(t)

	first := appendLeaseCreated(t, store, "lease-1", "2025-01-01")
	appendPaymentReceived(t, store, "lease-1", "p-1", "2025-02-01", 1000)

	all, err := store.ReadEvents(context.Background(), "lease-1", time.Time{})
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 events, got %d", len(all))
	}

	cutoff, err := store.ReadEvents(context.Background(), "lease-1", first.CreatedTime)
	if err != nil {
		t.Fatalf("read events at cutoff: %v", err)
	}
	if len(cutoff) > 2 {
		t.Fatalf("expected at most 2 events at cutoff, got %d", len(cutoff))
	}
	for _, evt := range cutoff {
		if evt.CreatedTime.After(first.CreatedTime) {
			t.Fatalf("event %d created after cutoff", evt.EventID)
		}
	}
}

func TestGetEventByID(t *testing.T) {
	store := newTestStore(t)

	appendLeaseCreated(t, store, "lease-1", "2025-01-01")
	stored := appendPaymentReceived(t, store, "lease-1", "p-1", "2025-02-01", 1000)

	got, err := store.GetEventByID(context.Background(), "lease-1", stored.EventID)
	if err != nil {
		t.Fatalf("get event by id: %v", err)
	}
	if got.Hash != stored.Hash || got.Type != event.TypePaymentReceived {
		t.Fatalf("unexpected event: %+v", got)
	}

	if _, err := store.GetEventByID(context.Background(), "lease-1", 99); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteEventRemovesRow(t *testing.T) {
	store := newTestStore(t)

	appendLeaseCreated(t, store, "lease-1", "2025-01-01")
	stored := appendPaymentReceived(t, store, "lease-1", "p-1", "2025-02-01", 1000)

	if err := store.DeleteEvent(context.Background(), "lease-1", stored.EventID); err != nil {
		t.Fatalf("delete event: %v", err)
	}

	if _, err := store.GetEventByID(context.Background(), "lease-1", stored.EventID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	if err := store.DeleteEvent(context.Background(), "lease-1", stored.EventID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for repeated delete, got %v", err)
	}
}

func TestDeleteLeaseCreatedRemovesRegistration(t *testing.T) {
	store := newTestStore(t)

	created := appendLeaseCreated(t, store, "lease-1", "2025-01-01")

	if err := store.DeleteEvent(context.Background(), "lease-1", created.EventID); err != nil {
		t.Fatalf("delete event: %v", err)
	}

	if _, err := store.GetLease(context.Background(), "lease-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected lease registration removed, got %v", err)
	}
}

func TestDeleteEventPreservesSiblingIntegrity(t *testing.T) {
	store := newTestStore(t)

	appendLeaseCreated(t, store, "lease-1", "2025-01-01")
	middle := appendPaymentReceived(t, store, "lease-1", "p-1", "2025-02-01", 1000)
	appendPaymentReceived(t, store, "lease-1", "p-2", "2025-03-01", 1000)

	if err := store.DeleteEvent(context.Background(), "lease-1", middle.EventID); err != nil {
		t.Fatalf("delete event: %v", err)
	}

	if err := store.VerifyLedgerIntegrity(context.Background()); err != nil {
		t.Fatalf("verify after delete: %v", err)
	}
}

func TestVerifyLedgerIntegrityDetectsTampering(t *testing.T) {
	store := newTestStore(t)

	appendLeaseCreated(t, store, "lease-1", "2025-01-01")
	stored := appendPaymentReceived(t, store, "lease-1", "p-1", "2025-02-01", 1000)

	if err := store.VerifyLedgerIntegrity(context.Background()); err != nil {
		t.Fatalf("verify clean ledger: %v", err)
	}

	if _, err := store.sqlDB.Exec(
		"UPDATE events SET payload_json = ? WHERE lease_id = ? AND event_id = ?",
		`{"payment_id":"p-1","amount":9999}`, "lease-1", int64(stored.EventID),
	); err != nil {
		t.Fatalf("tamper event: %v", err)
	}

	if err := store.VerifyLedgerIntegrity(context.Background()); err == nil {
		t.Fatal("expected integrity verification to fail after tampering")
	}
}

func TestReadEventsPageForwardAndBackward(t *testing.T) {
	store := newTestStore(t)

	appendLeaseCreated(t, store, "lease-1", "2025-01-01")
	for i, paymentID := range []string{"p-1", "p-2", "p-3", "p-4"} {
		appendPaymentReceived(t, store, "lease-1", paymentID, event.FormatDate(testDate(t, "2025-02-01").AddDate(0, i, 0)), 1000)
	}

	first, err := store.ReadEventsPage(context.Background(), storage.ReadEventsPageRequest{
		LeaseID:  "lease-1",
		PageSize: 2,
	})
	if err != nil {
		t.Fatalf("read first page: %v", err)
	}
	if len(first.Events) != 2 || first.Events[0].EventID != 1 || first.Events[1].EventID != 2 {
		t.Fatalf("unexpected first page: %+v", first.Events)
	}
	if !first.HasNextPage || first.HasPrevPage {
		t.Fatalf("unexpected page flags: next=%v prev=%v", first.HasNextPage, first.HasPrevPage)
	}
	if first.TotalCount != 5 {
		t.Fatalf("expected total count 5, got %d", first.TotalCount)
	}

	second, err := store.ReadEventsPage(context.Background(), storage.ReadEventsPageRequest{
		LeaseID:   "lease-1",
		PageSize:  2,
		CursorSeq: first.Events[1].EventID,
		CursorDir: "fwd",
	})
	if err != nil {
		t.Fatalf("read second page: %v", err)
	}
	if len(second.Events) != 2 || second.Events[0].EventID != 3 || second.Events[1].EventID != 4 {
		t.Fatalf("unexpected second page: %+v", second.Events)
	}
	if !second.HasNextPage || !second.HasPrevPage {
		t.Fatalf("unexpected page flags: next=%v prev=%v", second.HasNextPage, second.HasPrevPage)
	}

	back, err := store.ReadEventsPage(context.Background(), storage.ReadEventsPageRequest{
		LeaseID:       "lease-1",
		PageSize:      2,
		CursorSeq:     second.Events[0].EventID,
		CursorDir:     "bwd",
		CursorReverse: true,
	})
	if err != nil {
		t.Fatalf("read previous page: %v", err)
	}
	if len(back.Events) != 2 || back.Events[0].EventID != 1 || back.Events[1].EventID != 2 {
		t.Fatalf("unexpected previous page: %+v", back.Events)
	}
	if !back.HasNextPage {
		t.Fatal("expected previous page to report a next page")
	}
}

func TestReadEventsPageHonorsTemporalCutoffs(t *testing.T) {
	store := newTestStore(t)

	appendLeaseCreated(t, store, "lease-1", "2025-01-01")
	appendPaymentReceived(t, store, "lease-1", "p-1", "2025-02-01", 1000)
	late := appendPaymentReceived(t, store, "lease-1", "p-2", "2025-06-01", 1000)

	// asOn excludes the June payment regardless of when it was recorded.
	page, err := store.ReadEventsPage(context.Background(), storage.ReadEventsPageRequest{
		LeaseID:             "lease-1",
		PageSize:            10,
		EffectiveOnOrBefore: testDate(t, "2025-03-01"),
	})
	if err != nil {
		t.Fatalf("read page: %v", err)
	}
	if len(page.Events) != 2 || page.TotalCount != 2 {
		t.Fatalf("expected 2 events on or before cutoff, got %d (total %d)", len(page.Events), page.TotalCount)
	}
	for _, evt := range page.Events {
		if evt.EventID == late.EventID {
			t.Fatal("expected June payment to be excluded")
		}
	}
}

func TestReadEventsPageAppliesFilterClause(t *testing.T) {
	store := newTestStore(t)

	appendLeaseCreated(t, store, "lease-1", "2025-01-01")
	appendPaymentReceived(t, store, "lease-1", "p-1", "2025-02-01", 1000)

	page, err := store.ReadEventsPage(context.Background(), storage.ReadEventsPageRequest{
		LeaseID:      "lease-1",
		PageSize:     10,
		FilterClause: "event_type = ?",
		FilterParams: []any{string(event.TypePaymentReceived)},
	})
	if err != nil {
		t.Fatalf("read page: %v", err)
	}
	if len(page.Events) != 1 || page.Events[0].Type != event.TypePaymentReceived {
		t.Fatalf("unexpected filtered page: %+v", page.Events)
	}
	if page.TotalCount != 1 {
		t.Fatalf("expected filtered total 1, got %d", page.TotalCount)
	}
}

func TestAppendEventConcurrentAppendsStaySequential(t *testing.T) {
	store := newTestStore(t)

	appendLeaseCreated(t, store, "lease-1", "2025-01-01")

	const workers = 8
	pending := make([]event.Event, workers)
	for i := range pending {
		pending[i] = event.Event{
			LeaseID:       "lease-1",
			EffectiveDate: testDate(t, "2025-02-01"),
			Type:          event.TypePaymentReceived,
			PayloadJSON: mustMarshal(t, event.PaymentReceivedPayload{
				PaymentID: fmt.Sprintf("p-%d", i),
				Amount:    100,
			}),
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for _, evt := range pending {
		wg.Add(1)
		go func(evt event.Event) {
			defer wg.Done()
			_, err := store.AppendEvent(context.Background(), evt)
			errs <- err
		}(evt)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent append: %v", err)
		}
	}

	events, err := store.ReadEvents(context.Background(), "lease-1", time.Time{})
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	if len(events) != workers+1 {
		t.Fatalf("expected %d events, got %d", workers+1, len(events))
	}
	for i, evt := range events {
		if evt.EventID != uint64(i+1) {
			t.Fatalf("expected event id %d at position %d, got %d", i+1, i, evt.EventID)
		}
	}
}
