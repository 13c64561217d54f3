package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/leaselog/internal/services/ledger/domain/event"
	"github.com/louisbranch/leaselog/internal/services/ledger/storage/integrity"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	ring, err := integrity.NewKeyring(map[string][]byte{"v1": []byte("test-secret")}, "v1")
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}

	store, err := Open(filepath.Join(t.TempDir(), "ledger.db"), ring)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func testDate(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := event.ParseDate(value)
	if err != nil {
		t.Fatalf("parse date %q: %v", value, err)
	}
	return parsed
}

func mustMarshal(t *testing.T, payload any) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func appendTestEvent(t *testing.T, store *Store, evt event.Event) event.Event {
	t.Helper()
	stored, err := store.AppendEvent(context.Background(), evt)
	if err != nil {
		t.Fatalf("append event: %v", err)
	}
	return stored
}

func appendLeaseCreated(t *testing.T, store *Store, leaseID, effectiveDate string) event.Event {
	t.Helper()
	return appendTestEvent(t, store, event.Event{
		LeaseID:       leaseID,
		EffectiveDate: testDate(t, effectiveDate),
		Type:          event.TypeLeaseCreated,
		PayloadJSON: mustMarshal(t, event.LeaseCreatedPayload{
			UserID:               "user-1",
			CommencementDate:     effectiveDate,
			ExpirationDate:       "2027-01-01",
			MonthlyPaymentAmount: 1000,
		}),
	})
}

func appendPaymentReceived(t *testing.T, store *Store, leaseID, paymentID, effectiveDate string, amount float64) event.Event {
	t.Helper()
	return appendTestEvent(t, store, event.Event{
		LeaseID:       leaseID,
		EffectiveDate: testDate(t, effectiveDate),
		Type:          event.TypePaymentReceived,
		PayloadJSON: mustMarshal(t, event.PaymentReceivedPayload{
			PaymentID: paymentID,
			Amount:    amount,
		}),
	})
}
