package integrity

import (
	"testing"
	"time"

	"github.com/louisbranch/leaselog/internal/services/ledger/domain/event"
)

func TestNewKeyringValidation(t *testing.T) {
	if _, err := NewKeyring(nil, "v1"); err == nil {
		t.Fatal("expected error for missing keys")
	}

	if _, err := NewKeyring(map[string][]byte{"v1": []byte("secret")}, ""); err == nil {
		t.Fatal("expected error for missing active key id")
	}

	if _, err := NewKeyring(map[string][]byte{"v1": []byte("secret")}, "v2"); err == nil {
		t.Fatal("expected error for unknown active key id")
	}
}

func TestKeyringSignAndVerify(t *testing.T) {
	ring, err := NewKeyring(map[string][]byte{"v1": []byte("secret")}, "v1")
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}

	sig, keyID, err := ring.SignEventHash("lease-1", "abc123")
	if err != nil {
		t.Fatalf("sign event hash: %v", err)
	}
	if keyID != "v1" {
		t.Fatalf("expected key id v1, got %s", keyID)
	}

	if err := ring.VerifyEventHash("lease-1", "abc123", sig, keyID); err != nil {
		t.Fatalf("verify event hash: %v", err)
	}
}

func TestKeyringDerivationIsPerLease(t *testing.T) {
	ring, err := NewKeyring(map[string][]byte{"v1": []byte("secret")}, "v1")
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}

	sig, keyID, err := ring.SignEventHash("lease-1", "abc123")
	if err != nil {
		t.Fatalf("sign event hash: %v", err)
	}

	if err := ring.VerifyEventHash("lease-2", "abc123", sig, keyID); err == nil {
		t.Fatal("expected signature from another lease to fail verification")
	}
}

func TestKeyringVerifyFailures(t *testing.T) {
	ring, err := NewKeyring(map[string][]byte{"v1": []byte("secret")}, "v1")
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}

	sig, _, err := ring.SignEventHash("lease-1", "abc123")
	if err != nil {
		t.Fatalf("sign event hash: %v", err)
	}

	if err := ring.VerifyEventHash("lease-1", "abc123", sig, ""); err == nil {
		t.Fatal("expected error for missing key id")
	}
	if err := ring.VerifyEventHash("lease-1", "abc123", sig, "unknown"); err == nil {
		t.Fatal("expected error for unknown key id")
	}
	if err := ring.VerifyEventHash("lease-1", "abc123", "bad", "v1"); err == nil {
		t.Fatal("expected error for signature mismatch")
	}
	if err := ring.VerifyEventHash("", "abc123", sig, "v1"); err == nil {
		t.Fatal("expected error for missing lease id")
	}
}

func TestKeyringActiveKeyID(t *testing.T) {
	var ring *Keyring
	if ring.ActiveKeyID() != "" {
		t.Fatal("expected empty active key id for nil keyring")
	}

	ring, err := NewKeyring(map[string][]byte{"v1": []byte("secret")}, "v1")
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}
	if ring.ActiveKeyID() != "v1" {
		t.Fatalf("expected active key id v1, got %s", ring.ActiveKeyID())
	}
}

func TestKeyringSignRequiresKeyring(t *testing.T) {
	var ring *Keyring
	if _, _, err := ring.SignEventHash("lease-1", "abc123"); err == nil {
		t.Fatal("expected error for nil keyring")
	}
}

func TestSealAndVerifyEvent(t *testing.T) {
	ring, err := NewKeyring(map[string][]byte{"v1": []byte("secret")}, "v1")
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}

	evt := event.Event{
		LeaseID:       "lease-1",
		EventID:       1,
		CreatedTime:   time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		EffectiveDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Type:          event.TypeLeaseCreated,
		RequestID:     "req-1",
		PayloadJSON:   []byte(`{"user_id":"user-1"}`),
	}

	sealed, err := SealEvent(ring, evt)
	if err != nil {
		t.Fatalf("seal event: %v", err)
	}
	if sealed.Hash == "" || sealed.Signature == "" || sealed.SignatureKeyID != "v1" {
		t.Fatalf("expected integrity fields to be populated, got %+v", sealed)
	}

	if err := VerifyEvent(ring, sealed); err != nil {
		t.Fatalf("verify event: %v", err)
	}

	tampered := sealed
	tampered.PayloadJSON = []byte(`{"user_id":"user-2"}`)
	if err := VerifyEvent(ring, tampered); err == nil {
		t.Fatal("expected tampered payload to fail verification")
	}
}

func TestVerifyEventSurvivesSiblingDeletion(t *testing.T) {
	ring, err := NewKeyring(map[string][]byte{"v1": []byte("secret")}, "v1")
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}

	base := event.Event{
		LeaseID:       "lease-1",
		CreatedTime:   time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		EffectiveDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Type:          event.TypePaymentReceived,
		PayloadJSON:   []byte(`{"payment_id":"p-1","amount":100}`),
	}

	var sealed []event.Event
	for id := uint64(1); id <= 3; id++ {
		evt := base
		evt.EventID = id
		s, err := SealEvent(ring, evt)
		if err != nil {
			t.Fatalf("seal event %d: %v", id, err)
		}
		sealed = append(sealed, s)
	}

	// Dropping the middle event must not affect the others.
	remaining := []event.Event{sealed[0], sealed[2]}
	for _, evt := range remaining {
		if err := VerifyEvent(ring, evt); err != nil {
			t.Fatalf("verify event %d after deletion: %v", evt.EventID, err)
		}
	}
}
