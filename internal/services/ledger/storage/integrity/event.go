package integrity

import (
	"fmt"

	"github.com/louisbranch/leaselog/internal/services/ledger/domain/event"
)

// SealEvent computes the content hash for evt and signs it with the active
// key, returning the event with its integrity fields populated.
func SealEvent(ring *Keyring, evt event.Event) (event.Event, error) {
	hash, err := event.ContentHash(evt)
	if err != nil {
		return event.Event{}, fmt.Errorf("hash event: %w", err)
	}
	sig, keyID, err := ring.SignEventHash(evt.LeaseID, hash)
	if err != nil {
		return event.Event{}, fmt.Errorf("sign event: %w", err)
	}
	evt.Hash = hash
	evt.Signature = sig
	evt.SignatureKeyID = keyID
	return evt, nil
}

// VerifyEvent recomputes the content hash for evt and checks both the stored
// hash and its signature. Events signed under rotated-out keys fail with an
// unknown key id error.
func VerifyEvent(ring *Keyring, evt event.Event) error {
	hash, err := event.ContentHash(evt)
	if err != nil {
		return fmt.Errorf("hash event: %w", err)
	}
	if hash != evt.Hash {
		return fmt.Errorf("event %s/%d: content hash mismatch", evt.LeaseID, evt.EventID)
	}
	if err := ring.VerifyEventHash(evt.LeaseID, hash, evt.Signature, evt.SignatureKeyID); err != nil {
		return fmt.Errorf("event %s/%d: %w", evt.LeaseID, evt.EventID, err)
	}
	return nil
}
