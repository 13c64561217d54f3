package event

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// ContentHash computes the content-addressed identity of an event.
//
// The canonical envelope fixes field ordering in one place so the hash cannot
// drift between layers. Sequence and creation time are included, so the hash
// identifies one specific journal entry, not just its payload.
func ContentHash(evt Event) (string, error) {
	if strings.TrimSpace(evt.LeaseID) == "" {
		return "", fmt.Errorf("lease id is required")
	}
	if evt.EventID == 0 {
		return "", fmt.Errorf("event id is required")
	}
	if evt.CreatedTime.IsZero() {
		return "", fmt.Errorf("created time is required")
	}

	envelope := strings.Join([]string{
		evt.LeaseID,
		strconv.FormatUint(evt.EventID, 10),
		strconv.FormatInt(evt.CreatedTime.UTC().UnixMilli(), 10),
		FormatDate(evt.EffectiveDate),
		string(evt.Type),
		evt.RequestID,
		string(evt.PayloadJSON),
	}, "|")

	sum := sha256.Sum256([]byte(envelope))
	return hex.EncodeToString(sum[:16]), nil
}
